package handler

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"coopcredit/internal/risk"
	"coopcredit/pkg/logger"
)

// Pinger is satisfied by *sqlx.DB. Wrap other clients with PingFunc.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a plain ping function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// BreakerView exposes the risk circuit state for health reporting.
type BreakerView interface {
	Snapshot() risk.BreakerSnapshot
}

type SystemHandler struct {
	db        Pinger
	redis     Pinger
	breaker   BreakerView
	logger    logger.Logger
	startTime time.Time
	timeout   time.Duration
}

func NewSystemHandler(db, redis Pinger, breaker BreakerView, log logger.Logger) *SystemHandler {
	return &SystemHandler{
		db:        db,
		redis:     redis,
		breaker:   breaker,
		logger:    log,
		startTime: time.Now(),
		timeout:   2 * time.Second,
	}
}

type ServiceStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"` // operational, degraded, outage
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type HealthResponse struct {
	Status        string                `json:"status"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	RiskCentral   *risk.BreakerSnapshot `json:"risk_central,omitempty"`
}

type ReadyResponse struct {
	Status   string          `json:"status"`
	Services []ServiceStatus `json:"services"`
}

// Health is the liveness probe. It never touches dependencies; an open risk
// circuit is reported but does not fail the probe since evaluations fall back.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}
	if h.breaker != nil {
		snap := h.breaker.Snapshot()
		resp.RiskCentral = &snap
		if snap.State != risk.StateClosed.String() {
			resp.Status = "degraded"
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

// Ready pings the database and Redis concurrently and returns 503 if either
// is unreachable.
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	services := make([]ServiceStatus, 2)
	var g errgroup.Group
	g.Go(func() error {
		services[0] = h.check(ctx, "database", h.db, 200*time.Millisecond)
		return nil
	})
	g.Go(func() error {
		services[1] = h.check(ctx, "redis", h.redis, 50*time.Millisecond)
		return nil
	})
	_ = g.Wait()

	status := http.StatusOK
	resp := ReadyResponse{Status: "ready", Services: services}
	for _, s := range services {
		if s.Status == "outage" {
			status = http.StatusServiceUnavailable
			resp.Status = "unavailable"
		}
	}
	respondJSON(w, status, resp)
}

func (h *SystemHandler) check(ctx context.Context, id string, p Pinger, slow time.Duration) ServiceStatus {
	if p == nil {
		return ServiceStatus{ID: id, Status: "outage", Error: "not configured"}
	}

	start := time.Now()
	err := p.PingContext(ctx)
	latency := time.Since(start)

	st := ServiceStatus{ID: id, Status: "operational", LatencyMs: latency.Milliseconds()}
	switch {
	case err != nil:
		st.Status = "outage"
		st.Error = err.Error()
		h.logger.Error("Readiness ping failed", map[string]interface{}{"service": id, "error": err.Error()})
	case latency > slow:
		st.Status = "degraded"
	}
	return st
}
