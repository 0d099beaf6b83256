package riskcentral

import (
	"encoding/json"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"coopcredit/pkg/logger"
	"coopcredit/pkg/validator"
)

// EvaluationRequest is the bureau's input contract.
type EvaluationRequest struct {
	Document   string          `json:"document" validate:"required"`
	Amount     decimal.Decimal `json:"amount" validate:"dgt=0"`
	TermMonths int             `json:"term" validate:"min=1"`
}

type Handler struct {
	validator   *validator.Validator
	logger      logger.Logger
	failureRate float64
	roll        func() float64
}

type Option func(*Handler)

// WithFailureRate makes the given fraction of evaluations answer 503.
func WithFailureRate(rate float64) Option {
	return func(h *Handler) {
		switch {
		case rate < 0:
			rate = 0
		case rate > 1:
			rate = 1
		}
		h.failureRate = rate
	}
}

// WithRoll replaces the random source used for failure injection, for tests.
func WithRoll(roll func() float64) Option {
	return func(h *Handler) { h.roll = roll }
}

func NewHandler(v *validator.Validator, log logger.Logger, opts ...Option) *Handler {
	h := &Handler{
		validator: v,
		logger:    log,
		roll:      rand.Float64,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the bureau endpoints on r.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/risk-evaluation", h.Evaluate).Methods("POST")
	r.HandleFunc("/health", h.Health).Methods("GET")
}

func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	if h.failureRate > 0 && h.roll() < h.failureRate {
		h.logger.Warn("Injected bureau failure", nil)
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Risk central temporarily unavailable"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	var req EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}
	req.Document = strings.TrimSpace(req.Document)

	if fields := h.validator.ValidateStructured(&req); len(fields) > 0 {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{"error": "Validation failed", "fields": fields})
		return
	}

	eval := Evaluate(req.Document, req.Amount, req.TermMonths)

	h.logger.Info("Risk evaluated", map[string]interface{}{
		"score":      eval.Score,
		"risk_level": eval.RiskLevel,
		"term":       req.TermMonths,
	})

	respondJSON(w, http.StatusOK, eval)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
