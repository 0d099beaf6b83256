// Package middleware provides shared HTTP middleware utilities.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"coopcredit/pkg/cache"
	pkgerrors "coopcredit/pkg/errors"
	"coopcredit/pkg/logger"
)

// IdempotencyStore is the subset of pkg/cache the middleware needs.
type IdempotencyStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNX(ctx context.Context, key, value string, expiration time.Duration) (bool, error)
	GetString(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// IdempotencyMiddleware replays the first response for a repeated Idempotency-Key.
type IdempotencyMiddleware struct {
	store        IdempotencyStore
	ttl          time.Duration
	pollInterval time.Duration
	maxWait      time.Duration
	logger       logger.Logger
}

// NewIdempotencyMiddleware constructs an IdempotencyMiddleware with a TTL.
func NewIdempotencyMiddleware(store IdempotencyStore, ttl time.Duration, log logger.Logger) *IdempotencyMiddleware {
	return &IdempotencyMiddleware{
		store:        store,
		ttl:          ttl,
		pollInterval: 100 * time.Millisecond,
		maxWait:      5 * time.Second,
		logger:       log,
	}
}

// Require blocks duplicate POST/PUT requests with the same key.
// It expects the header: Idempotency-Key.
func (m *IdempotencyMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			jsonError(w, http.StatusBadRequest, "Idempotency-Key header required")
			return
		}

		scope := "anonymous"
		if userID, ok := UserIDFromContext(r.Context()); ok {
			scope = userID.String()
		}
		dataKey := fmt.Sprintf("idempotency:data:%s:%s:%s:%s", scope, r.Method, r.URL.Path, key)
		lockKey := fmt.Sprintf("idempotency:lock:%s:%s:%s:%s", scope, r.Method, r.URL.Path, key)

		// Fast path: cached response exists
		if m.replayCached(w, r, dataKey) {
			return
		}

		requestID := RequestIDFromContext(r.Context())
		if requestID == "" {
			requestID = "unknown"
		}

		ok, err := m.store.SetNX(r.Context(), lockKey, requestID, m.ttl)
		if err != nil {
			m.logger.Error("Idempotency lock failed", map[string]interface{}{"key": key, "error": err})
			jsonError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		if !ok {
			// Re-entrant call from the same request
			if holder, err := m.store.GetString(r.Context(), lockKey); err == nil && holder == requestID {
				next.ServeHTTP(w, r)
				return
			}

			// Another request is in flight; wait for its response
			deadline := time.Now().Add(m.maxWait)
			ticker := time.NewTicker(m.pollInterval)
			defer ticker.Stop()
			for time.Now().Before(deadline) {
				select {
				case <-r.Context().Done():
					return
				case <-ticker.C:
				}
				if m.replayCached(w, r, dataKey) {
					return
				}
			}

			jsonError(w, http.StatusConflict, pkgerrors.ErrDuplicateRequest.Error())
			return
		}
		defer func() { _ = m.store.Delete(context.WithoutCancel(r.Context()), lockKey) }()

		cw := newCaptureWriter(w, 1<<20) // 1MB cap
		next.ServeHTTP(cw, r)

		// Server errors are not replayed so the client can retry
		if cw.status >= http.StatusInternalServerError {
			return
		}
		if err := m.cacheResponse(r, dataKey, cw); err != nil {
			m.logger.Warn("Idempotency cache write failed", map[string]interface{}{"key": key, "error": err})
		}
	})
}

type capturedResponse struct {
	Status  int               `json:"status"`
	Body    []byte            `json:"body"`
	Headers map[string]string `json:"headers"`
}

func (m *IdempotencyMiddleware) replayCached(w http.ResponseWriter, r *http.Request, dataKey string) bool {
	var cr capturedResponse
	if err := m.store.Get(r.Context(), dataKey, &cr); err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			m.logger.Warn("Idempotency cache read failed", map[string]interface{}{"error": err})
		}
		return false
	}

	for k, v := range cr.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(cr.Status)
	_, _ = w.Write(cr.Body)
	return true
}

func (m *IdempotencyMiddleware) cacheResponse(r *http.Request, dataKey string, cw *captureWriter) error {
	if cw.status == 0 || len(cw.buf) == 0 || cw.truncated {
		return nil
	}

	resp := capturedResponse{
		Status:  cw.status,
		Body:    cw.buf,
		Headers: cw.headers,
	}
	return m.store.Set(context.WithoutCancel(r.Context()), dataKey, resp, m.ttl)
}

type captureWriter struct {
	http.ResponseWriter
	buf       []byte
	limit     int
	truncated bool
	status    int
	headers   map[string]string
}

func newCaptureWriter(w http.ResponseWriter, limit int) *captureWriter {
	return &captureWriter{
		ResponseWriter: w,
		buf:            make([]byte, 0, 1024),
		limit:          limit,
		headers:        make(map[string]string),
	}
}

func (w *captureWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	for k, v := range w.ResponseWriter.Header() {
		if len(v) > 0 {
			w.headers[k] = v[0]
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.WriteHeader(http.StatusOK)
	}
	if space := w.limit - len(w.buf); space >= len(p) {
		w.buf = append(w.buf, p...)
	} else {
		w.truncated = true
	}
	return w.ResponseWriter.Write(p)
}
