package middleware

import (
	"net/http"
	"time"

	"coopcredit/pkg/logger"
)

// LoggingMiddleware writes one access log line per request.
type LoggingMiddleware struct {
	logger logger.Logger
}

func NewLoggingMiddleware(log logger.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: log.With(map[string]interface{}{"component": "http"})}
}

// Log records status, latency and caller. 5xx responses log at error level and
// 4xx at warn. Identity is read after the handler ran, so it is present once
// Authenticate has executed further down the chain.
func (m *LoggingMiddleware) Log(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		req := r.WithContext(withCallerSlot(r.Context()))
		next.ServeHTTP(rec, req)

		fields := map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"bytes":       rec.bytes,
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  RequestIDFromContext(r.Context()),
		}
		if c := callerFromSlot(req.Context()); c != nil {
			fields["user_id"] = c.userID
			fields["role"] = c.role
		}

		switch {
		case rec.status >= http.StatusInternalServerError:
			m.logger.Error("HTTP request failed", fields)
		case rec.status >= http.StatusBadRequest:
			m.logger.Warn("HTTP request rejected", fields)
		default:
			m.logger.Info("HTTP request", fields)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.status = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}
