package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

type correlationKey string

const (
	ctxRequestIDKey correlationKey = "request_id"
	ctxCallerKey    correlationKey = "caller"
)

// Inbound ids are echoed into logs, so only short opaque tokens are accepted.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]{8,64}$`)

// CorrelationID propagates a caller supplied X-Request-ID or mints a UUID.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if !requestIDPattern.MatchString(reqID) {
			reqID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), ctxRequestIDKey, reqID)
		w.Header().Set(requestIDHeader, reqID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the correlation id set by CorrelationID.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxRequestIDKey).(string)
	return id
}

// caller is filled in by Authenticate so outer middleware can log who called.
type caller struct {
	userID string
	role   string
}

type callerSlot struct {
	c *caller
}

func withCallerSlot(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxCallerKey, &callerSlot{})
}

func callerFromSlot(ctx context.Context) *caller {
	if s, ok := ctx.Value(ctxCallerKey).(*callerSlot); ok {
		return s.c
	}
	return nil
}

func recordCaller(ctx context.Context, userID, role string) {
	if s, ok := ctx.Value(ctxCallerKey).(*callerSlot); ok {
		s.c = &caller{userID: userID, role: role}
	}
}
