// Package middleware hosts authentication, logging, and rate limiting middleware.
package middleware

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles carried in the "role" claim.
const (
	RoleAdmin     = "ADMIN"
	RoleAnalyst   = "ANALYST"
	RoleAffiliate = "AFFILIATE"
)

// contextKey avoids collisions when storing values in request contexts.
type contextKey string

const (
	ctxUserIDKey      contextKey = "user_id"
	ctxRoleKey        contextKey = "role"
	ctxAffiliateIDKey contextKey = "affiliate_id"
)

// AuthMiddleware validates bearer JWTs and injects caller identity into the context.
type AuthMiddleware struct {
	jwtSecret string
	issuer    string
}

// NewAuthMiddleware constructs an AuthMiddleware. An empty issuer disables the iss check.
func NewAuthMiddleware(secret, issuer string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: secret, issuer: issuer}
}

// Authenticate enforces bearer auth and populates caller details on the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if strings.TrimSpace(authHeader) == "" {
			jsonError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			jsonError(w, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		opts := []jwt.ParserOption{
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		}
		if m.issuer != "" {
			opts = append(opts, jwt.WithIssuer(m.issuer))
		}

		token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
			return []byte(m.jwtSecret), nil
		}, opts...)
		if err != nil || !token.Valid {
			jsonError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			jsonError(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		sub, err := claims.GetSubject()
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "Invalid subject in token")
			return
		}
		userID, err := uuid.Parse(sub)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "Invalid subject format")
			return
		}

		role, _ := claims["role"].(string)
		role = strings.ToUpper(role)
		if role != RoleAdmin && role != RoleAnalyst && role != RoleAffiliate {
			jsonError(w, http.StatusUnauthorized, "Invalid role in token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserIDKey, userID)
		ctx = context.WithValue(ctx, ctxRoleKey, role)
		if raw, ok := claims["affiliate_id"].(string); ok {
			if affID, err := uuid.Parse(raw); err == nil {
				ctx = context.WithValue(ctx, ctxAffiliateIDKey, affID)
			}
		}

		recordCaller(ctx, userID.String(), role)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects callers whose role is not listed. It must run after Authenticate.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok {
				jsonError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			if _, ok := allowed[role]; !ok {
				jsonError(w, http.StatusForbidden, "Insufficient role for this operation")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the authenticated caller's UUID from context.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxUserIDKey).(uuid.UUID)
	return id, ok
}

// RoleFromContext returns the authenticated caller's role from context.
func RoleFromContext(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxRoleKey).(string)
	return s, ok
}

// AffiliateIDFromContext returns the affiliate an AFFILIATE token is bound to.
func AffiliateIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(ctxAffiliateIDKey).(uuid.UUID)
	return id, ok
}

// WithIdentity attaches caller identity to ctx. Used by tests and internal callers.
func WithIdentity(ctx context.Context, userID uuid.UUID, role string, affiliateID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, ctxUserIDKey, userID)
	ctx = context.WithValue(ctx, ctxRoleKey, role)
	if affiliateID != uuid.Nil {
		ctx = context.WithValue(ctx, ctxAffiliateIDKey, affiliateID)
	}
	return ctx
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed := os.Getenv("CORS_ALLOWED_ORIGINS")
		origin := r.Header.Get("Origin")
		if strings.TrimSpace(allowed) != "" {
			// Restrict to configured origins
			for _, o := range strings.Split(allowed, ",") {
				if strings.EqualFold(strings.TrimSpace(o), origin) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
					break
				}
			}
		} else if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, Idempotency-Key")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
