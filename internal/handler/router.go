package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coopcredit/internal/middleware"
	"coopcredit/pkg/logger"
)

// Middleware is the signature shared by every middleware in this service.
type Middleware func(http.Handler) http.Handler

// RouterConfig collects what NewRouter needs. Optional middleware may be nil.
type RouterConfig struct {
	Affiliates   *AffiliateHandler
	Applications *ApplicationHandler
	System       *SystemHandler

	Authenticate Middleware
	Idempotency  Middleware
	RateLimit    Middleware

	Gatherer prometheus.Gatherer
	Logger   logger.Logger
}

// NewRouter wires the public probes and the authenticated /api/v1 surface.
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.CORS)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Log)

	r.HandleFunc("/health", cfg.System.Health).Methods("GET")
	r.HandleFunc("/ready", cfg.System.Ready).Methods("GET")
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(mux.MiddlewareFunc(cfg.Authenticate))
	if cfg.RateLimit != nil {
		api.Use(mux.MiddlewareFunc(cfg.RateLimit))
	}

	admin := middleware.RequireRole(middleware.RoleAdmin)
	staff := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAnalyst)
	applicants := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAffiliate)
	anyone := middleware.RequireRole(middleware.RoleAdmin, middleware.RoleAnalyst, middleware.RoleAffiliate)

	api.Handle("/affiliates", chain(cfg.Affiliates.CreateAffiliate, admin)).Methods("POST")
	api.Handle("/affiliates", chain(cfg.Affiliates.ListAffiliates, staff)).Methods("GET")
	api.Handle("/affiliates/{id}", chain(cfg.Affiliates.GetAffiliate, staff)).Methods("GET")
	api.Handle("/affiliates/{id}", chain(cfg.Affiliates.UpdateAffiliate, admin)).Methods("PUT")

	api.Handle("/applications", chain(cfg.Applications.CreateApplication, applicants, cfg.Idempotency)).Methods("POST")
	api.Handle("/applications", chain(cfg.Applications.ListApplications, staff)).Methods("GET")
	api.Handle("/applications/{id}", chain(cfg.Applications.GetApplication, anyone)).Methods("GET")
	api.Handle("/applications/{id}/evaluate", chain(cfg.Applications.Evaluate, staff)).Methods("POST")

	return r
}

// chain applies mws outermost first. Nil entries are skipped.
func chain(h http.HandlerFunc, mws ...func(http.Handler) http.Handler) http.Handler {
	var out http.Handler = h
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			out = mws[i](out)
		}
	}
	return out
}
