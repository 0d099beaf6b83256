// ==============================================================================
// CREDIT SERVICE MAIN - cmd/credit/main.go
// ==============================================================================
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"coopcredit/internal/affiliate"
	"coopcredit/internal/application"
	"coopcredit/internal/decision"
	decisionmetrics "coopcredit/internal/decision/metrics"
	"coopcredit/internal/handler"
	"coopcredit/internal/middleware"
	"coopcredit/internal/policy"
	"coopcredit/internal/repository/postgres"
	"coopcredit/internal/risk"
	"coopcredit/pkg/cache"
	"coopcredit/pkg/config"
	"coopcredit/pkg/logger"
	"coopcredit/pkg/validator"
)

func main() {
	// A missing .env is fine outside local development.
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewWithLevel("credit-service", logger.ParseLevel(cfg.Log.Level))

	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}
	if err := cfg.ValidateCredit(); err != nil {
		log.Fatal("Invalid credit configuration", map[string]interface{}{"error": err.Error()})
	}

	log.Info("Starting Credit Service", map[string]interface{}{
		"port":              cfg.Server.Port,
		"min_tenure_months": cfg.Credit.MinTenureMonths,
		"risk_central_url":  cfg.RiskCentral.URL,
	})

	// Database connection
	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	log.Info("Database connected", nil)

	// Redis connection
	redisCache, err := cache.NewRedisCache(context.Background(), cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to connect to Redis", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer redisCache.Close()

	log.Info("Redis connected", nil)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize repositories
	affiliateRepo := postgres.NewAffiliateRepository(db)
	applicationRepo := postgres.NewApplicationRepository(db)

	// Risk gateway
	gateway := newRiskGateway(cfg.RiskCentral, risk.NewMetrics(reg), log)

	// Initialize services
	creditMetrics := decisionmetrics.New(reg)
	evaluator := policy.NewEvaluator(policy.Defaults(policy.Limits{
		MaxPaymentToIncome:  cfg.Credit.MaxPaymentToIncome,
		MaxAmountMultiplier: cfg.Credit.MaxAmountIncomeMultiplier,
	})...)

	affiliateService := affiliate.NewService(affiliateRepo, log)
	applicationService := application.NewService(applicationRepo, affiliateRepo, creditMetrics, log)
	decisionService := decision.NewService(
		applicationRepo,
		affiliateRepo,
		gateway,
		evaluator,
		decision.Config{MinTenureMonths: cfg.Credit.MinTenureMonths},
		log,
		decision.WithMetrics(creditMetrics),
	)

	// Initialize handlers
	val := validator.New()
	authMW := middleware.NewAuthMiddleware(cfg.JWT.Secret, cfg.JWT.Issuer)
	idemMW := middleware.NewIdempotencyMiddleware(redisCache, cfg.Idempotency.TTL, log)
	rateLimiter := middleware.NewRateLimiter(redisCache, cfg.RateLimit.Requests, cfg.RateLimit.Window)

	r := handler.NewRouter(handler.RouterConfig{
		Affiliates:   handler.NewAffiliateHandler(affiliateService, val, log),
		Applications: handler.NewApplicationHandler(applicationService, decisionService, val, log),
		System:       handler.NewSystemHandler(db, handler.PingFunc(redisCache.Ping), gateway.Breaker(), log),
		Authenticate: authMW.Authenticate,
		Idempotency:  idemMW.Require,
		RateLimit:    rateLimiter.Limit,
		Gatherer:     reg,
		Logger:       log,
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		log.Info("Credit service started", map[string]interface{}{
			"address": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down credit service...", nil)

	// In-flight evaluations finish their commit before the server returns.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Credit service forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log.Info("Credit service stopped gracefully", nil)
}

func newRiskGateway(rc config.RiskCentralConfig, metrics *risk.Metrics, log logger.Logger) *risk.Gateway {
	breaker := risk.NewCircuitBreaker("risk-central", risk.BreakerSettings{
		WindowSize:           rc.BreakerWindowSize,
		MinimumCalls:         rc.BreakerMinimumCalls,
		FailureRateThreshold: rc.BreakerFailureRate,
		OpenDuration:         rc.BreakerOpenDuration,
		HalfOpenCalls:        rc.BreakerHalfOpenCalls,
	}, risk.WithStateChange(func(name string, from, to risk.State) {
		metrics.SetBreakerState(name, to)
		log.Warn("Risk circuit state changed", map[string]interface{}{
			"breaker": name,
			"from":    from.String(),
			"to":      to.String(),
		})
	}))
	metrics.SetBreakerState(breaker.Name(), risk.StateClosed)

	return risk.NewGateway(
		risk.NewHTTPProvider(rc.URL, rc.RequestTimeout),
		breaker,
		risk.NewFallback(risk.NewRandomJitter(time.Now().UnixNano())),
		risk.RetrySettings{
			MaxAttempts:     rc.RetryMaxAttempts,
			InitialInterval: rc.RetryInitialInterval,
			MaxInterval:     rc.RetryMaxInterval,
			CallBudget:      rc.CallBudget,
		},
		metrics,
		log,
	)
}
