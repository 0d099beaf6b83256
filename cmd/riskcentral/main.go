// ==============================================================================
// RISK CENTRAL SIMULATOR - cmd/riskcentral/main.go
// ==============================================================================
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"coopcredit/internal/middleware"
	"coopcredit/internal/riskcentral"
	"coopcredit/pkg/config"
	"coopcredit/pkg/logger"
	"coopcredit/pkg/validator"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewWithLevel("risk-central", logger.ParseLevel(cfg.Log.Level))

	addr := ":" + getEnv("RISK_CENTRAL_PORT", "8081")

	r := mux.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CorrelationID)
	r.Use(middleware.NewLoggingMiddleware(log).Log)
	riskcentral.NewHandler(
		validator.New(),
		log,
		riskcentral.WithFailureRate(cfg.RiskCentral.FailureRate),
	).Routes(r)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Risk central simulator started", map[string]interface{}{
			"address":      addr,
			"failure_rate": cfg.RiskCentral.FailureRate,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", map[string]interface{}{"error": err.Error()})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Risk central forced to shutdown", map[string]interface{}{"error": err.Error()})
	}
	log.Info("Risk central stopped", nil)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
