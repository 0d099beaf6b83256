// Package risk wraps the external credit bureau behind retries, a shared
// circuit breaker and an offline fallback scorer.
package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"

	"coopcredit/pkg/logger"
)

// Fallback triggers, used as metric labels.
const (
	TriggerCircuitOpen   = "circuit_open"
	TriggerProviderError = "provider_error"
)

// RetrySettings bounds the primary path.
type RetrySettings struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// CallBudget caps the whole primary path including waits between attempts.
	CallBudget time.Duration
}

// DefaultRetrySettings mirrors the production defaults.
func DefaultRetrySettings() RetrySettings {
	return RetrySettings{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		CallBudget:      5 * time.Second,
	}
}

// Gateway is the single entry point the decision pipeline uses to score an
// applicant. EvaluateRisk always returns an assessment.
type Gateway struct {
	provider Provider
	breaker  *CircuitBreaker
	fallback *Fallback
	retry    RetrySettings
	metrics  *Metrics
	logger   logger.Logger
}

// NewGateway wires the resilience pieces around provider. metrics may be nil.
func NewGateway(provider Provider, breaker *CircuitBreaker, fallback *Fallback, retry RetrySettings, metrics *Metrics, log logger.Logger) *Gateway {
	d := DefaultRetrySettings()
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = d.MaxAttempts
	}
	if retry.InitialInterval <= 0 {
		retry.InitialInterval = d.InitialInterval
	}
	if retry.MaxInterval < retry.InitialInterval {
		retry.MaxInterval = retry.InitialInterval
	}
	if retry.CallBudget <= 0 {
		retry.CallBudget = d.CallBudget
	}

	return &Gateway{
		provider: provider,
		breaker:  breaker,
		fallback: fallback,
		retry:    retry,
		metrics:  metrics,
		logger:   log.With(map[string]interface{}{"component": "risk_gateway"}),
	}
}

// Breaker exposes the shared breaker for health reporting.
func (g *Gateway) Breaker() *CircuitBreaker {
	return g.breaker
}

// EvaluateRisk scores an applicant through the bureau, degrading to the
// conservative local score on any failure or while the circuit is open.
func (g *Gateway) EvaluateRisk(ctx context.Context, document string, amount decimal.Decimal, termMonths int) Assessment {
	ctx, cancel := context.WithTimeout(ctx, g.retry.CallBudget)
	defer cancel()

	req := Request{Document: document, Amount: amount, TermMonths: termMonths}
	var result *Assessment
	attempts := 0

	operation := func() error {
		attempts++
		if err := g.breaker.Allow(); err != nil {
			return backoff.Permanent(err)
		}

		start := time.Now()
		res, err := g.call(ctx, req)
		g.metrics.ObserveAttempt(err, time.Since(start))

		if err != nil {
			g.breaker.RecordFailure()
			if !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		g.breaker.RecordSuccess()
		result = res
		return nil
	}

	err := backoff.Retry(operation, g.backoffPolicy(ctx))
	if err == nil && result != nil {
		return *result
	}

	trigger := TriggerProviderError
	if errors.Is(err, ErrCircuitOpen) {
		trigger = TriggerCircuitOpen
	}
	g.metrics.IncrementFallback(trigger)

	fb := g.fallback.Assess(document, amount, termMonths)
	g.logger.Warn("Risk provider unavailable, using offline score", map[string]interface{}{
		"trigger":  trigger,
		"attempts": attempts,
		"error":    errString(err),
		"score":    fb.Score,
		"level":    fb.Level,
		"breaker":  g.breaker.State().String(),
	})
	return fb
}

// call invokes the provider and converts panics and nil results into errors.
func (g *Gateway) call(ctx context.Context, req Request) (res *Assessment, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = NewProviderError(ErrorInternal, ProviderRiskCentral, "provider panicked", fmt.Errorf("%v", r))
		}
	}()

	res, err = g.provider.Assess(ctx, req)
	if err == nil && (res == nil || res.Score <= 0) {
		err = NewProviderError(ErrorBadData, ProviderRiskCentral, "empty assessment", nil)
		res = nil
	}
	if res != nil {
		res.Source = SourceLive
	}
	return res, err
}

func (g *Gateway) backoffPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.retry.InitialInterval
	b.MaxInterval = g.retry.MaxInterval
	b.MaxElapsedTime = 0

	retries := uint64(0)
	if g.retry.MaxAttempts > 1 {
		retries = uint64(g.retry.MaxAttempts - 1)
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, retries), ctx)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
