// ==============================================================================
// DECISION SERVICE - internal/decision/service.go
// ==============================================================================
// Package decision runs the credit decision pipeline for a pending
// application: eligibility checks, external risk, policy evaluation and the
// atomic commit of the outcome.
package decision

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coopcredit/internal/domain"
	"coopcredit/internal/policy"
	"coopcredit/internal/risk"
	pkgerrors "coopcredit/pkg/errors"
	"coopcredit/pkg/logger"
)

// DefaultMinTenureMonths is the minimum membership age to apply for credit.
const DefaultMinTenureMonths = 6

type ApplicationStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.CreditApplication, error)
	// Save persists the status change and its evaluation together.
	Save(ctx context.Context, app *domain.CreditApplication) error
}

type AffiliateStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Affiliate, error)
}

// RiskAssessor always yields an assessment, degraded or not.
type RiskAssessor interface {
	EvaluateRisk(ctx context.Context, document string, amount decimal.Decimal, termMonths int) risk.Assessment
}

type Metrics interface {
	IncrementOutcome(status, riskSource string)
	IncrementFailure(code string)
	ObserveEvaluateLatency(d time.Duration)
}

type Config struct {
	MinTenureMonths int
}

func DefaultConfig() Config {
	return Config{MinTenureMonths: DefaultMinTenureMonths}
}

type Service struct {
	applications ApplicationStore
	affiliates   AffiliateStore
	risk         RiskAssessor
	evaluator    *policy.Evaluator
	cfg          Config
	metrics      Metrics
	logger       logger.Logger
	clock        func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source used for tenure and evaluation timestamps.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func NewService(applications ApplicationStore, affiliates AffiliateStore, assessor RiskAssessor, evaluator *policy.Evaluator, cfg Config, log logger.Logger, opts ...Option) *Service {
	if cfg.MinTenureMonths < 0 {
		cfg.MinTenureMonths = DefaultMinTenureMonths
	}
	if log == nil {
		log = logger.NewNop()
	}
	s := &Service{
		applications: applications,
		affiliates:   affiliates,
		risk:         assessor,
		evaluator:    evaluator,
		cfg:          cfg,
		metrics:      noopMetrics{},
		logger:       log,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate decides a pending application. Precondition failures return before
// the risk provider is contacted and leave the application untouched. Once
// risk assessment starts the evaluation runs to completion even if ctx is
// cancelled.
func (s *Service) Evaluate(ctx context.Context, applicationID uuid.UUID) (*domain.CreditApplication, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveEvaluateLatency(time.Since(start)) }()

	app, aff, err := s.checkPreconditions(ctx, applicationID)
	if err != nil {
		s.fail(applicationID, err)
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)

	assessment := s.risk.EvaluateRisk(ctx, aff.Document, app.Amount, app.TermMonths)

	in := policy.NewInput(app, aff, policy.RiskSignal{Score: assessment.Score, Level: assessment.Level})
	result := s.evaluator.Evaluate(in)

	evaluatedAt := s.clock()
	var eval *domain.RiskEvaluation
	if result.Approved() {
		eval = domain.NewApprovedEvaluation(assessment.Score, assessment.Level, assessment.Detail, in.Quote.Ratio, evaluatedAt)
	} else {
		eval = domain.NewRejectedEvaluation(assessment.Score, assessment.Level, assessment.Detail, in.Quote.Ratio, result.Reason(), evaluatedAt)
	}

	if err := app.Decide(eval, evaluatedAt); err != nil {
		derr := invalidState(app)
		s.fail(applicationID, derr)
		return nil, derr
	}

	if err := s.applications.Save(ctx, app); err != nil {
		derr := persistenceFailure(app.ID, err)
		s.fail(applicationID, derr)
		return nil, derr
	}

	s.metrics.IncrementOutcome(string(app.Status), string(assessment.Source))

	fields := map[string]interface{}{
		"application_id":    app.ID,
		"affiliate_id":      aff.ID,
		"status":            app.Status,
		"score":             assessment.Score,
		"risk_level":        assessment.Level,
		"risk_source":       assessment.Source,
		"degraded":          assessment.Degraded(),
		"payment_to_income": in.Quote.Ratio.String(),
	}
	if !result.Approved() {
		fields["reason"] = result.Reason()
	}
	s.logger.Info("Credit application decided", fields)

	return app, nil
}

func (s *Service) checkPreconditions(ctx context.Context, applicationID uuid.UUID) (*domain.CreditApplication, *domain.Affiliate, error) {
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrApplicationNotFound) {
			return nil, nil, applicationNotFound(applicationID)
		}
		return nil, nil, lookupFailure("application", applicationID, err)
	}
	if app == nil {
		return nil, nil, applicationNotFound(applicationID)
	}

	if !app.IsPending() {
		return nil, nil, invalidState(app)
	}

	aff, err := s.affiliates.FindByID(ctx, app.AffiliateID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrAffiliateNotFound) {
			return nil, nil, affiliateNotFound(app.AffiliateID)
		}
		return nil, nil, lookupFailure("affiliate", app.AffiliateID, err)
	}
	if aff == nil {
		return nil, nil, affiliateNotFound(app.AffiliateID)
	}

	at := s.clock()
	if !aff.EligibleForCredit(at, s.cfg.MinTenureMonths) {
		if !aff.IsActive() {
			return nil, nil, affiliateInactive(aff)
		}
		return nil, nil, insufficientTenure(aff, aff.TenureMonths(at), s.cfg.MinTenureMonths)
	}

	return app, aff, nil
}

func (s *Service) fail(applicationID uuid.UUID, err error) {
	fields := map[string]interface{}{
		"application_id": applicationID,
		"error":          err,
	}
	code := string(CodePersistence)
	if derr, ok := AsError(err); ok {
		code = string(derr.Code)
	}
	fields["code"] = code
	s.metrics.IncrementFailure(code)

	if code == string(CodePersistence) {
		s.logger.Error("Credit evaluation failed", fields)
		return
	}
	s.logger.Warn("Credit evaluation refused", fields)
}

type noopMetrics struct{}

func (noopMetrics) IncrementOutcome(string, string)      {}
func (noopMetrics) IncrementFailure(string)              {}
func (noopMetrics) ObserveEvaluateLatency(time.Duration) {}
