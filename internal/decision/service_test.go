package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"coopcredit/internal/decision/metrics"
	"coopcredit/internal/domain"
	"coopcredit/internal/policy"
	"coopcredit/internal/risk"
	pkgerrors "coopcredit/pkg/errors"
	"coopcredit/pkg/logger"
)

// --- Mocks ---

type MockApplicationStore struct {
	mock.Mock
}

func (m *MockApplicationStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.CreditApplication, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditApplication), args.Error(1)
}

func (m *MockApplicationStore) Save(ctx context.Context, app *domain.CreditApplication) error {
	args := m.Called(ctx, app)
	return args.Error(0)
}

type MockAffiliateStore struct {
	mock.Mock
}

func (m *MockAffiliateStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.Affiliate, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Affiliate), args.Error(1)
}

type MockRiskAssessor struct {
	mock.Mock
}

func (m *MockRiskAssessor) EvaluateRisk(ctx context.Context, document string, amount decimal.Decimal, termMonths int) risk.Assessment {
	args := m.Called(ctx, document, amount, termMonths)
	return args.Get(0).(risk.Assessment)
}

// --- Fixtures ---

var now = time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	apps     *MockApplicationStore
	affs     *MockAffiliateStore
	assessor *MockRiskAssessor
	metrics  *metrics.Metrics
	svc      *Service
}

func newFixture() *fixture {
	f := &fixture{
		apps:     new(MockApplicationStore),
		affs:     new(MockAffiliateStore),
		assessor: new(MockRiskAssessor),
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	evaluator := policy.NewEvaluator(policy.Defaults(policy.DefaultLimits())...)
	f.svc = NewService(f.apps, f.affs, f.assessor, evaluator, DefaultConfig(), logger.NewNop(),
		WithClock(func() time.Time { return now }),
		WithMetrics(f.metrics),
	)
	return f
}

func affiliate(tenureMonths int) *domain.Affiliate {
	return &domain.Affiliate{
		ID:            uuid.New(),
		Document:      "1017654321",
		FullName:      "Ana Restrepo",
		MonthlyIncome: decimal.NewFromInt(3_000_000),
		MemberSince:   now.AddDate(0, -tenureMonths, 0),
		Status:        domain.AffiliateStatusActive,
	}
}

func application(aff *domain.Affiliate, amount int64) *domain.CreditApplication {
	return &domain.CreditApplication{
		ID:          uuid.New(),
		AffiliateID: aff.ID,
		Amount:      decimal.NewFromInt(amount),
		TermMonths:  24,
		AnnualRate:  decimal.NewFromInt(15),
		Status:      domain.ApplicationStatusPending,
		Version:     1,
	}
}

func live(score int) risk.Assessment {
	return risk.Assessment{
		Document: "1017654321",
		Score:    score,
		Level:    domain.LevelForScore(score),
		Detail:   "bureau detail",
		Source:   risk.SourceLive,
	}
}

// --- Tests ---

func TestEvaluate_ApprovesLowRiskApplication(t *testing.T) {
	f := newFixture()
	aff := affiliate(12)
	app := application(aff, 5_000_000)

	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.affs.On("FindByID", mock.Anything, aff.ID).Return(aff, nil)
	f.assessor.On("EvaluateRisk", mock.Anything, aff.Document, app.Amount, 24).Return(live(750))
	f.apps.On("Save", mock.Anything, app).Return(nil)

	got, err := f.svc.Evaluate(context.Background(), app.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationStatusApproved, got.Status)
	require.NotNil(t, got.Evaluation)
	assert.True(t, got.Evaluation.Approved())
	assert.Equal(t, domain.ApprovedReason, got.Evaluation.Reason())
	assert.Equal(t, 750, got.Evaluation.Score())
	assert.Equal(t, domain.RiskLevelLow, got.Evaluation.Level())
	assert.True(t, decimal.RequireFromString("0.0808").Equal(got.Evaluation.PaymentToIncome()))
	assert.Equal(t, now, got.Evaluation.EvaluatedAt())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DecisionOutcome.WithLabelValues("APPROVED", "live")))

	f.apps.AssertExpectations(t)
	f.assessor.AssertExpectations(t)
}

func TestEvaluate_RejectsHighRisk(t *testing.T) {
	f := newFixture()
	aff := affiliate(12)
	app := application(aff, 5_000_000)

	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.affs.On("FindByID", mock.Anything, aff.ID).Return(aff, nil)
	f.assessor.On("EvaluateRisk", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(live(400))
	f.apps.On("Save", mock.Anything, app).Return(nil)

	got, err := f.svc.Evaluate(context.Background(), app.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationStatusRejected, got.Status)
	assert.False(t, got.Evaluation.Approved())
	assert.Contains(t, got.Evaluation.Reason(), "HIGH")
	assert.Equal(t, domain.RiskLevelHigh, got.Evaluation.Level())
}

func TestEvaluate_RejectsAmountAboveIncomeMultiple(t *testing.T) {
	f := newFixture()
	aff := affiliate(12)
	app := application(aff, 20_000_000)

	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.affs.On("FindByID", mock.Anything, aff.ID).Return(aff, nil)
	f.assessor.On("EvaluateRisk", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(live(820))
	f.apps.On("Save", mock.Anything, app).Return(nil)

	got, err := f.svc.Evaluate(context.Background(), app.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationStatusRejected, got.Status)
	assert.Contains(t, got.Evaluation.Reason(), "exceeds maximum")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DecisionOutcome.WithLabelValues("REJECTED", "live")))
}

func TestEvaluate_InsufficientTenureNeverReachesRiskProvider(t *testing.T) {
	f := newFixture()
	aff := affiliate(2)
	app := application(aff, 5_000_000)

	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.affs.On("FindByID", mock.Anything, aff.ID).Return(aff, nil)

	got, err := f.svc.Evaluate(context.Background(), app.ID)

	assert.Nil(t, got)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pkgerrors.ErrInsufficientTenure))

	derr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeInsufficientTenure, derr.Code)
	assert.Equal(t, 2, derr.Details["actual_months"])
	assert.Equal(t, 6, derr.Details["required_months"])

	assert.Equal(t, domain.ApplicationStatusPending, app.Status)
	assert.Nil(t, app.Evaluation)
	f.assessor.AssertNotCalled(t, "EvaluateRisk", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.apps.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DecisionFailure.WithLabelValues(string(CodeInsufficientTenure))))
}

func TestEvaluate_TenureBoundary(t *testing.T) {
	f := newFixture()
	aff := affiliate(6)
	app := application(aff, 5_000_000)

	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.affs.On("FindByID", mock.Anything, aff.ID).Return(aff, nil)
	f.assessor.On("EvaluateRisk", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(live(750))
	f.apps.On("Save", mock.Anything, app).Return(nil)

	_, err := f.svc.Evaluate(context.Background(), app.ID)
	require.NoError(t, err)
}

func TestEvaluate_Preconditions(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture, app *domain.CreditApplication, aff *domain.Affiliate)
		code     Code
		sentinel error
	}{
		{
			name: "application not found",
			setup: func(f *fixture, app *domain.CreditApplication, _ *domain.Affiliate) {
				f.apps.On("FindByID", mock.Anything, app.ID).Return(nil, pkgerrors.ErrApplicationNotFound)
			},
			code:     CodeNotFound,
			sentinel: pkgerrors.ErrApplicationNotFound,
		},
		{
			name: "application already decided",
			setup: func(f *fixture, app *domain.CreditApplication, _ *domain.Affiliate) {
				app.Status = domain.ApplicationStatusApproved
				f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
			},
			code:     CodeInvalidState,
			sentinel: pkgerrors.ErrApplicationNotPending,
		},
		{
			name: "affiliate not found",
			setup: func(f *fixture, app *domain.CreditApplication, aff *domain.Affiliate) {
				f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
				f.affs.On("FindByID", mock.Anything, aff.ID).Return(nil, pkgerrors.ErrAffiliateNotFound)
			},
			code:     CodeNotFound,
			sentinel: pkgerrors.ErrAffiliateNotFound,
		},
		{
			name: "affiliate inactive",
			setup: func(f *fixture, app *domain.CreditApplication, aff *domain.Affiliate) {
				aff.Status = domain.AffiliateStatusInactive
				f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
				f.affs.On("FindByID", mock.Anything, aff.ID).Return(aff, nil)
			},
			code:     CodeAffiliateInactive,
			sentinel: pkgerrors.ErrAffiliateInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			aff := affiliate(24)
			app := application(aff, 5_000_000)
			tt.setup(f, app, aff)

			got, err := f.svc.Evaluate(context.Background(), app.ID)

			assert.Nil(t, got)
			derr, ok := AsError(err)
			require.True(t, ok, "expected decision error, got %v", err)
			assert.Equal(t, tt.code, derr.Code)
			assert.ErrorIs(t, err, tt.sentinel)
			f.assessor.AssertNotCalled(t, "EvaluateRisk", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.apps.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		})
	}
}

func TestEvaluate_LookupFailureIsPersistenceError(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	f.apps.On("FindByID", mock.Anything, id).Return(nil, errors.New("connection reset"))

	_, err := f.svc.Evaluate(context.Background(), id)

	derr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodePersistence, derr.Code)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestEvaluate_SaveFailureIsPropagated(t *testing.T) {
	f := newFixture()
	aff := affiliate(12)
	app := application(aff, 5_000_000)

	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.affs.On("FindByID", mock.Anything, aff.ID).Return(aff, nil)
	f.assessor.On("EvaluateRisk", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(live(750))
	f.apps.On("Save", mock.Anything, app).Return(errors.New("disk full")).Once()

	got, err := f.svc.Evaluate(context.Background(), app.ID)

	assert.Nil(t, got)
	derr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodePersistence, derr.Code)
	f.apps.AssertNumberOfCalls(t, "Save", 1)
}

func TestEvaluate_ConcurrentModificationIsConflict(t *testing.T) {
	f := newFixture()
	aff := affiliate(12)
	app := application(aff, 5_000_000)

	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.affs.On("FindByID", mock.Anything, aff.ID).Return(aff, nil)
	f.assessor.On("EvaluateRisk", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(live(750))
	f.apps.On("Save", mock.Anything, app).Return(pkgerrors.ErrConcurrentModification)

	_, err := f.svc.Evaluate(context.Background(), app.ID)

	derr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, CodeConcurrentModification, derr.Code)
	assert.ErrorIs(t, err, pkgerrors.ErrConcurrentModification)
}

func TestEvaluate_DegradedAssessmentIsRecorded(t *testing.T) {
	f := newFixture()
	aff := affiliate(12)
	app := application(aff, 5_000_000)

	fallback := risk.NewFallback(nil).Assess(aff.Document, app.Amount, app.TermMonths)

	var buf bytes.Buffer
	evaluator := policy.NewEvaluator(policy.Defaults(policy.DefaultLimits())...)
	f.svc = NewService(f.apps, f.affs, f.assessor, evaluator, DefaultConfig(),
		logger.NewWithWriter("test", logger.LevelInfo, &buf),
		WithClock(func() time.Time { return now }),
		WithMetrics(f.metrics),
	)

	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.affs.On("FindByID", mock.Anything, aff.ID).Return(aff, nil)
	f.assessor.On("EvaluateRisk", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(fallback)
	f.apps.On("Save", mock.Anything, app).Return(nil)

	got, err := f.svc.Evaluate(context.Background(), app.ID)

	require.NoError(t, err)
	assert.Contains(t, got.Evaluation.Detail(), "OFFLINE")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DecisionOutcome.WithLabelValues(string(got.Status), "fallback")))

	var decided map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["message"] == "Credit application decided" {
			decided = entry
		}
	}
	require.NotNil(t, decided)
	assert.Equal(t, true, decided["degraded"])
	assert.Equal(t, "fallback", decided["risk_source"])
}

func TestEvaluate_CancelledRequestStillCommits(t *testing.T) {
	f := newFixture()
	aff := affiliate(12)
	app := application(aff, 5_000_000)

	ctx, cancel := context.WithCancel(context.Background())

	f.apps.On("FindByID", mock.Anything, app.ID).Return(app, nil)
	f.affs.On("FindByID", mock.Anything, aff.ID).Return(aff, nil)
	f.assessor.On("EvaluateRisk", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(live(750))
	f.apps.On("Save", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), app).Return(nil)

	got, err := f.svc.Evaluate(ctx, app.ID)

	require.NoError(t, err)
	assert.Equal(t, domain.ApplicationStatusApproved, got.Status)
	f.apps.AssertExpectations(t)
}

func TestNewService_NilMetricsIsSafe(t *testing.T) {
	apps := new(MockApplicationStore)
	id := uuid.New()
	apps.On("FindByID", mock.Anything, id).Return(nil, pkgerrors.ErrApplicationNotFound)

	svc := NewService(apps, new(MockAffiliateStore), new(MockRiskAssessor), policy.NewEvaluator(), DefaultConfig(), nil, WithMetrics(nil))
	_, err := svc.Evaluate(context.Background(), id)
	assert.ErrorIs(t, err, pkgerrors.ErrApplicationNotFound)
}
