package policy

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coopcredit/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixture(amount string, income string, rate string, term int) (*domain.CreditApplication, *domain.Affiliate) {
	app := &domain.CreditApplication{
		Amount:     d(amount),
		AnnualRate: d(rate),
		TermMonths: term,
		Status:     domain.ApplicationStatusPending,
	}
	aff := &domain.Affiliate{
		MonthlyIncome: d(income),
		MemberSince:   time.Now().AddDate(-1, 0, 0),
		Status:        domain.AffiliateStatusActive,
	}
	return app, aff
}

func TestPaymentToIncome_BoundaryIsInclusive(t *testing.T) {
	p := NewPaymentToIncome(d("0.40"))

	at := Input{Quote: Quote{Payment: d("1200000"), Ratio: d("0.4000")}}
	assert.True(t, p.Evaluate(at).Passed)

	over := Input{Quote: Quote{Payment: d("1200300"), Ratio: d("0.4001")}}
	v := p.Evaluate(over)
	assert.False(t, v.Passed)
	assert.Equal(t, NamePaymentToIncome, v.Policy)
	assert.Equal(t, "Payment-to-income ratio exceeds maximum: 40.01% > 40.00%", v.Message)
	assert.Equal(t, "0.4001", v.Detail["ratio"])
}

func TestMaxAmount_BoundaryIsInclusive(t *testing.T) {
	p := NewMaxAmount(d("5"))

	app, aff := fixture("15000000", "3000000", "15", 24)
	assert.True(t, p.Evaluate(Input{Application: app, Affiliate: aff}).Passed)

	app.Amount = d("15000000.01")
	v := p.Evaluate(Input{Application: app, Affiliate: aff})
	assert.False(t, v.Passed)
	assert.Contains(t, v.Message, "Requested amount exceeds maximum")
	assert.Equal(t, "15000000", v.Detail["maximum"])
}

func TestExternalRisk(t *testing.T) {
	p := NewExternalRisk()

	for _, level := range []domain.RiskLevel{domain.RiskLevelLow, domain.RiskLevelMedium} {
		assert.True(t, p.Evaluate(Input{Risk: RiskSignal{Score: 650, Level: level}}).Passed, level)
	}

	v := p.Evaluate(Input{Risk: RiskSignal{Score: 400, Level: domain.RiskLevelHigh}})
	assert.False(t, v.Passed)
	assert.Contains(t, v.Message, "HIGH")
	assert.Contains(t, v.Message, "400")
}

type stubPolicy struct {
	name     string
	priority int
	passed   bool
	calls    *int32
}

func (s stubPolicy) Name() string  { return s.name }
func (s stubPolicy) Priority() int { return s.priority }
func (s stubPolicy) Evaluate(Input) Verdict {
	if s.calls != nil {
		atomic.AddInt32(s.calls, 1)
	}
	return Verdict{Policy: s.name, Passed: s.passed, Message: s.name + " failed"}
}

func TestEvaluator_SortsStablyAndNeverShortCircuits(t *testing.T) {
	var calls int32
	e := NewEvaluator(
		stubPolicy{name: "c", priority: 30, passed: false, calls: &calls},
		stubPolicy{name: "a1", priority: 10, passed: false, calls: &calls},
		stubPolicy{name: "b", priority: 20, passed: true, calls: &calls},
		stubPolicy{name: "a2", priority: 10, passed: false, calls: &calls},
	)

	var order []string
	for _, p := range e.Policies() {
		order = append(order, p.Name())
	}
	assert.Equal(t, []string{"a1", "a2", "b", "c"}, order)

	res := e.Evaluate(Input{})
	assert.EqualValues(t, 4, atomic.LoadInt32(&calls))
	require.Len(t, res.Verdicts, 4)
	assert.False(t, res.Approved())
	assert.Len(t, res.Failed(), 3)
	assert.Equal(t, "a1 failed | a2 failed | c failed", res.Reason())
}

func TestEvaluator_AllPassing(t *testing.T) {
	e := NewEvaluator(stubPolicy{name: "x", priority: 1, passed: true})
	res := e.Evaluate(Input{})
	assert.True(t, res.Approved())
	assert.Empty(t, res.Reason())
}

func TestDefaults_Scenarios(t *testing.T) {
	e := NewEvaluator(Defaults(DefaultLimits())...)

	t.Run("approved with low risk", func(t *testing.T) {
		app, aff := fixture("5000000", "3000000", "15", 24)
		in := NewInput(app, aff, RiskSignal{Score: 750, Level: domain.RiskLevelLow})

		assert.True(t, d("0.0808").Equal(in.Quote.Ratio), in.Quote.Ratio.String())
		assert.True(t, e.Evaluate(in).Approved())
	})

	t.Run("rejected on high risk only", func(t *testing.T) {
		app, aff := fixture("5000000", "3000000", "15", 24)
		res := e.Evaluate(NewInput(app, aff, RiskSignal{Score: 400, Level: domain.RiskLevelHigh}))

		assert.False(t, res.Approved())
		require.Len(t, res.Failed(), 1)
		assert.Equal(t, NameExternalRisk, res.Failed()[0].Policy)
		assert.Contains(t, res.Reason(), "HIGH")
	})

	t.Run("amount above income multiple rejected regardless of risk", func(t *testing.T) {
		app, aff := fixture("20000000", "3000000", "15", 24)
		res := e.Evaluate(NewInput(app, aff, RiskSignal{Score: 800, Level: domain.RiskLevelLow}))

		assert.False(t, res.Approved())
		assert.Contains(t, res.Reason(), "exceeds maximum")

		var names []string
		for _, v := range res.Failed() {
			names = append(names, v.Policy)
		}
		assert.Contains(t, names, NameMaxAmount)
	})

	t.Run("failures reported in priority order", func(t *testing.T) {
		app, aff := fixture("20000000", "1000000", "30", 12)
		res := e.Evaluate(NewInput(app, aff, RiskSignal{Score: 350, Level: domain.RiskLevelHigh}))

		failed := res.Failed()
		require.Len(t, failed, 3)
		assert.Equal(t, NamePaymentToIncome, failed[0].Policy)
		assert.Equal(t, NameMaxAmount, failed[1].Policy)
		assert.Equal(t, NameExternalRisk, failed[2].Policy)
	})
}
