// Package policy holds the credit business rules and the evaluator that runs
// them against one application.
package policy

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"coopcredit/internal/amortization"
	"coopcredit/internal/domain"
)

// ReasonSeparator joins failure messages in a rejection reason.
const ReasonSeparator = " | "

// Verdict is the per-policy outcome of a single evaluation pass.
type Verdict struct {
	Policy  string         `json:"policy"`
	Passed  bool           `json:"passed"`
	Message string         `json:"message"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// Policy is an independently evaluable credit rule. Lower priorities are
// reported first.
type Policy interface {
	Name() string
	Priority() int
	Evaluate(in Input) Verdict
}

// RiskSignal is the part of the external assessment the rules consume.
type RiskSignal struct {
	Score int
	Level domain.RiskLevel
}

// Quote is the amortization result shared by every rule.
type Quote struct {
	Payment decimal.Decimal
	Ratio   decimal.Decimal
}

// Input is the read-only data every policy receives. Build it with NewInput so
// the quote is computed once.
type Input struct {
	Application *domain.CreditApplication
	Affiliate   *domain.Affiliate
	Risk        RiskSignal
	Quote       Quote
}

// NewInput prices the application against the affiliate's income.
func NewInput(app *domain.CreditApplication, aff *domain.Affiliate, risk RiskSignal) Input {
	payment := amortization.MonthlyPayment(app.Amount, app.AnnualRate, app.TermMonths)
	return Input{
		Application: app,
		Affiliate:   aff,
		Risk:        risk,
		Quote: Quote{
			Payment: payment,
			Ratio:   amortization.PaymentToIncomeRatio(payment, aff.MonthlyIncome),
		},
	}
}

// Result aggregates the verdicts of one pass in priority order.
type Result struct {
	Verdicts []Verdict
}

// Approved is true only when every policy passed.
func (r Result) Approved() bool {
	for _, v := range r.Verdicts {
		if !v.Passed {
			return false
		}
	}
	return true
}

// Failed returns the failing verdicts in priority order.
func (r Result) Failed() []Verdict {
	var failed []Verdict
	for _, v := range r.Verdicts {
		if !v.Passed {
			failed = append(failed, v)
		}
	}
	return failed
}

// Reason joins the failure messages. Empty when approved.
func (r Result) Reason() string {
	failed := r.Failed()
	msgs := make([]string, 0, len(failed))
	for _, v := range failed {
		msgs = append(msgs, v.Message)
	}
	return strings.Join(msgs, ReasonSeparator)
}

// Evaluator runs a fixed, priority-sorted set of policies.
type Evaluator struct {
	policies []Policy
}

// NewEvaluator sorts the policies by priority once. Ties keep registration order.
func NewEvaluator(policies ...Policy) *Evaluator {
	sorted := make([]Policy, len(policies))
	copy(sorted, policies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})
	return &Evaluator{policies: sorted}
}

// Policies returns the policies in evaluation order.
func (e *Evaluator) Policies() []Policy {
	out := make([]Policy, len(e.policies))
	copy(out, e.policies)
	return out
}

// Evaluate runs every policy without short-circuiting. Policies only read the
// shared input, so they run concurrently and each writes its own slot.
func (e *Evaluator) Evaluate(in Input) Result {
	verdicts := make([]Verdict, len(e.policies))

	var g errgroup.Group
	for i, p := range e.policies {
		g.Go(func() error {
			verdicts[i] = p.Evaluate(in)
			return nil
		})
	}
	_ = g.Wait()

	return Result{Verdicts: verdicts}
}
