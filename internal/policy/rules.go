package policy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"coopcredit/internal/domain"
)

// Policy names as reported in verdicts.
const (
	NamePaymentToIncome = "PAYMENT_TO_INCOME_RATIO"
	NameMaxAmount       = "MAX_AMOUNT_INCOME_MULTIPLE"
	NameExternalRisk    = "EXTERNAL_RISK_LEVEL"
)

// Default limits.
var (
	DefaultMaxPaymentToIncome  = decimal.RequireFromString("0.40")
	DefaultMaxAmountMultiplier = decimal.NewFromInt(5)
)

// Limits are the configurable thresholds of the built-in rules.
type Limits struct {
	MaxPaymentToIncome  decimal.Decimal
	MaxAmountMultiplier decimal.Decimal
}

// DefaultLimits returns the cooperative's standard thresholds.
func DefaultLimits() Limits {
	return Limits{
		MaxPaymentToIncome:  DefaultMaxPaymentToIncome,
		MaxAmountMultiplier: DefaultMaxAmountMultiplier,
	}
}

// Defaults builds the built-in policy set for the given limits.
func Defaults(limits Limits) []Policy {
	return []Policy{
		NewPaymentToIncome(limits.MaxPaymentToIncome),
		NewMaxAmount(limits.MaxAmountMultiplier),
		NewExternalRisk(),
	}
}

func percent(ratio decimal.Decimal) string {
	return ratio.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

func money(amount decimal.Decimal) string {
	return domain.FormatMoney(amount)
}

// PaymentToIncome limits the monthly payment relative to monthly income.
type PaymentToIncome struct {
	max decimal.Decimal
}

func NewPaymentToIncome(max decimal.Decimal) *PaymentToIncome {
	return &PaymentToIncome{max: max}
}

func (p *PaymentToIncome) Name() string  { return NamePaymentToIncome }
func (p *PaymentToIncome) Priority() int { return 10 }

func (p *PaymentToIncome) Evaluate(in Input) Verdict {
	ratio := in.Quote.Ratio
	detail := map[string]any{
		"monthly_payment": in.Quote.Payment.StringFixed(2),
		"ratio":           ratio.String(),
		"max_ratio":       p.max.String(),
	}

	if ratio.LessThanOrEqual(p.max) {
		return Verdict{
			Policy:  p.Name(),
			Passed:  true,
			Message: fmt.Sprintf("Payment-to-income ratio within limit: %s <= %s", percent(ratio), percent(p.max)),
			Detail:  detail,
		}
	}
	return Verdict{
		Policy:  p.Name(),
		Passed:  false,
		Message: fmt.Sprintf("Payment-to-income ratio exceeds maximum: %s > %s", percent(ratio), percent(p.max)),
		Detail:  detail,
	}
}

// MaxAmount caps the requested amount at a multiple of monthly income.
type MaxAmount struct {
	multiplier decimal.Decimal
}

func NewMaxAmount(multiplier decimal.Decimal) *MaxAmount {
	return &MaxAmount{multiplier: multiplier}
}

func (p *MaxAmount) Name() string  { return NameMaxAmount }
func (p *MaxAmount) Priority() int { return 20 }

func (p *MaxAmount) Evaluate(in Input) Verdict {
	requested := in.Application.Amount
	limit := in.Affiliate.MonthlyIncome.Mul(p.multiplier)
	detail := map[string]any{
		"requested":  requested.String(),
		"maximum":    limit.String(),
		"multiplier": p.multiplier.String(),
	}

	if requested.LessThanOrEqual(limit) {
		return Verdict{
			Policy:  p.Name(),
			Passed:  true,
			Message: fmt.Sprintf("Requested amount within maximum: %s <= %s", money(requested), money(limit)),
			Detail:  detail,
		}
	}
	return Verdict{
		Policy:  p.Name(),
		Passed:  false,
		Message: fmt.Sprintf("Requested amount exceeds maximum: %s > %s", money(requested), money(limit)),
		Detail:  detail,
	}
}

// ExternalRisk rejects applicants the risk bureau places in the HIGH band.
type ExternalRisk struct{}

func NewExternalRisk() *ExternalRisk {
	return &ExternalRisk{}
}

func (p *ExternalRisk) Name() string  { return NameExternalRisk }
func (p *ExternalRisk) Priority() int { return 30 }

func (p *ExternalRisk) Evaluate(in Input) Verdict {
	detail := map[string]any{
		"score": in.Risk.Score,
		"level": string(in.Risk.Level),
	}

	if in.Risk.Level != domain.RiskLevelHigh {
		return Verdict{
			Policy:  p.Name(),
			Passed:  true,
			Message: fmt.Sprintf("Risk level %s (%d) is acceptable", in.Risk.Level, in.Risk.Score),
			Detail:  detail,
		}
	}
	return Verdict{
		Policy:  p.Name(),
		Passed:  false,
		Message: fmt.Sprintf("Risk level HIGH (%d). Does not meet the acceptable risk profile.", in.Risk.Score),
		Detail:  detail,
	}
}
