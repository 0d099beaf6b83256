// Package amortization computes French (annuity) loan payments with
// fixed-precision decimal arithmetic.
package amortization

import (
	"github.com/shopspring/decimal"
)

const (
	// RatePrecision is the number of fractional digits kept for the monthly
	// rate and for the annuity factor.
	RatePrecision int32 = 10
	// MoneyPrecision applies to payments.
	MoneyPrecision int32 = 2
	// RatioPrecision applies to payment-to-income ratios.
	RatioPrecision int32 = 4
)

var (
	hundred       = decimal.NewFromInt(100)
	monthsPerYear = decimal.NewFromInt(12)
)

// MonthlyRate converts an annual percentage rate into a monthly fraction.
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.
		DivRound(hundred, RatePrecision).
		DivRound(monthsPerYear, RatePrecision)
}

// MonthlyPayment returns the fixed periodic payment of a loan. A term of zero
// or less means the whole principal is due at once.
func MonthlyPayment(principal, annualRatePercent decimal.Decimal, termMonths int) decimal.Decimal {
	if termMonths <= 0 {
		return principal
	}

	n := decimal.NewFromInt(int64(termMonths))
	rate := MonthlyRate(annualRatePercent)
	if rate.IsZero() {
		return principal.DivRound(n, MoneyPrecision)
	}

	growth := pow(decimal.NewFromInt(1).Add(rate), termMonths)
	numerator := rate.Mul(growth)
	denominator := growth.Sub(decimal.NewFromInt(1))

	factor := numerator.DivRound(denominator, RatePrecision)
	return principal.Mul(factor).Round(MoneyPrecision)
}

// PaymentToIncomeRatio returns payment / income. Zero income yields zero.
func PaymentToIncomeRatio(payment, income decimal.Decimal) decimal.Decimal {
	if income.IsZero() {
		return decimal.Zero
	}
	return payment.DivRound(income, RatioPrecision)
}

// pow raises base to a non-negative integer power exactly.
func pow(base decimal.Decimal, exp int) decimal.Decimal {
	result := decimal.NewFromInt(1)
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(base)
		}
		base = base.Mul(base)
		exp >>= 1
	}
	return result
}
