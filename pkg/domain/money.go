package domain

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var moneyPrinter = message.NewPrinter(language.English)

// FormatMoney renders amount as "$1,234,567.89". The digits come from the
// decimal itself so large amounts keep every cent.
func FormatMoney(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, cents, _ := strings.Cut(fixed, ".")

	sign := ""
	if amount.Round(2).IsNegative() {
		sign = "-"
	}
	return sign + "$" + group(whole) + "." + cents
}

// group inserts thousands separators into a run of digits. Values that fit
// an int64 go through the locale printer.
func group(digits string) string {
	n, err := decimal.NewFromString(digits)
	if err == nil && n.LessThanOrEqual(decimal.NewFromInt(math.MaxInt64)) {
		return moneyPrinter.Sprintf("%d", n.IntPart())
	}
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
