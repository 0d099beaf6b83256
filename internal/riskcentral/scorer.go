// Package riskcentral simulates the external credit bureau. Scores are
// deterministic per document so that test runs are reproducible.
package riskcentral

import (
	"fmt"

	"github.com/shopspring/decimal"

	"coopcredit/internal/domain"
)

const (
	MinScore = domain.MinBureauScore
	MaxScore = domain.MaxBureauScore
)

// Evaluation is the bureau's answer for one applicant.
type Evaluation struct {
	Document  string           `json:"document"`
	Score     int              `json:"score"`
	RiskLevel domain.RiskLevel `json:"riskLevel"`
	Detail    string           `json:"detail"`
}

// Score maps a document onto [MinScore, MaxScore).
func Score(document string) int {
	seed := documentHash(document) % 1000
	return MinScore + int(seed*(MaxScore-MinScore)/1000)
}

// documentHash is the absolute value of the 31-multiplier polynomial string
// hash over UTF-16 code units, computed in 32-bit arithmetic. Keeping the
// exact function keeps scores stable across bureau implementations.
func documentHash(document string) int64 {
	var h int32
	for _, r := range document {
		if r >= 0x10000 {
			hi, lo := surrogates(r)
			h = 31*h + int32(hi)
			h = 31*h + int32(lo)
			continue
		}
		h = 31*h + int32(r)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return v
}

func surrogates(r rune) (uint16, uint16) {
	r -= 0x10000
	return uint16(0xD800 + (r>>10)&0x3FF), uint16(0xDC00 + r&0x3FF)
}

// Evaluate scores document and describes the result for the requested loan.
func Evaluate(document string, amount decimal.Decimal, termMonths int) Evaluation {
	score := Score(document)
	level := domain.LevelForScore(score)
	return Evaluation{
		Document:  document,
		Score:     score,
		RiskLevel: level,
		Detail:    detail(level, score, amount, termMonths),
	}
}

func detail(level domain.RiskLevel, score int, amount decimal.Decimal, termMonths int) string {
	loan := fmt.Sprintf("%s over %d months", domain.FormatMoney(amount), termMonths)
	// Consulted history records grow with the score band.
	records := 1 + (score-MinScore)/50

	switch level {
	case domain.RiskLevelLow:
		return fmt.Sprintf("Excellent credit history (score %d, %d records consulted). Low default risk. Approval recommended for %s.", score, records, loan)
	case domain.RiskLevelMedium:
		return fmt.Sprintf("Moderate credit history (score %d, %d records consulted). Medium risk. Further review recommended for %s.", score, records, loan)
	default:
		return fmt.Sprintf("Poor credit history (score %d, %d records consulted). High default risk. Not recommended for %s without additional collateral.", score, records, loan)
	}
}
