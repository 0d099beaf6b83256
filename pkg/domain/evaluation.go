package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RiskLevel is the coarse bucket derived from a numeric credit score
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "LOW"
	RiskLevelMedium RiskLevel = "MEDIUM"
	RiskLevelHigh   RiskLevel = "HIGH"
)

// Score band upper bounds, inclusive.
const (
	HighRiskMaxScore   = 500
	MediumRiskMaxScore = 700
)

// Bureau score range, inclusive.
const (
	MinBureauScore = 300
	MaxBureauScore = 950
)

// LevelForScore maps a score to its level: HIGH <= 500 < MEDIUM <= 700 < LOW.
func LevelForScore(score int) RiskLevel {
	switch {
	case score <= HighRiskMaxScore:
		return RiskLevelHigh
	case score <= MediumRiskMaxScore:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// ParseRiskLevel accepts the canonical names and the risk bureau's Spanish
// aliases (BAJO, MEDIO, ALTO).
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW", "BAJO":
		return RiskLevelLow, true
	case "MEDIUM", "MEDIO":
		return RiskLevelMedium, true
	case "HIGH", "ALTO":
		return RiskLevelHigh, true
	}
	return "", false
}

// ApprovedReason is the fixed confirmation attached to approved evaluations.
const ApprovedReason = "Application approved. Meets every credit policy."

// RiskEvaluation captures the outcome of one decision attempt. It is only
// built through NewApprovedEvaluation and NewRejectedEvaluation and has no
// setters.
type RiskEvaluation struct {
	score           int
	level           RiskLevel
	detail          string
	approved        bool
	reason          string
	paymentToIncome decimal.Decimal
	evaluatedAt     time.Time
}

// NewApprovedEvaluation records a positive decision.
func NewApprovedEvaluation(score int, level RiskLevel, detail string, ratio decimal.Decimal, at time.Time) *RiskEvaluation {
	return &RiskEvaluation{
		score:           score,
		level:           level,
		detail:          detail,
		approved:        true,
		reason:          ApprovedReason,
		paymentToIncome: ratio,
		evaluatedAt:     at,
	}
}

// NewRejectedEvaluation records a negative decision with the joined policy failures.
func NewRejectedEvaluation(score int, level RiskLevel, detail string, ratio decimal.Decimal, reasons string, at time.Time) *RiskEvaluation {
	return &RiskEvaluation{
		score:           score,
		level:           level,
		detail:          detail,
		approved:        false,
		reason:          reasons,
		paymentToIncome: ratio,
		evaluatedAt:     at,
	}
}

func (e *RiskEvaluation) Score() int                       { return e.score }
func (e *RiskEvaluation) Level() RiskLevel                 { return e.level }
func (e *RiskEvaluation) Detail() string                   { return e.detail }
func (e *RiskEvaluation) Approved() bool                   { return e.approved }
func (e *RiskEvaluation) Reason() string                   { return e.reason }
func (e *RiskEvaluation) PaymentToIncome() decimal.Decimal { return e.paymentToIncome }
func (e *RiskEvaluation) EvaluatedAt() time.Time           { return e.evaluatedAt }

type riskEvaluationJSON struct {
	Score           int             `json:"score"`
	Level           RiskLevel       `json:"level"`
	Detail          string          `json:"detail"`
	Approved        bool            `json:"approved"`
	Reason          string          `json:"reason"`
	PaymentToIncome decimal.Decimal `json:"payment_to_income"`
	EvaluatedAt     time.Time       `json:"evaluated_at"`
}

// MarshalJSON exposes the evaluation read-only.
func (e *RiskEvaluation) MarshalJSON() ([]byte, error) {
	return json.Marshal(riskEvaluationJSON{
		Score:           e.score,
		Level:           e.level,
		Detail:          e.detail,
		Approved:        e.approved,
		Reason:          e.reason,
		PaymentToIncome: e.paymentToIncome,
		EvaluatedAt:     e.evaluatedAt,
	})
}
