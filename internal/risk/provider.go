package risk

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"coopcredit/internal/domain"
)

// Request is what the risk bureau needs to score an applicant.
type Request struct {
	Document   string          `json:"document"`
	Amount     decimal.Decimal `json:"amount"`
	TermMonths int             `json:"term"`
}

// Source tells a live bureau assessment apart from a locally synthesized one.
type Source string

const (
	SourceLive     Source = "live"
	SourceFallback Source = "fallback"
)

// Assessment is the creditworthiness signal handed to the decision pipeline.
type Assessment struct {
	Document string           `json:"document"`
	Score    int              `json:"score"`
	Level    domain.RiskLevel `json:"risk_level"`
	Detail   string           `json:"detail"`
	Source   Source           `json:"source"`
}

// Degraded reports whether the assessment came from the offline fallback.
func (a Assessment) Degraded() bool {
	return a.Source == SourceFallback
}

// Provider scores applicants remotely.
type Provider interface {
	Assess(ctx context.Context, req Request) (*Assessment, error)
}

// ErrorCategory is the normalized provider failure taxonomy
type ErrorCategory string

const (
	ErrorTimeout     ErrorCategory = "timeout"
	ErrorOutage      ErrorCategory = "provider_outage"
	ErrorRateLimited ErrorCategory = "rate_limited"
	ErrorBadData     ErrorCategory = "bad_data"
	ErrorContract    ErrorCategory = "contract_mismatch"
	ErrorInternal    ErrorCategory = "internal"
)

// ProviderRiskCentral identifies the cooperative's risk bureau in errors and metrics.
const ProviderRiskCentral = "risk-central"

// ProviderError wraps provider failures with a category and retry hint
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.ProviderID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.ProviderID, e.Category, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

// NewProviderError classifies timeouts, outages and throttling as retryable.
func NewProviderError(category ErrorCategory, providerID, message string, underlying error) *ProviderError {
	retryable := category == ErrorTimeout ||
		category == ErrorOutage ||
		category == ErrorRateLimited

	return &ProviderError{
		Category:   category,
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// Category extracts the failure category, "internal" for unclassified errors.
func Category(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}
