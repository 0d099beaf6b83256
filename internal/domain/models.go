// Package domain re-exports core domain types so internal code can import
// `coopcredit/internal/domain` while using definitions from `coopcredit/pkg/domain`.
package domain

import pkg "coopcredit/pkg/domain"

// Affiliate represents a cooperative member.
type Affiliate = pkg.Affiliate

// AffiliateStatus represents the membership state of an affiliate.
type AffiliateStatus = pkg.AffiliateStatus

// CreditApplication represents a loan request.
type CreditApplication = pkg.CreditApplication

// ApplicationStatus represents the application lifecycle state.
type ApplicationStatus = pkg.ApplicationStatus

// RiskEvaluation is the immutable outcome of a decision.
type RiskEvaluation = pkg.RiskEvaluation

// RiskLevel is the coarse bucket of a credit score.
type RiskLevel = pkg.RiskLevel

const (
	AffiliateStatusActive   = pkg.AffiliateStatusActive
	AffiliateStatusInactive = pkg.AffiliateStatusInactive

	ApplicationStatusPending  = pkg.ApplicationStatusPending
	ApplicationStatusApproved = pkg.ApplicationStatusApproved
	ApplicationStatusRejected = pkg.ApplicationStatusRejected

	RiskLevelLow    = pkg.RiskLevelLow
	RiskLevelMedium = pkg.RiskLevelMedium
	RiskLevelHigh   = pkg.RiskLevelHigh

	ApprovedReason = pkg.ApprovedReason

	MinBureauScore = pkg.MinBureauScore
	MaxBureauScore = pkg.MaxBureauScore
)

var (
	NewApprovedEvaluation = pkg.NewApprovedEvaluation
	NewRejectedEvaluation = pkg.NewRejectedEvaluation
	LevelForScore         = pkg.LevelForScore
	ParseRiskLevel        = pkg.ParseRiskLevel
	FormatMoney           = pkg.FormatMoney
	MonthsBetween         = pkg.MonthsBetween
)
