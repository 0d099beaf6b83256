package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coopcredit/pkg/errors"
)

// AffiliateStatus represents the membership state of a cooperative member
type AffiliateStatus string

const (
	AffiliateStatusActive   AffiliateStatus = "ACTIVE"
	AffiliateStatusInactive AffiliateStatus = "INACTIVE"
)

// Affiliate represents a cooperative member eligible to request credit
type Affiliate struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Document      string          `json:"document" db:"document"`
	FullName      string          `json:"full_name" db:"full_name"`
	MonthlyIncome decimal.Decimal `json:"monthly_income" db:"monthly_income"`
	MemberSince   time.Time       `json:"member_since" db:"member_since"`
	Status        AffiliateStatus `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the affiliate can currently transact.
func (a *Affiliate) IsActive() bool {
	return a.Status == AffiliateStatusActive
}

// TenureMonths returns whole calendar months of membership at the given instant.
func (a *Affiliate) TenureMonths(at time.Time) int {
	return MonthsBetween(a.MemberSince, at)
}

// EligibleForCredit combines the active-status and minimum-tenure rules.
func (a *Affiliate) EligibleForCredit(at time.Time, minTenureMonths int) bool {
	return a.IsActive() && a.TenureMonths(at) >= minTenureMonths
}

// MonthsBetween counts complete calendar months from one date to another.
// A month only counts once its day-of-month has been reached, so
// Jan 31 -> Feb 28 is zero months. Time of day is ignored.
func MonthsBetween(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()

	months := (ty-fy)*12 + int(tm-fm)
	if td < fd {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// ApplicationStatus represents the lifecycle state of a credit application
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "PENDING"
	ApplicationStatusApproved ApplicationStatus = "APPROVED"
	ApplicationStatusRejected ApplicationStatus = "REJECTED"
)

// IsTerminal reports whether no further transition is allowed.
func (s ApplicationStatus) IsTerminal() bool {
	return s == ApplicationStatusApproved || s == ApplicationStatusRejected
}

// Valid reports whether s is a known status.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusApproved, ApplicationStatusRejected:
		return true
	}
	return false
}

// CreditApplication represents a single loan request
type CreditApplication struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	AffiliateID uuid.UUID         `json:"affiliate_id" db:"affiliate_id"`
	Amount      decimal.Decimal   `json:"amount" db:"amount"`
	TermMonths  int               `json:"term_months" db:"term_months"`
	AnnualRate  decimal.Decimal   `json:"annual_rate" db:"annual_rate"`
	Status      ApplicationStatus `json:"status" db:"status"`
	Evaluation  *RiskEvaluation   `json:"evaluation,omitempty" db:"-"`
	Version     int               `json:"version" db:"version"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

// IsPending reports whether the application still awaits a decision.
func (a *CreditApplication) IsPending() bool {
	return a.Status == ApplicationStatusPending
}

// Decide moves a pending application to its terminal state and attaches the
// evaluation in a single step. On error the application is left untouched.
func (a *CreditApplication) Decide(eval *RiskEvaluation, at time.Time) error {
	if eval == nil {
		return errors.ErrEvaluationRequired
	}
	if !a.IsPending() {
		return errors.ErrApplicationNotPending
	}

	status := ApplicationStatusRejected
	if eval.Approved() {
		status = ApplicationStatusApproved
	}

	a.Status = status
	a.Evaluation = eval
	a.UpdatedAt = at
	return nil
}
