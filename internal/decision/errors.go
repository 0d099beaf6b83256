package decision

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"coopcredit/internal/domain"
	pkgerrors "coopcredit/pkg/errors"
)

// Code is the machine-readable failure kind of an evaluation.
type Code string

const (
	CodeNotFound               Code = "NOT_FOUND"
	CodeInvalidState           Code = "INVALID_STATE"
	CodeAffiliateInactive      Code = "AFFILIATE_INACTIVE"
	CodeInsufficientTenure     Code = "INSUFFICIENT_TENURE"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
	CodePersistence            Code = "PERSISTENCE"
)

// Error carries the code and structured diagnostics of a failed evaluation.
// errors.Is matches the underlying pkg/errors sentinel.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// AsError extracts a decision error from err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

func applicationNotFound(id uuid.UUID) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: "credit application not found",
		Details: map[string]any{"entity": "application", "id": id.String()},
		Err:     pkgerrors.ErrApplicationNotFound,
	}
}

func affiliateNotFound(id uuid.UUID) *Error {
	return &Error{
		Code:    CodeNotFound,
		Message: "affiliate not found",
		Details: map[string]any{"entity": "affiliate", "id": id.String()},
		Err:     pkgerrors.ErrAffiliateNotFound,
	}
}

func invalidState(app *domain.CreditApplication) *Error {
	return &Error{
		Code:    CodeInvalidState,
		Message: "credit application already evaluated",
		Details: map[string]any{"application_id": app.ID.String(), "status": string(app.Status)},
		Err:     pkgerrors.ErrApplicationNotPending,
	}
}

func affiliateInactive(aff *domain.Affiliate) *Error {
	return &Error{
		Code:    CodeAffiliateInactive,
		Message: fmt.Sprintf("affiliate %s is not active", aff.Document),
		Details: map[string]any{"document": aff.Document, "status": string(aff.Status)},
		Err:     pkgerrors.ErrAffiliateInactive,
	}
}

func insufficientTenure(aff *domain.Affiliate, actual, required int) *Error {
	return &Error{
		Code:    CodeInsufficientTenure,
		Message: fmt.Sprintf("affiliate %s has %d months of tenure, %d required", aff.Document, actual, required),
		Details: map[string]any{
			"document":        aff.Document,
			"actual_months":   actual,
			"required_months": required,
		},
		Err: pkgerrors.ErrInsufficientTenure,
	}
}

func persistenceFailure(id uuid.UUID, err error) *Error {
	code := CodePersistence
	msg := "failed to persist decision"
	if errors.Is(err, pkgerrors.ErrConcurrentModification) {
		code = CodeConcurrentModification
		msg = "credit application was modified by a concurrent evaluation"
	}
	return &Error{
		Code:    code,
		Message: msg,
		Details: map[string]any{"application_id": id.String()},
		Err:     err,
	}
}

func lookupFailure(entity string, id uuid.UUID, err error) *Error {
	return &Error{
		Code:    CodePersistence,
		Message: fmt.Sprintf("failed to load %s", entity),
		Details: map[string]any{"entity": entity, "id": id.String()},
		Err:     err,
	}
}
