// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrAffiliateNotFound   = errors.New("affiliate not found")
	ErrDuplicateDocument   = errors.New("an affiliate with this document already exists")
	ErrAffiliateInactive   = errors.New("affiliate is not active")
	ErrInsufficientTenure  = errors.New("affiliate does not meet the minimum tenure")
	ErrApplicationNotFound = errors.New("credit application not found")

	// Application lifecycle errors
	ErrApplicationNotPending  = errors.New("credit application already evaluated")
	ErrEvaluationRequired     = errors.New("a risk evaluation is required to decide an application")
	ErrConcurrentModification = errors.New("credit application was modified concurrently")

	// Transport errors
	ErrInvalidInput     = errors.New("invalid input")
	ErrDuplicateRequest = errors.New("duplicate request in progress")
	ErrForbidden        = errors.New("insufficient role for this operation")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
