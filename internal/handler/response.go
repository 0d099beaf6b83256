// Package handler provides HTTP handlers for the credit decision service.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"coopcredit/internal/decision"
	pkgerrors "coopcredit/pkg/errors"
	"coopcredit/pkg/logger"
)

// Machine-readable error codes returned alongside the HTTP status.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeDuplicateDocument  = "DUPLICATE_DOCUMENT"
	CodeInvalidState       = "INVALID_STATE"
	CodeAffiliateInactive  = "AFFILIATE_INACTIVE"
	CodeInsufficientTenure = "INSUFFICIENT_TENURE"
	CodeForbidden          = "FORBIDDEN"
	CodeInternal           = "INTERNAL_ERROR"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}

func respondValidation(w http.ResponseWriter, fields map[string]string) {
	details := make(map[string]any, 1)
	details["fields"] = fields
	respondError(w, http.StatusBadRequest, CodeValidation, "Validation failed", details)
}

// respondDomainError maps service and decision errors onto HTTP statuses.
// Unknown errors are logged and reported as 500 without leaking internals.
func respondDomainError(w http.ResponseWriter, log logger.Logger, err error) {
	if derr, ok := decision.AsError(err); ok {
		status := http.StatusInternalServerError
		switch derr.Code {
		case decision.CodeNotFound:
			status = http.StatusNotFound
		case decision.CodeInvalidState, decision.CodeConcurrentModification:
			status = http.StatusConflict
		case decision.CodeAffiliateInactive, decision.CodeInsufficientTenure:
			status = http.StatusUnprocessableEntity
		}
		if status == http.StatusInternalServerError {
			log.Error("Decision failed", map[string]interface{}{"error": err, "code": derr.Code})
			respondError(w, status, string(derr.Code), "Failed to persist decision", nil)
			return
		}
		respondError(w, status, string(derr.Code), derr.Message, derr.Details)
		return
	}

	switch {
	case errors.Is(err, pkgerrors.ErrAffiliateNotFound), errors.Is(err, pkgerrors.ErrApplicationNotFound):
		respondError(w, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.Is(err, pkgerrors.ErrDuplicateDocument):
		respondError(w, http.StatusConflict, CodeDuplicateDocument, err.Error(), nil)
	case errors.Is(err, pkgerrors.ErrApplicationNotPending):
		respondError(w, http.StatusConflict, CodeInvalidState, err.Error(), nil)
	case errors.Is(err, pkgerrors.ErrConcurrentModification):
		respondError(w, http.StatusConflict, CodeConflict, err.Error(), nil)
	case errors.Is(err, pkgerrors.ErrAffiliateInactive):
		respondError(w, http.StatusUnprocessableEntity, CodeAffiliateInactive, err.Error(), nil)
	case errors.Is(err, pkgerrors.ErrInsufficientTenure):
		respondError(w, http.StatusUnprocessableEntity, CodeInsufficientTenure, err.Error(), nil)
	case errors.Is(err, pkgerrors.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, CodeBadRequest, err.Error(), nil)
	case errors.Is(err, pkgerrors.ErrForbidden):
		respondError(w, http.StatusForbidden, CodeForbidden, err.Error(), nil)
	default:
		log.Error("Request failed", map[string]interface{}{"error": err})
		respondError(w, http.StatusInternalServerError, CodeInternal, "Internal server error", nil)
	}
}

// decodeJSON reads a single JSON object, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, CodeBadRequest, "Request body is required", nil)
			return false
		}
		respondError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body", nil)
		return false
	}
	return true
}
