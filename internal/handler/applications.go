package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"coopcredit/internal/application"
	"coopcredit/internal/domain"
	"coopcredit/internal/middleware"
	pkgerrors "coopcredit/pkg/errors"
	"coopcredit/pkg/logger"
	"coopcredit/pkg/validator"
)

type ApplicationService interface {
	CreateApplication(ctx context.Context, req *application.CreateApplicationRequest) (*domain.CreditApplication, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*domain.CreditApplication, error)
	ListApplications(ctx context.Context, f application.Filter) ([]*domain.CreditApplication, error)
}

// Evaluator runs the decision pipeline for a pending application.
type Evaluator interface {
	Evaluate(ctx context.Context, applicationID uuid.UUID) (*domain.CreditApplication, error)
}

type ApplicationHandler struct {
	service   ApplicationService
	evaluator Evaluator
	validator *validator.Validator
	logger    logger.Logger
}

func NewApplicationHandler(service ApplicationService, evaluator Evaluator, v *validator.Validator, log logger.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		service:   service,
		evaluator: evaluator,
		validator: v,
		logger:    log,
	}
}

// CreateApplication registers a PENDING application. Callers with the
// AFFILIATE role may only apply on their own behalf.
func (h *ApplicationHandler) CreateApplication(w http.ResponseWriter, r *http.Request) {
	var req application.CreateApplicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if fields := h.validator.ValidateStructured(&req); len(fields) > 0 {
		respondValidation(w, fields)
		return
	}

	if !ownsAffiliate(r, req.AffiliateID) {
		respondDomainError(w, h.logger, pkgerrors.ErrForbidden)
		return
	}

	app, err := h.service.CreateApplication(r.Context(), &req)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, app)
}

func (h *ApplicationHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	app, err := h.service.GetApplication(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	if !ownsAffiliate(r, app.AffiliateID) {
		respondDomainError(w, h.logger, pkgerrors.ErrForbidden)
		return
	}

	respondJSON(w, http.StatusOK, app)
}

func (h *ApplicationHandler) ListApplications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pagination(r)
	filter := application.Filter{
		Status: domain.ApplicationStatus(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	}
	if v := q.Get("affiliate_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, CodeBadRequest, "Invalid affiliate_id", nil)
			return
		}
		filter.AffiliateID = id
	}

	apps, err := h.service.ListApplications(r.Context(), filter)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"applications": apps,
		"count":        len(apps),
	})
}

// Evaluate decides a pending application and returns it with its evaluation.
func (h *ApplicationHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	app, err := h.evaluator.Evaluate(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, app)
}

// ownsAffiliate is true for staff roles, and for AFFILIATE callers whose token
// is bound to affiliateID.
func ownsAffiliate(r *http.Request, affiliateID uuid.UUID) bool {
	role, _ := middleware.RoleFromContext(r.Context())
	if role != middleware.RoleAffiliate {
		return true
	}
	own, ok := middleware.AffiliateIDFromContext(r.Context())
	return ok && own == affiliateID
}
