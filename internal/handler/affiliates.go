package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"coopcredit/internal/affiliate"
	"coopcredit/internal/domain"
	"coopcredit/pkg/logger"
	"coopcredit/pkg/validator"
)

type AffiliateService interface {
	CreateAffiliate(ctx context.Context, req *affiliate.CreateAffiliateRequest) (*domain.Affiliate, error)
	UpdateAffiliate(ctx context.Context, id uuid.UUID, req *affiliate.UpdateAffiliateRequest) (*domain.Affiliate, error)
	GetAffiliate(ctx context.Context, id uuid.UUID) (*domain.Affiliate, error)
	GetByDocument(ctx context.Context, document string) (*domain.Affiliate, error)
	ListAffiliates(ctx context.Context, limit, offset int) ([]*domain.Affiliate, error)
}

type AffiliateHandler struct {
	service   AffiliateService
	validator *validator.Validator
	logger    logger.Logger
}

func NewAffiliateHandler(service AffiliateService, v *validator.Validator, log logger.Logger) *AffiliateHandler {
	return &AffiliateHandler{
		service:   service,
		validator: v,
		logger:    log,
	}
}

func (h *AffiliateHandler) CreateAffiliate(w http.ResponseWriter, r *http.Request) {
	var req affiliate.CreateAffiliateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.FullName = validator.Sanitize(req.FullName)

	if fields := h.validator.ValidateStructured(&req); len(fields) > 0 {
		respondValidation(w, fields)
		return
	}

	aff, err := h.service.CreateAffiliate(r.Context(), &req)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, aff)
}

func (h *AffiliateHandler) UpdateAffiliate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req affiliate.UpdateAffiliateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.FullName = validator.Sanitize(req.FullName)

	if fields := h.validator.ValidateStructured(&req); len(fields) > 0 {
		respondValidation(w, fields)
		return
	}

	aff, err := h.service.UpdateAffiliate(r.Context(), id, &req)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, aff)
}

func (h *AffiliateHandler) GetAffiliate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	aff, err := h.service.GetAffiliate(r.Context(), id)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, aff)
}

// ListAffiliates pages through members, or resolves a single one when a
// document query parameter is given.
func (h *AffiliateHandler) ListAffiliates(w http.ResponseWriter, r *http.Request) {
	if document := strings.TrimSpace(r.URL.Query().Get("document")); document != "" {
		aff, err := h.service.GetByDocument(r.Context(), document)
		if err != nil {
			respondDomainError(w, h.logger, err)
			return
		}
		respondJSON(w, http.StatusOK, aff)
		return
	}

	limit, offset := pagination(r)
	affiliates, err := h.service.ListAffiliates(r.Context(), limit, offset)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"affiliates": affiliates,
		"limit":      limit,
		"offset":     offset,
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, CodeBadRequest, "Invalid ID", nil)
		return uuid.Nil, false
	}
	return id, true
}

func pagination(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 100 {
		limit = 100
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
