// ==============================================================================
// CREDIT APPLICATION SERVICE - internal/application/service.go
// ==============================================================================
// Package application handles intake and lookup of credit applications.
// Decisions are made by the decision package.
package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coopcredit/internal/domain"
	"coopcredit/pkg/errors"
	"coopcredit/pkg/logger"
)

type Repository interface {
	Create(ctx context.Context, app *domain.CreditApplication) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.CreditApplication, error)
	FindAll(ctx context.Context, limit, offset int) ([]*domain.CreditApplication, error)
	FindByAffiliateID(ctx context.Context, affiliateID uuid.UUID) ([]*domain.CreditApplication, error)
	FindByStatus(ctx context.Context, status domain.ApplicationStatus) ([]*domain.CreditApplication, error)
}

type AffiliateReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Affiliate, error)
}

type Metrics interface {
	IncrementCreated()
}

type Service struct {
	repo       Repository
	affiliates AffiliateReader
	metrics    Metrics
	logger     logger.Logger
}

// NewService builds the intake service. metrics may be nil.
func NewService(repo Repository, affiliates AffiliateReader, metrics Metrics, log logger.Logger) *Service {
	return &Service{
		repo:       repo,
		affiliates: affiliates,
		metrics:    metrics,
		logger:     log,
	}
}

type CreateApplicationRequest struct {
	AffiliateID uuid.UUID       `json:"affiliate_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"dgt=0,decimal_places=2"`
	TermMonths  int             `json:"term_months" validate:"min=1,max=360"`
	AnnualRate  decimal.Decimal `json:"annual_rate" validate:"dgt=0,dlte=100,decimal_places=4"`
}

// Filter narrows ListApplications. Zero values mean no filter.
type Filter struct {
	Status      domain.ApplicationStatus
	AffiliateID uuid.UUID
	Limit       int
	Offset      int
}

// CreateApplication registers a PENDING application for an active affiliate.
func (s *Service) CreateApplication(ctx context.Context, req *CreateApplicationRequest) (*domain.CreditApplication, error) {
	affiliate, err := s.affiliates.FindByID(ctx, req.AffiliateID)
	if err != nil {
		return nil, err
	}
	if !affiliate.IsActive() {
		return nil, errors.ErrAffiliateInactive
	}

	now := time.Now().UTC()
	app := &domain.CreditApplication{
		ID:          uuid.New(),
		AffiliateID: affiliate.ID,
		Amount:      req.Amount,
		TermMonths:  req.TermMonths,
		AnnualRate:  req.AnnualRate,
		Status:      domain.ApplicationStatusPending,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, app); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.IncrementCreated()
	}

	s.logger.Info("Credit application created", map[string]interface{}{
		"application_id": app.ID,
		"affiliate_id":   app.AffiliateID,
		"amount":         app.Amount.String(),
		"term_months":    app.TermMonths,
	})

	return app, nil
}

func (s *Service) GetApplication(ctx context.Context, id uuid.UUID) (*domain.CreditApplication, error) {
	return s.repo.FindByID(ctx, id)
}

// ListApplications queries by affiliate when one is given and narrows by status
// in memory. Without an affiliate it queries by status, then falls back to a
// paged listing.
func (s *Service) ListApplications(ctx context.Context, f Filter) ([]*domain.CreditApplication, error) {
	switch {
	case f.AffiliateID != uuid.Nil:
		apps, err := s.repo.FindByAffiliateID(ctx, f.AffiliateID)
		if err != nil || f.Status == "" {
			return apps, err
		}
		filtered := make([]*domain.CreditApplication, 0, len(apps))
		for _, a := range apps {
			if a.Status == f.Status {
				filtered = append(filtered, a)
			}
		}
		return filtered, nil
	case f.Status != "":
		if !f.Status.Valid() {
			return nil, errors.ErrInvalidInput
		}
		return s.repo.FindByStatus(ctx, f.Status)
	default:
		limit := f.Limit
		if limit <= 0 || limit > 100 {
			limit = 50
		}
		return s.repo.FindAll(ctx, limit, f.Offset)
	}
}
