// ==============================================================================
// AFFILIATE SERVICE - internal/affiliate/service.go
// ==============================================================================
package affiliate

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"coopcredit/internal/domain"
	"coopcredit/pkg/errors"
	"coopcredit/pkg/logger"
)

type Repository interface {
	Create(ctx context.Context, affiliate *domain.Affiliate) error
	Update(ctx context.Context, affiliate *domain.Affiliate) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Affiliate, error)
	FindByDocument(ctx context.Context, document string) (*domain.Affiliate, error)
	FindAll(ctx context.Context, limit, offset int) ([]*domain.Affiliate, error)
}

type Service struct {
	repo   Repository
	logger logger.Logger
}

func NewService(repo Repository, log logger.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: log,
	}
}

type CreateAffiliateRequest struct {
	Document      string                 `json:"document" validate:"required,document"`
	FullName      string                 `json:"full_name" validate:"required,min=3,max=200"`
	MonthlyIncome decimal.Decimal        `json:"monthly_income" validate:"dgt=0,decimal_places=2"`
	MemberSince   time.Time              `json:"member_since" validate:"required,past_date"`
	Status        domain.AffiliateStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
}

// UpdateAffiliateRequest changes everything except the document, which is the
// affiliate's natural key.
type UpdateAffiliateRequest struct {
	FullName      string                 `json:"full_name" validate:"required,min=3,max=200"`
	MonthlyIncome decimal.Decimal        `json:"monthly_income" validate:"dgt=0,decimal_places=2"`
	MemberSince   time.Time              `json:"member_since" validate:"required,past_date"`
	Status        domain.AffiliateStatus `json:"status" validate:"required,oneof=ACTIVE INACTIVE"`
}

// CreateAffiliate registers a new member. Documents are unique.
func (s *Service) CreateAffiliate(ctx context.Context, req *CreateAffiliateRequest) (*domain.Affiliate, error) {
	document := strings.TrimSpace(req.Document)

	existing, err := s.repo.FindByDocument(ctx, document)
	if err != nil && !errors.Is(err, errors.ErrAffiliateNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, errors.ErrDuplicateDocument
	}

	status := req.Status
	if status == "" {
		status = domain.AffiliateStatusActive
	}

	now := time.Now().UTC()
	affiliate := &domain.Affiliate{
		ID:            uuid.New(),
		Document:      document,
		FullName:      strings.TrimSpace(req.FullName),
		MonthlyIncome: req.MonthlyIncome,
		MemberSince:   req.MemberSince.UTC(),
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Create(ctx, affiliate); err != nil {
		return nil, err
	}

	s.logger.Info("Affiliate created", map[string]interface{}{
		"affiliate_id": affiliate.ID,
		"document":     affiliate.Document,
		"status":       affiliate.Status,
	})

	return affiliate, nil
}

func (s *Service) UpdateAffiliate(ctx context.Context, id uuid.UUID, req *UpdateAffiliateRequest) (*domain.Affiliate, error) {
	affiliate, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	affiliate.FullName = strings.TrimSpace(req.FullName)
	affiliate.MonthlyIncome = req.MonthlyIncome
	affiliate.MemberSince = req.MemberSince.UTC()
	affiliate.Status = req.Status

	if err := s.repo.Update(ctx, affiliate); err != nil {
		return nil, err
	}

	s.logger.Info("Affiliate updated", map[string]interface{}{
		"affiliate_id": affiliate.ID,
		"status":       affiliate.Status,
	})

	return affiliate, nil
}

func (s *Service) GetAffiliate(ctx context.Context, id uuid.UUID) (*domain.Affiliate, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) GetByDocument(ctx context.Context, document string) (*domain.Affiliate, error) {
	return s.repo.FindByDocument(ctx, strings.TrimSpace(document))
}

func (s *Service) ListAffiliates(ctx context.Context, limit, offset int) ([]*domain.Affiliate, error) {
	return s.repo.FindAll(ctx, limit, offset)
}
