package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"coopcredit/internal/domain"
	"coopcredit/pkg/errors"
)

const uniqueViolation = "23505"

type AffiliateRepository struct {
	db *sqlx.DB
}

func NewAffiliateRepository(db *sqlx.DB) *AffiliateRepository {
	return &AffiliateRepository{db: db}
}

func (r *AffiliateRepository) Create(ctx context.Context, affiliate *domain.Affiliate) error {
	query := `
		INSERT INTO affiliates (
			id, document, full_name, monthly_income, member_since, status, created_at, updated_at
		) VALUES (
			:id, :document, :full_name, :monthly_income, :member_since, :status, :created_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, affiliate)
	if isUniqueViolation(err) {
		return errors.ErrDuplicateDocument
	}
	return errors.Wrap(err, "failed to create affiliate")
}

func (r *AffiliateRepository) Update(ctx context.Context, affiliate *domain.Affiliate) error {
	affiliate.UpdatedAt = time.Now()
	query := `
		UPDATE affiliates SET
			document = :document,
			full_name = :full_name,
			monthly_income = :monthly_income,
			member_since = :member_since,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, affiliate)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.ErrDuplicateDocument
		}
		return errors.Wrap(err, "failed to update affiliate")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.ErrAffiliateNotFound
	}
	return nil
}

func (r *AffiliateRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Affiliate, error) {
	affiliate := &domain.Affiliate{}
	query := `SELECT * FROM affiliates WHERE id = $1`
	err := r.db.GetContext(ctx, affiliate, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAffiliateNotFound
		}
		return nil, errors.Wrap(err, "failed to find affiliate by id")
	}
	return affiliate, nil
}

func (r *AffiliateRepository) FindByDocument(ctx context.Context, document string) (*domain.Affiliate, error) {
	affiliate := &domain.Affiliate{}
	query := `SELECT * FROM affiliates WHERE document = $1`
	err := r.db.GetContext(ctx, affiliate, query, document)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAffiliateNotFound
		}
		return nil, errors.Wrap(err, "failed to find affiliate by document")
	}
	return affiliate, nil
}

func (r *AffiliateRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.Affiliate, error) {
	affiliates := []*domain.Affiliate{}
	query := `SELECT * FROM affiliates ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	err := r.db.SelectContext(ctx, &affiliates, query, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find all affiliates")
	}
	return affiliates, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
