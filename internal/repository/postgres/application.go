package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"coopcredit/internal/domain"
	"coopcredit/pkg/errors"
)

// selectApplications joins the optional evaluation so a decided application is
// always loaded together with its outcome.
const selectApplications = `
	SELECT
		a.id, a.affiliate_id, a.amount, a.term_months, a.annual_rate, a.status,
		a.version, a.created_at, a.updated_at,
		e.score             AS eval_score,
		e.risk_level        AS eval_risk_level,
		e.detail            AS eval_detail,
		e.approved          AS eval_approved,
		e.reason            AS eval_reason,
		e.payment_to_income AS eval_payment_to_income,
		e.evaluated_at      AS eval_evaluated_at
	FROM credit_applications a
	LEFT JOIN risk_evaluations e ON e.application_id = a.id
`

type applicationRow struct {
	domain.CreditApplication
	EvalScore           sql.NullInt64       `db:"eval_score"`
	EvalRiskLevel       sql.NullString      `db:"eval_risk_level"`
	EvalDetail          sql.NullString      `db:"eval_detail"`
	EvalApproved        sql.NullBool        `db:"eval_approved"`
	EvalReason          sql.NullString      `db:"eval_reason"`
	EvalPaymentToIncome decimal.NullDecimal `db:"eval_payment_to_income"`
	EvalEvaluatedAt     sql.NullTime        `db:"eval_evaluated_at"`
}

func (row *applicationRow) toDomain() *domain.CreditApplication {
	app := row.CreditApplication
	if !row.EvalScore.Valid {
		return &app
	}

	level := domain.RiskLevel(row.EvalRiskLevel.String)
	at := row.EvalEvaluatedAt.Time
	if row.EvalApproved.Bool {
		app.Evaluation = domain.NewApprovedEvaluation(int(row.EvalScore.Int64), level, row.EvalDetail.String, row.EvalPaymentToIncome.Decimal, at)
	} else {
		app.Evaluation = domain.NewRejectedEvaluation(int(row.EvalScore.Int64), level, row.EvalDetail.String, row.EvalPaymentToIncome.Decimal, row.EvalReason.String, at)
	}
	return &app
}

type ApplicationRepository struct {
	db *sqlx.DB
}

func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) Create(ctx context.Context, app *domain.CreditApplication) error {
	if app.Version == 0 {
		app.Version = 1
	}
	query := `
		INSERT INTO credit_applications (
			id, affiliate_id, amount, term_months, annual_rate, status, version, created_at, updated_at
		) VALUES (
			:id, :affiliate_id, :amount, :term_months, :annual_rate, :status, :version, :created_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, app)
	return errors.Wrap(err, "failed to create credit application")
}

// Save commits a decision: the status change and the evaluation are written in
// one transaction, guarded by the PENDING status and the loaded version.
func (r *ApplicationRepository) Save(ctx context.Context, app *domain.CreditApplication) error {
	if app.Evaluation == nil {
		return errors.ErrEvaluationRequired
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	updatedAt := app.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE credit_applications SET
			status = $1,
			version = version + 1,
			updated_at = $2
		WHERE id = $3 AND status = 'PENDING' AND version = $4
	`, app.Status, updatedAt, app.ID, app.Version)
	if err != nil {
		return errors.Wrap(err, "failed to update credit application")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if rows == 0 {
		return errors.ErrConcurrentModification
	}

	eval := app.Evaluation
	_, err = tx.ExecContext(ctx, `
		INSERT INTO risk_evaluations (
			id, application_id, score, risk_level, detail, approved, reason, payment_to_income, evaluated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, uuid.New(), app.ID, eval.Score(), eval.Level(), eval.Detail(), eval.Approved(), eval.Reason(), eval.PaymentToIncome(), eval.EvaluatedAt())
	if err != nil {
		if isUniqueViolation(err) {
			return errors.ErrConcurrentModification
		}
		return errors.Wrap(err, "failed to insert risk evaluation")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit decision")
	}

	app.Version++
	app.UpdatedAt = updatedAt
	return nil
}

func (r *ApplicationRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.CreditApplication, error) {
	var row applicationRow
	err := r.db.GetContext(ctx, &row, selectApplications+` WHERE a.id = $1`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrApplicationNotFound
		}
		return nil, errors.Wrap(err, "failed to find credit application by id")
	}
	return row.toDomain(), nil
}

func (r *ApplicationRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.CreditApplication, error) {
	return r.selectMany(ctx, "failed to find all credit applications",
		selectApplications+` ORDER BY a.created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
}

func (r *ApplicationRepository) FindByAffiliateID(ctx context.Context, affiliateID uuid.UUID) ([]*domain.CreditApplication, error) {
	return r.selectMany(ctx, "failed to find credit applications by affiliate",
		selectApplications+` WHERE a.affiliate_id = $1 ORDER BY a.created_at DESC`, affiliateID)
}

func (r *ApplicationRepository) FindByStatus(ctx context.Context, status domain.ApplicationStatus) ([]*domain.CreditApplication, error) {
	return r.selectMany(ctx, "failed to find credit applications by status",
		selectApplications+` WHERE a.status = $1 ORDER BY a.created_at DESC`, status)
}

func (r *ApplicationRepository) selectMany(ctx context.Context, msg, query string, args ...interface{}) ([]*domain.CreditApplication, error) {
	var rows []applicationRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, msg)
	}
	apps := make([]*domain.CreditApplication, 0, len(rows))
	for i := range rows {
		apps = append(apps, rows[i].toDomain())
	}
	return apps, nil
}
