package policy

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/m04kA/SMC-CancellationService/internal/domain"
	"github.com/m04kA/SMC-CancellationService/pkg/dbmetrics"
	"github.com/m04kA/SMC-CancellationService/pkg/psqlbuilder"
)

var policyColumns = []string{
	"id",
	"company_id",
	"scope",
	"specialist_id",
	"free_cancel_hours",
	"no_refund_hours",
	"partial_percent",
	"partial_fixed_minor",
	"grace_minutes",
	"applies_to",
	"currency",
	"created_at",
	"updated_at",
}

// Repository репозиторий для чтения политик отмены.
// Политики создаются и редактируются админкой компании — этот сервис
// их только читает, по одной на каждый запрос отмены (без кеширования).
type Repository struct {
	db dbmetrics.DBExecutor
}

// NewRepository создает новый экземпляр репозитория политик
func NewRepository(db dbmetrics.DBExecutor) *Repository {
	return &Repository{db: db}
}

// FindSpecialistPolicy ищет политику, заданную для конкретного специалиста
func (r *Repository) FindSpecialistPolicy(ctx context.Context, companyID, specialistID int64) (*domain.CancellationPolicy, error) {
	return r.findOne(ctx, "FindSpecialistPolicy", squirrel.And{
		squirrel.Eq{"company_id": companyID},
		squirrel.Eq{"scope": string(domain.PolicyScopeSpecialist)},
		squirrel.Eq{"specialist_id": specialistID},
	})
}

// FindCompanyPolicy ищет политику уровня всей компании
func (r *Repository) FindCompanyPolicy(ctx context.Context, companyID int64) (*domain.CancellationPolicy, error) {
	return r.findOne(ctx, "FindCompanyPolicy", squirrel.And{
		squirrel.Eq{"company_id": companyID},
		squirrel.Eq{"scope": string(domain.PolicyScopeSalon)},
	})
}

func (r *Repository) findOne(ctx context.Context, method string, where squirrel.And) (*domain.CancellationPolicy, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(policyColumns...).
		From("cancellation_policies").
		Where(where).
		OrderBy("updated_at DESC").
		Limit(1).
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: %s - build select query: %v", ErrBuildQuery, method, err)
	}

	var p domain.CancellationPolicy
	var createdAt, updatedAt sql.NullTime

	err = executor.QueryRowContext(ctx, query, args...).Scan(
		&p.ID,
		&p.CompanyID,
		&p.Scope,
		&p.SpecialistID,
		&p.FreeCancelHours,
		&p.NoRefundHours,
		&p.PartialRefund.Percent,
		&p.PartialRefund.FixedMinor,
		&p.GraceMinutes,
		&p.AppliesTo,
		&p.Currency,
		&createdAt,
		&updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrPolicyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s - scan policy: %v", ErrScanRow, method, err)
	}

	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time

	return &p, nil
}
