package waitlist

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/m04kA/SMC-CancellationService/internal/domain"
	"github.com/m04kA/SMC-CancellationService/pkg/dbmetrics"
	"github.com/m04kA/SMC-CancellationService/pkg/psqlbuilder"
)

var entryColumns = []string{
	"id",
	"company_id",
	"service_id",
	"variant_name",
	"specialist_id",
	"desired_date",
	"time_preference",
	"client_name",
	"client_email",
	"client_phone",
	"priority",
	"status",
	"converted_appointment_id",
	"created_at",
	"updated_at",
}

// Criteria критерии выборки кандидатов из листа ожидания.
// Специалист, дата и time-of-day bucket фильтруются выше чистыми
// функциями матчера — репозиторий отдает всех активных кандидатов
// на услугу в правильном порядке.
type Criteria struct {
	CompanyID   int64
	ServiceID   int64
	VariantName *string
}

// Repository репозиторий для работы с листом ожидания
type Repository struct {
	db dbmetrics.DBExecutor
}

// NewRepository создает новый экземпляр репозитория листа ожидания
func NewRepository(db dbmetrics.DBExecutor) *Repository {
	return &Repository{db: db}
}

// FindActiveCandidates получает активных кандидатов на услугу,
// упорядоченных по приоритету (DESC) и времени создания (ASC —
// FIFO внутри одного уровня приоритета)
func (r *Repository) FindActiveCandidates(ctx context.Context, criteria Criteria) ([]*domain.WaitlistEntry, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	selectBuilder := psqlbuilder.Select(entryColumns...).
		From("waitlist_entries").
		Where(squirrel.Eq{"company_id": criteria.CompanyID}).
		Where(squirrel.Eq{"service_id": criteria.ServiceID}).
		Where(squirrel.Eq{"status": string(domain.WaitlistActive)}).
		OrderBy("priority DESC, created_at ASC")

	// Вариант услуги: точное совпадение либо оба не заданы
	if criteria.VariantName == nil {
		selectBuilder = selectBuilder.Where(squirrel.Eq{"variant_name": nil})
	} else {
		selectBuilder = selectBuilder.Where(squirrel.Eq{"variant_name": *criteria.VariantName})
	}

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: FindActiveCandidates - build select query: %v", ErrBuildQuery, err)
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: FindActiveCandidates - execute query: %v", ErrExecQuery, err)
	}
	defer rows.Close()

	entries := make([]*domain.WaitlistEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: FindActiveCandidates - scan entry: %v", ErrScanRow, err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: FindActiveCandidates - rows error: %v", ErrScanRow, err)
	}

	return entries, nil
}

// MarkConverted переводит запись из active в converted и связывает ее
// с созданной записью на услугу. Условие status='active' — это
// compare-and-swap: проигравший конкурентную конвертацию получает
// ErrEntryNotActive и пробует следующего кандидата. Если запись
// удалена совсем, возвращается ErrEntryNotFound.
func (r *Repository) MarkConverted(ctx context.Context, entryID, appointmentID int64) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Update("waitlist_entries").
		Set("status", string(domain.WaitlistConverted)).
		Set("converted_appointment_id", appointmentID).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": entryID}).
		Where(squirrel.Eq{"status": string(domain.WaitlistActive)}).
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: MarkConverted - build update query: %v", ErrBuildQuery, err)
	}

	result, err := executor.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: MarkConverted - execute update: %v", ErrExecQuery, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: MarkConverted - get rows affected: %v", ErrExecQuery, err)
	}

	if rowsAffected == 0 {
		return r.classifyMiss(ctx, executor, entryID)
	}

	return nil
}

// classifyMiss различает проигранный compare-and-swap и отсутствующую запись
func (r *Repository) classifyMiss(ctx context.Context, executor dbmetrics.DBExecutor, entryID int64) error {
	query, args, err := psqlbuilder.Select("1").
		From("waitlist_entries").
		Where(squirrel.Eq{"id": entryID}).
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: classifyMiss - build select query: %v", ErrBuildQuery, err)
	}

	var one int
	if err := executor.QueryRowContext(ctx, query, args...).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return ErrEntryNotFound
		}
		return fmt.Errorf("%w: classifyMiss - execute select: %v", ErrExecQuery, err)
	}

	return ErrEntryNotActive
}

// AppendAudit добавляет запись в append-only журнал листа ожидания
func (r *Repository) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Insert("waitlist_audit").
		Columns("entry_id", "action", "actor", "details").
		Values(entry.SubjectID, entry.Action, string(entry.Actor), entry.Details).
		ToSql()

	if err != nil {
		return fmt.Errorf("%w: AppendAudit - build insert query: %v", ErrBuildQuery, err)
	}

	if _, err := executor.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%w: AppendAudit - execute insert: %v", ErrExecQuery, err)
	}

	return nil
}

// scanEntry сканирует строку в доменную модель записи листа ожидания
func scanEntry(rows *sql.Rows) (*domain.WaitlistEntry, error) {
	var entry domain.WaitlistEntry
	var createdAt, updatedAt sql.NullTime

	err := rows.Scan(
		&entry.ID,
		&entry.CompanyID,
		&entry.ServiceID,
		&entry.VariantName,
		&entry.SpecialistID,
		&entry.DesiredDate,
		&entry.TimePreference,
		&entry.ClientName,
		&entry.ClientEmail,
		&entry.ClientPhone,
		&entry.Priority,
		&entry.Status,
		&entry.ConvertedAppointmentID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.CreatedAt = createdAt.Time
	entry.UpdatedAt = updatedAt.Time

	return &entry, nil
}
