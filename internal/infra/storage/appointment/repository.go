package appointment

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/m04kA/SMC-CancellationService/internal/domain"
	"github.com/m04kA/SMC-CancellationService/pkg/dbmetrics"
	"github.com/m04kA/SMC-CancellationService/pkg/psqlbuilder"
)

// appointmentColumns полный список колонок таблицы appointments
var appointmentColumns = []string{
	"id",
	"company_id",
	"specialist_id",
	"user_id",
	"service_id",
	"variant_name",
	"client_email",
	"client_phone",
	"start_at",
	"end_at",
	"price",
	"payment_mode",
	"payment_provider",
	"amount_total_minor",
	"amount_deposit_minor",
	"gateway_fee_minor",
	"gateway_reference",
	"gateway_account",
	"status",
	"cancellation_reason",
	"cancelled_by",
	"cancelled_at",
	"refund_amount_minor",
	"gateway_refund_ref",
	"policy_snapshot",
	"created_at",
	"updated_at",
}

// CancelPatch данные, записываемые в запись при коммите отмены
type CancelPatch struct {
	Reason            string
	CancelledBy       domain.AuditActor
	CancelledAt       time.Time
	RefundAmountMinor int64
	GatewayRefundRef  *string
	Snapshot          *domain.PolicySnapshot
}

// Repository репозиторий для работы с записями на услуги
type Repository struct {
	db DBExecutor
}

// NewRepository создает новый экземпляр репозитория записей
func NewRepository(db DBExecutor) *Repository {
	return &Repository{db: db}
}

// GetByID получает запись по ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*domain.Appointment, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Select(appointmentColumns...).
		From("appointments").
		Where(squirrel.Eq{"id": id}).
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: GetByID - build select query: %v", ErrBuildQuery, err)
	}

	appt, err := r.scanAppointment(executor.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: GetByID - scan appointment: %v", ErrScanRow, err)
	}

	return appt, nil
}

// FindActiveConflict ищет активную запись указанного специалиста,
// пересекающую окно [from, to). Запись с excludeID игнорируется.
// Возвращает (nil, nil), если конфликтов нет — отсутствие конфликта
// не является ошибкой.
//
// Внутри транзакции добавляет FOR UPDATE, чтобы заблокировать
// конфликтующую строку до конца транзакции.
func (r *Repository) FindActiveConflict(ctx context.Context, companyID, specialistID int64, from, to time.Time, excludeID int64) (*domain.Appointment, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	activeStatuses := make([]string, len(domain.ActiveStatuses))
	for i, s := range domain.ActiveStatuses {
		activeStatuses[i] = string(s)
	}

	selectBuilder := psqlbuilder.Select(appointmentColumns...).
		From("appointments").
		Where(squirrel.Eq{"company_id": companyID}).
		Where(squirrel.Eq{"specialist_id": specialistID}).
		Where(squirrel.Eq{"status": activeStatuses}).
		Where(squirrel.Lt{"start_at": to}).
		Where(squirrel.Gt{"end_at": from}).
		OrderBy("start_at ASC").
		Limit(1)

	if excludeID > 0 {
		selectBuilder = selectBuilder.Where(squirrel.NotEq{"id": excludeID})
	}

	if dbmetrics.IsInTransaction(ctx) {
		selectBuilder = selectBuilder.Suffix("FOR UPDATE")
	}

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: FindActiveConflict - build select query: %v", ErrBuildQuery, err)
	}

	appt, err := r.scanAppointment(executor.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: FindActiveConflict - scan appointment: %v", ErrScanRow, err)
	}

	return appt, nil
}

// FindClientConflict ищет активную запись того же клиента (по email или
// телефону), пересекающую окно [from, to). Возвращает (nil, nil), если
// пересечений нет.
func (r *Repository) FindClientConflict(ctx context.Context, companyID int64, email, phone *string, from, to time.Time) (*domain.Appointment, error) {
	// Без контактов искать нечего
	if email == nil && phone == nil {
		return nil, nil
	}

	executor := dbmetrics.GetExecutor(ctx, r.db)

	activeStatuses := make([]string, len(domain.ActiveStatuses))
	for i, s := range domain.ActiveStatuses {
		activeStatuses[i] = string(s)
	}

	contact := squirrel.Or{}
	if email != nil && *email != "" {
		contact = append(contact, squirrel.Eq{"client_email": *email})
	}
	if phone != nil && *phone != "" {
		contact = append(contact, squirrel.Eq{"client_phone": *phone})
	}
	if len(contact) == 0 {
		return nil, nil
	}

	query, args, err := psqlbuilder.Select(appointmentColumns...).
		From("appointments").
		Where(squirrel.Eq{"company_id": companyID}).
		Where(squirrel.Eq{"status": activeStatuses}).
		Where(contact).
		Where(squirrel.Lt{"start_at": to}).
		Where(squirrel.Gt{"end_at": from}).
		OrderBy("start_at ASC").
		Limit(1).
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: FindClientConflict - build select query: %v", ErrBuildQuery, err)
	}

	appt, err := r.scanAppointment(executor.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: FindClientConflict - scan appointment: %v", ErrScanRow, err)
	}

	return appt, nil
}

// ConditionalTransition атомарно переводит запись в новый статус при
// условии, что ее текущий статус входит в expected (compare-and-swap).
// Если условие не выполнено — запись уже отменена конкурентным запросом
// или переведена в иной статус — возвращает ErrStatusConflict, ничего
// не меняя.
func (r *Repository) ConditionalTransition(ctx context.Context, id int64, expected []domain.AppointmentStatus, newStatus domain.AppointmentStatus, patch CancelPatch) (*domain.Appointment, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	expectedStatuses := make([]string, len(expected))
	for i, s := range expected {
		expectedStatuses[i] = string(s)
	}

	updateBuilder := psqlbuilder.Update("appointments").
		Set("status", string(newStatus)).
		Set("cancellation_reason", patch.Reason).
		Set("cancelled_by", string(patch.CancelledBy)).
		Set("cancelled_at", patch.CancelledAt).
		Set("refund_amount_minor", patch.RefundAmountMinor).
		Set("gateway_refund_ref", patch.GatewayRefundRef).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"status": expectedStatuses})

	if patch.Snapshot != nil {
		snapshotJSON, err := json.Marshal(patch.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("%w: ConditionalTransition - marshal policy snapshot: %v", ErrBuildQuery, err)
		}
		updateBuilder = updateBuilder.Set("policy_snapshot", snapshotJSON)
	}

	query, args, err := updateBuilder.
		Suffix("RETURNING " + joinColumns(appointmentColumns)).
		ToSql()

	if err != nil {
		return nil, fmt.Errorf("%w: ConditionalTransition - build update query: %v", ErrBuildQuery, err)
	}

	appt, err := r.scanAppointment(executor.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		// Запись существует, но статус уже не входит в expected —
		// проигран compare-and-swap; победителя вернет повторный GetByID
		return nil, ErrStatusConflict
	}
	if err != nil {
		return nil, fmt.Errorf("%w: ConditionalTransition - scan appointment: %v", ErrScanRow, err)
	}

	return appt, nil
}

// createConfirmedQuery условная вставка: запись создается только если
// окно специалиста не занято активной записью. Проверка и вставка —
// одна атомарная операция, а не отдельные чтение и запись.
// Написан вручную: squirrel не умеет INSERT ... SELECT ... WHERE NOT EXISTS.
const createConfirmedQuery = `
INSERT INTO appointments (
	company_id, specialist_id, user_id, service_id, variant_name,
	client_email, client_phone, start_at, end_at, price,
	payment_mode, payment_provider, amount_total_minor, amount_deposit_minor,
	status
)
SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
WHERE NOT EXISTS (
	SELECT 1 FROM appointments
	WHERE company_id = $1
	  AND specialist_id = $2
	  AND status = ANY($16)
	  AND start_at < $9
	  AND end_at > $8
)
RETURNING id, created_at, updated_at`

// CreateConfirmed создает подтвержденную запись через условную вставку.
// Если окно специалиста уже занято, возвращает ErrSlotConflict.
func (r *Repository) CreateConfirmed(ctx context.Context, appt *domain.Appointment) (*domain.Appointment, error) {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	activeStatuses := make([]string, len(domain.ActiveStatuses))
	for i, s := range domain.ActiveStatuses {
		activeStatuses[i] = string(s)
	}

	var createdAt, updatedAt sql.NullTime
	err := executor.QueryRowContext(ctx, createConfirmedQuery,
		appt.CompanyID,
		appt.SpecialistID,
		appt.UserID,
		appt.ServiceID,
		appt.VariantName,
		appt.ClientEmail,
		appt.ClientPhone,
		appt.StartAt,
		appt.EndAt,
		appt.Price,
		string(appt.Payment.Mode),
		appt.Payment.Provider,
		appt.Payment.AmountTotal,
		appt.Payment.AmountDeposit,
		string(appt.Status),
		pq.Array(activeStatuses),
	).Scan(
		&appt.ID,
		&createdAt,
		&updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrSlotConflict
	}
	if err != nil {
		return nil, fmt.Errorf("%w: CreateConfirmed - execute insert: %v", ErrExecQuery, err)
	}

	appt.CreatedAt = createdAt.Time
	appt.UpdatedAt = updatedAt.Time

	return appt, nil
}

// AppendAudit добавляет запись в append-only журнал переходов
func (r *Repository) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	executor := dbmetrics.GetExecutor(ctx, r.db)

	query, args, err := psqlbuilder.Insert("appointment_audit").
		Columns("appointment_id", "action", "actor", "details").
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

// rowScanner общий интерфейс *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAppointment сканирует строку в доменную модель записи
func (r *Repository) scanAppointment(row rowScanner) (*domain.Appointment, error) {
	var appt domain.Appointment
	var createdAt, updatedAt sql.NullTime
	var snapshotRaw []byte

	err := row.Scan(
		&appt.ID,
		&appt.CompanyID,
		&appt.SpecialistID,
		&appt.UserID,
		&appt.ServiceID,
		&appt.VariantName,
		&appt.ClientEmail,
		&appt.ClientPhone,
		&appt.StartAt,
		&appt.EndAt,
		&appt.Price,
		&appt.Payment.Mode,
		&appt.Payment.Provider,
		&appt.Payment.AmountTotal,
		&appt.Payment.AmountDeposit,
		&appt.Payment.GatewayFeeMinor,
		&appt.Payment.GatewayReference,
		&appt.Payment.GatewayAccount,
		&appt.Status,
		&appt.CancellationReason,
		&appt.CancelledBy,
		&appt.CancelledAt,
		&appt.RefundAmountMinor,
		&appt.GatewayRefundRef,
		&snapshotRaw,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(snapshotRaw) > 0 {
		var snapshot domain.PolicySnapshot
		if err := json.Unmarshal(snapshotRaw, &snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal policy snapshot: %v", err)
		}
		appt.PolicySnapshot = &snapshot
	}

	appt.CreatedAt = createdAt.Time
	appt.UpdatedAt = updatedAt.Time

	return &appt, nil
}

// joinColumns собирает список колонок для RETURNING
func joinColumns(columns []string) string {
	out := ""
	for i, c := range columns {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
