package cancel_appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/m04kA/SMC-CancellationService/internal/domain"
	apptStore "github.com/m04kA/SMC-CancellationService/internal/infra/storage/appointment"
	"github.com/m04kA/SMC-CancellationService/internal/integrations/notifier"
	"github.com/m04kA/SMC-CancellationService/internal/integrations/stripegateway"
)

// UseCase use case отмены записи: расчет исхода, возврат через шлюз
// и атомарный коммит перехода статуса
type UseCase struct {
	apptRepo       AppointmentRepository
	policyResolver PolicyResolver
	gateway        PaymentGateway
	notifier       Notifier
	txManager      TransactionManager
	metrics        Metrics
	timeProvider   TimeProvider
	logger         Logger
}

// NewUseCase создает новый экземпляр use case
func NewUseCase(
	apptRepo AppointmentRepository,
	policyResolver PolicyResolver,
	gateway PaymentGateway,
	notif Notifier,
	txManager TransactionManager,
	metrics Metrics,
	logger Logger,
) *UseCase {
	return &UseCase{
		apptRepo:       apptRepo,
		policyResolver: policyResolver,
		gateway:        gateway,
		notifier:       notif,
		txManager:      txManager,
		metrics:        metrics,
		timeProvider:   &RealTimeProvider{},
		logger:         logger,
	}
}

// Execute выполняет use case отмены записи.
// Возврат через шлюз выполняется до коммита статуса: при отказе шлюза
// запись не меняется, а повторная попытка использует тот же
// idempotency key и не удваивает возврат.
func (uc *UseCase) Execute(ctx context.Context, req *Request) (*Response, error) {
	uc.logger.Info("CancelAppointment: appointment=%d, user=%d", req.AppointmentID, req.UserID)

	// 1. Валидация входных данных
	if err := validateRequest(req); err != nil {
		uc.logger.Warn("CancelAppointment: validation failed: %v", err)
		return nil, err
	}

	// 2. Получаем запись
	appt, err := uc.apptRepo.GetByID(ctx, req.AppointmentID)
	if err != nil {
		if errors.Is(err, apptStore.ErrAppointmentNotFound) {
			uc.logger.Warn("CancelAppointment: appointment id=%d not found", req.AppointmentID)
			return nil, ErrAppointmentNotFound
		}
		uc.logger.Error("CancelAppointment: failed to get appointment id=%d: %v", req.AppointmentID, err)
		return nil, fmt.Errorf("%w: failed to get appointment: %v", ErrInternal, err)
	}

	// 3. Повторная отмена — идемпотентный ответ без побочных эффектов
	if appt.IsCancelled() {
		uc.logger.Info("CancelAppointment: appointment id=%d already cancelled (status=%s)", appt.ID, appt.Status)
		return committedResponse(appt, true), nil
	}

	// 4. Из остальных терминальных состояний отмена запрещена
	if !appt.CanBeCancelled() {
		uc.logger.Warn("CancelAppointment: appointment id=%d has status=%s, cannot cancel", appt.ID, appt.Status)
		return nil, ErrCannotCancel
	}

	// 5. Определяем инициатора: владелец записи — клиент, иначе сотрудник
	actor := domain.ActorStaff
	if req.UserID == appt.UserID {
		actor = domain.ActorCustomer
	}

	// 6. Берем действующую политику отмены
	resolved := uc.policyResolver.Resolve(ctx, appt.CompanyID, appt.SpecialistID)

	// 7. Вычисляем исход
	now := uc.timeProvider.Now()
	outcome := computeOutcome(appt, &resolved.Policy, now)
	uc.logger.Info("CancelAppointment: appointment id=%d outcome=%s refund=%d (policy=%s, hoursUntilStart=%.1f)",
		appt.ID, outcome.Status, outcome.RefundAmountMinor, resolved.ResolvedFrom, outcome.HoursUntilStart)

	// 8. Возврат через шлюз до коммита статуса
	var refundRef *string
	if outcome.RefundAmountMinor > 0 && appt.Payment.GatewayProcessed() {
		receipt, err := uc.gateway.Refund(ctx, stripegateway.RefundRequest{
			Reference:        *appt.Payment.GatewayReference,
			AmountMinorUnits: outcome.RefundAmountMinor,
			Currency:         resolved.Policy.Currency,
			IdempotencyKey:   refundIdempotencyKey(appt),
			GatewayAccount:   accountOrEmpty(appt.Payment.GatewayAccount),
		})
		if err != nil {
			uc.logger.Error("CancelAppointment: refund failed for appointment id=%d, amount=%d: %v",
				appt.ID, outcome.RefundAmountMinor, err)
			return nil, fmt.Errorf("%w: %v", ErrRefundFailed, err)
		}
		refundRef = &receipt.RefundID
		uc.logger.Info("CancelAppointment: refund %s accepted, amount=%d", receipt.RefundID, receipt.AmountMinor)
	}

	// 9. Коммит перехода и аудит в одной транзакции.
	// Переход выполняется через compare-and-swap по ожидаемым статусам:
	// параллельная отмена или no_show-переход приводят к ErrStatusConflict.
	snapshot := resolved.Snapshot()
	var committed *domain.Appointment
	var lostRace bool

	err = uc.txManager.Do(ctx, func(txCtx context.Context) error {
		updated, err := uc.apptRepo.ConditionalTransition(txCtx, appt.ID, domain.CancellableStatuses, outcome.Status, apptStore.CancelPatch{
			Reason:            req.Reason,
			CancelledBy:       actor,
			CancelledAt:       now,
			RefundAmountMinor: outcome.RefundAmountMinor,
			GatewayRefundRef:  refundRef,
			Snapshot:          &snapshot,
		})
		if err != nil {
			if errors.Is(err, apptStore.ErrStatusConflict) {
				lostRace = true
				return nil
			}
			return fmt.Errorf("%w: failed to commit cancellation: %v", ErrInternal, err)
		}
		committed = updated

		audit := &domain.AuditEntry{
			SubjectID: appt.ID,
			Action:    "cancelled",
			Actor:     actor,
			Details: fmt.Sprintf("status=%s refund_minor=%d refund_ref=%s resolved_from=%s reason=%q",
				outcome.Status, outcome.RefundAmountMinor, refundRefLabel(refundRef), resolved.ResolvedFrom, req.Reason),
		}
		if err := uc.apptRepo.AppendAudit(txCtx, audit); err != nil {
			return fmt.Errorf("%w: failed to append audit: %v", ErrInternal, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	// 10. Гонку выиграла параллельная отмена — возвращаем ее исход.
	// Двойного возврата нет: обе стороны читали одну версию записи
	// и отправили шлюзу один и тот же idempotency key.
	if lostRace {
		uc.logger.Warn("CancelAppointment: lost status race for appointment id=%d, re-reading", appt.ID)
		current, err := uc.apptRepo.GetByID(ctx, req.AppointmentID)
		if err != nil {
			uc.logger.Error("CancelAppointment: failed to re-read appointment id=%d: %v", req.AppointmentID, err)
			return nil, fmt.Errorf("%w: failed to re-read appointment: %v", ErrInternal, err)
		}
		if current.IsCancelled() {
			return committedResponse(current, true), nil
		}
		return nil, ErrCannotCancel
	}

	uc.metrics.IncRefundOutcome(string(committed.Status), outcome.RefundAmountMinor)
	uc.logger.Info("CancelAppointment: appointment id=%d cancelled, status=%s, refund=%d",
		committed.ID, committed.Status, outcome.RefundAmountMinor)

	// 11. Уведомляем клиента об отмене (best-effort, после коммита)
	uc.sendConfirmation(ctx, committed, resolved.Policy.Currency, outcome.RefundAmountMinor)

	resp := committedResponse(committed, false)
	resp.FreedSlot = freedSlot(committed)
	return resp, nil
}

// sendConfirmation публикует уведомление об отмене. Канал выбирается
// по контактам клиента; ошибка публикации не откатывает отмену.
func (uc *UseCase) sendConfirmation(ctx context.Context, appt *domain.Appointment, currency string, refundMinor int64) {
	channel := notifier.ChannelEmail
	if appt.ClientEmail == nil {
		if appt.ClientPhone == nil {
			uc.logger.Warn("CancelAppointment: appointment id=%d has no client contact, skipping notification", appt.ID)
			return
		}
		channel = notifier.ChannelSMS
	}

	payload := CancellationNotification{
		AppointmentID:     appt.ID,
		UserID:            appt.UserID,
		ClientEmail:       appt.ClientEmail,
		ClientPhone:       appt.ClientPhone,
		Status:            string(appt.Status),
		RefundAmountMinor: refundMinor,
		Currency:          currency,
		StartAt:           appt.StartAt,
		CancelledAt:       appt.CancelledAt,
	}

	if err := uc.notifier.Notify(ctx, channel, notifier.KindCancellationConfirmed, payload); err != nil {
		uc.logger.Warn("CancelAppointment: failed to notify about appointment id=%d cancellation: %v", appt.ID, err)
	}
}

// refundIdempotencyKey строит детерминированный ключ идемпотентности
// возврата из ID записи и версии строки. Повторная попытка после сбоя
// шлюза получает тот же ключ, пока запись не изменилась.
func refundIdempotencyKey(appt *domain.Appointment) string {
	ts := appt.UpdatedAt
	if ts.IsZero() {
		ts = appt.CreatedAt
	}
	return fmt.Sprintf("cancel-refund-%d-%d", appt.ID, ts.Unix())
}

func accountOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// refundRefLabel значение для журнала аудита: "none", если возврат
// через шлюз не выполнялся
func refundRefLabel(ref *string) string {
	if ref == nil {
		return "none"
	}
	return *ref
}
