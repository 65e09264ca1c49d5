package fill_freed_slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m04kA/SMC-CancellationService/internal/domain"
	apptStore "github.com/m04kA/SMC-CancellationService/internal/infra/storage/appointment"
	waitlistStore "github.com/m04kA/SMC-CancellationService/internal/infra/storage/waitlist"
	"github.com/m04kA/SMC-CancellationService/internal/integrations/notifier"
	"github.com/m04kA/SMC-CancellationService/pkg/ptr"
)

// UseCase use case заполнения освободившегося слота из листа ожидания
type UseCase struct {
	waitlistRepo WaitlistRepository
	apptRepo     AppointmentRepository
	notifier     Notifier
	txManager    TransactionManager
	metrics      Metrics
	location     *time.Location
	timeProvider TimeProvider
	logger       Logger
}

// NewUseCase создает новый экземпляр use case.
// location — часовой пояс компании для определения времени суток слота.
func NewUseCase(
	waitlistRepo WaitlistRepository,
	apptRepo AppointmentRepository,
	notifier Notifier,
	txManager TransactionManager,
	metrics Metrics,
	location *time.Location,
	logger Logger,
) *UseCase {
	if location == nil {
		location = time.UTC
	}
	return &UseCase{
		waitlistRepo: waitlistRepo,
		apptRepo:     apptRepo,
		notifier:     notifier,
		txManager:    txManager,
		metrics:      metrics,
		location:     location,
		timeProvider: &RealTimeProvider{},
		logger:       logger,
	}
}

// Execute выполняет use case заполнения слота.
// Кандидаты обрабатываются в порядке priority DESC, created_at ASC;
// конвертируется не более одного. Каждая попытка конвертации — своя
// сериализуемая транзакция с повторной проверкой занятости слота.
func (uc *UseCase) Execute(ctx context.Context, req *Request) (*Response, error) {
	// 1. Валидация входных данных
	if err := validateRequest(req); err != nil {
		uc.logger.Warn("FillFreedSlot: validation failed: %v", err)
		return nil, err
	}
	slot := req.Slot

	uc.logger.Info("FillFreedSlot: company=%d, specialist=%d, service=%d, window=[%s, %s)",
		slot.CompanyID, slot.SpecialistID, slot.ServiceID,
		slot.StartAt.Format(time.RFC3339), slot.EndAt.Format(time.RFC3339))

	// 2. Слот в прошлом не предлагаем
	if !slot.StartAt.After(uc.timeProvider.Now()) {
		uc.logger.Info("FillFreedSlot: slot start is in the past, nothing to fill")
		return uc.finish(ResultNoEligibleCandidates, 0), nil
	}

	// 3. Получаем активных кандидатов на услугу
	candidates, err := uc.waitlistRepo.FindActiveCandidates(ctx, waitlistStore.Criteria{
		CompanyID:   slot.CompanyID,
		ServiceID:   slot.ServiceID,
		VariantName: slot.VariantName,
	})
	if err != nil {
		uc.logger.Error("FillFreedSlot: failed to get candidates: %v", err)
		return nil, fmt.Errorf("%w: failed to get candidates: %v", ErrInternal, err)
	}

	// 4. Чистая фильтрация по предпочтениям кандидатов
	eligible := eligibleCandidates(candidates, slot, uc.location)
	uc.logger.Info("FillFreedSlot: %d active candidates, %d eligible", len(candidates), len(eligible))

	if len(eligible) == 0 {
		return uc.finish(ResultNoEligibleCandidates, 0), nil
	}

	// 5. Пробуем кандидатов по одному до первой успешной конвертации
	skipped := 0
	for _, entry := range eligible {
		created, err := uc.convertCandidate(ctx, entry, slot)
		if err != nil {
			if errors.Is(err, errSlotTaken) {
				// Окно заняла параллельная запись — прекращаем попытки
				uc.logger.Warn("FillFreedSlot: slot already taken, aborting")
				return uc.finish(ResultSlotAlreadyTaken, skipped), nil
			}
			if errors.Is(err, errCandidateUnavailable) {
				uc.logger.Info("FillFreedSlot: candidate entry=%d unavailable, trying next", entry.ID)
				skipped++
				continue
			}
			return nil, err
		}

		// 6. Уведомление best-effort: отказ брокера не откатывает конвертацию
		uc.sendOffer(ctx, entry, created)

		uc.metrics.IncWaitlistMatch(ResultMatched)
		uc.logger.Info("FillFreedSlot: matched entry=%d -> appointment=%d (client=%s)",
			entry.ID, created.ID, entry.ClientName)

		return &Response{
			Result:            ResultMatched,
			WaitlistEntryID:   ptr.Ptr(entry.ID),
			AppointmentID:     ptr.Ptr(created.ID),
			ClientName:        entry.ClientName,
			SkippedCandidates: skipped,
		}, nil
	}

	return uc.finish(ResultNoEligibleCandidates, skipped), nil
}

// convertCandidate конвертирует одного кандидата в подтвержденную запись.
// Вся конвертация — одна сериализуемая транзакция: повторная проверка
// занятости окна, проверка дубликата по контактам клиента, условная
// вставка записи и compare-and-swap статуса кандидата.
func (uc *UseCase) convertCandidate(ctx context.Context, entry *domain.WaitlistEntry, slot *domain.FreedSlot) (*domain.Appointment, error) {
	var created *domain.Appointment

	err := uc.txManager.DoSerializable(ctx, func(txCtx context.Context) error {
		// Повторная проверка: окно могло быть занято после освобождения.
		// Исходная запись, освободившая слот, из проверки исключается.
		conflict, err := uc.apptRepo.FindActiveConflict(txCtx, slot.CompanyID, slot.SpecialistID,
			slot.StartAt, slot.EndAt, slot.SourceAppointmentID)
		if err != nil {
			return fmt.Errorf("%w: failed to check slot availability: %v", ErrInternal, err)
		}
		if conflict != nil {
			return errSlotTaken
		}

		// У кандидата уже может быть запись, пересекающая это окно
		duplicate, err := uc.apptRepo.FindClientConflict(txCtx, slot.CompanyID,
			entry.ClientEmail, entry.ClientPhone, slot.StartAt, slot.EndAt)
		if err != nil {
			return fmt.Errorf("%w: failed to check client conflict: %v", ErrInternal, err)
		}
		if duplicate != nil {
			return errCandidateUnavailable
		}

		// Оплата при конвертации принимается на месте
		appt := &domain.Appointment{
			CompanyID:    slot.CompanyID,
			SpecialistID: slot.SpecialistID,
			ServiceID:    slot.ServiceID,
			VariantName:  slot.VariantName,
			ClientEmail:  entry.ClientEmail,
			ClientPhone:  entry.ClientPhone,
			StartAt:      slot.StartAt,
			EndAt:        slot.EndAt,
			Price:        slot.Price,
			Payment: domain.PaymentInfo{
				Mode:        domain.PaymentModePayInSalon,
				Provider:    domain.PaymentProviderCash,
				AmountTotal: slot.AmountTotal,
			},
			Status: domain.StatusConfirmed,
		}

		created, err = uc.apptRepo.CreateConfirmed(txCtx, appt)
		if err != nil {
			if errors.Is(err, apptStore.ErrSlotConflict) {
				return errSlotTaken
			}
			return fmt.Errorf("%w: failed to create appointment: %v", ErrInternal, err)
		}

		// Compare-and-swap active -> converted: проигрыш гонки за
		// кандидата (или удаление самой записи) откатывает созданную
		// запись вместе с транзакцией
		if err := uc.waitlistRepo.MarkConverted(txCtx, entry.ID, created.ID); err != nil {
			if errors.Is(err, waitlistStore.ErrEntryNotActive) || errors.Is(err, waitlistStore.ErrEntryNotFound) {
				return errCandidateUnavailable
			}
			return fmt.Errorf("%w: failed to mark entry converted: %v", ErrInternal, err)
		}

		waitlistAudit := &domain.AuditEntry{
			SubjectID: entry.ID,
			Action:    "converted",
			Actor:     domain.ActorSystem,
			Details:   fmt.Sprintf("appointment_id=%d window=[%s, %s)", created.ID, slot.StartAt.Format(time.RFC3339), slot.EndAt.Format(time.RFC3339)),
		}
		if err := uc.waitlistRepo.AppendAudit(txCtx, waitlistAudit); err != nil {
			return fmt.Errorf("%w: failed to append waitlist audit: %v", ErrInternal, err)
		}

		apptAudit := &domain.AuditEntry{
			SubjectID: created.ID,
			Action:    "created_from_waitlist",
			Actor:     domain.ActorSystem,
			Details:   fmt.Sprintf("waitlist_entry_id=%d source_appointment_id=%d", entry.ID, slot.SourceAppointmentID),
		}
		if err := uc.apptRepo.AppendAudit(txCtx, apptAudit); err != nil {
			return fmt.Errorf("%w: failed to append appointment audit: %v", ErrInternal, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// sendOffer отправляет кандидату уведомление о созданной записи.
// Отказ брокера логируется и не влияет на результат
func (uc *UseCase) sendOffer(ctx context.Context, entry *domain.WaitlistEntry, created *domain.Appointment) {
	channel := notifier.ChannelSMS
	if hasEmail(entry) {
		channel = notifier.ChannelEmail
	}

	payload := SlotOfferedNotification{
		WaitlistEntryID: entry.ID,
		AppointmentID:   created.ID,
		CompanyID:       created.CompanyID,
		SpecialistID:    created.SpecialistID,
		ServiceID:       created.ServiceID,
		ClientName:      entry.ClientName,
		StartAt:         created.StartAt,
		EndAt:           created.EndAt,
	}

	if err := uc.notifier.Notify(ctx, channel, notifier.KindWaitlistSlotOffered, payload); err != nil {
		uc.logger.Error("FillFreedSlot: failed to notify entry=%d via %s: %v", entry.ID, channel, err)
	}
}

// finish фиксирует метрику результата и собирает ответ без конвертации
func (uc *UseCase) finish(result string, skipped int) *Response {
	uc.metrics.IncWaitlistMatch(result)
	return &Response{Result: result, SkippedCandidates: skipped}
}
