package cancel_appointment

import (
	"time"

	"github.com/m04kA/SMC-CancellationService/internal/domain"
	"github.com/m04kA/SMC-CancellationService/pkg/money"
)

// Outcome результат чистого расчета исхода отмены.
// Расчет не читает БД и не вызывает шлюз — одни и те же входные
// данные всегда дают один и тот же исход.
type Outcome struct {
	Status            domain.AppointmentStatus
	RefundAmountMinor int64

	// RefundableBase база возврата после вычета невозвратной комиссии
	RefundableBase int64

	// HoursUntilStart расстояние до начала записи на момент расчета
	HoursUntilStart float64
}

// computeOutcome вычисляет исход отмены записи по действующей политике.
//
// База возврата зависит от режима оплаты: полная сумма для pay_now,
// депозит для deposit. Невозвратная комиссия шлюза вычитается из базы;
// для legacy-записей без сохраненной комиссии итоговый возврат
// ограничивается сверху ценой услуги, переведенной в минорные единицы.
//
// Временные окна политики сравниваются с расстоянием до начала записи:
//   - не ближе freeCancelHours  -> полный возврат базы
//   - ближе noRefundHours       -> возврат не производится
//   - между порогами            -> частичный возврат (процент от базы
//     с округлением half-up либо фиксированная сумма)
func computeOutcome(appt *domain.Appointment, policy *domain.CancellationPolicy, now time.Time) Outcome {
	// Неоплаченная запись отменяется без возврата независимо от окон
	if appt.Unpaid() {
		return Outcome{Status: domain.StatusCancelledNoRefund}
	}

	base := appt.Payment.AtRiskAmount()

	refundable := base
	capMinor := int64(-1)
	if appt.Payment.GatewayProcessed() {
		switch {
		case appt.Payment.GatewayFeeMinor != nil:
			refundable = money.NonNegative(base - *appt.Payment.GatewayFeeMinor)
		case appt.Price != nil:
			// Комиссия неизвестна — возврат не может превысить цену услуги
			capMinor = money.FromMajor(*appt.Price)
		}
	}

	hoursUntilStart := appt.StartAt.Sub(now).Hours()

	out := Outcome{
		RefundableBase:  refundable,
		HoursUntilStart: hoursUntilStart,
	}

	switch {
	case hoursUntilStart >= float64(policy.FreeCancelHours):
		out.Status = domain.StatusCancelledFullRefund
		out.RefundAmountMinor = refundable
	case hoursUntilStart < float64(policy.NoRefundHours):
		out.Status = domain.StatusCancelledNoRefund
	default:
		out.Status = domain.StatusCancelledPartialRefund
		out.RefundAmountMinor = partialAmount(refundable, policy.PartialRefund)
	}

	if capMinor >= 0 {
		out.RefundAmountMinor = money.Min(out.RefundAmountMinor, capMinor)
	}

	return out
}

// partialAmount вычисляет сумму частичного возврата.
// Фиксированная сумма имеет приоритет над процентом.
func partialAmount(refundable int64, partial domain.PartialRefund) int64 {
	if partial.FixedMinor != nil {
		return *partial.FixedMinor
	}
	if partial.Percent != nil {
		return money.PercentRoundHalfUp(refundable, *partial.Percent)
	}
	return 0
}
