package cancel_appointment

import (
	"time"

	"github.com/m04kA/SMC-CancellationService/internal/domain"
)

// Request модель запроса на отмену записи
type Request struct {
	AppointmentID int64   // ID отменяемой записи
	UserID        int64   // ID инициатора (клиент или сотрудник)
	Reason        string  // Причина отмены (опционально)
}

// Response модель ответа с закоммиченным исходом отмены
type Response struct {
	AppointmentID     int64
	Status            string     // cancelled_full_refund | cancelled_partial_refund | cancelled_no_refund
	RefundAmountMinor int64      // сумма возврата в минорных единицах валюты
	Currency          string
	GatewayRefundRef  *string    // ID возврата в платежном шлюзе, если возврат был
	CancelledAt       *time.Time

	// AlreadyCancelled true, если запись была отменена ранее:
	// возвращается исход первой отмены, побочных эффектов нет
	AlreadyCancelled bool

	// FreedSlot освободившееся окно для waitlist-матчера;
	// nil при повторной отмене
	FreedSlot *domain.FreedSlot
}

// CancellationNotification payload события appointment.cancelled.v1
type CancellationNotification struct {
	AppointmentID     int64      `json:"appointment_id"`
	UserID            int64      `json:"user_id"`
	ClientEmail       *string    `json:"client_email,omitempty"`
	ClientPhone       *string    `json:"client_phone,omitempty"`
	Status            string     `json:"status"`
	RefundAmountMinor int64      `json:"refund_amount_minor"`
	Currency          string     `json:"currency"`
	StartAt           time.Time  `json:"start_at"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
}

// committedResponse собирает ответ из закоммиченного состояния записи
func committedResponse(appt *domain.Appointment, alreadyCancelled bool) *Response {
	var refund int64
	if appt.RefundAmountMinor != nil {
		refund = *appt.RefundAmountMinor
	}

	var currency string
	if appt.PolicySnapshot != nil {
		currency = appt.PolicySnapshot.Currency
	}

	return &Response{
		AppointmentID:     appt.ID,
		Status:            string(appt.Status),
		RefundAmountMinor: refund,
		Currency:          currency,
		GatewayRefundRef:  appt.GatewayRefundRef,
		CancelledAt:       appt.CancelledAt,
		AlreadyCancelled:  alreadyCancelled,
	}
}

// freedSlot описывает окно, освобожденное отмененной записью
func freedSlot(appt *domain.Appointment) *domain.FreedSlot {
	return &domain.FreedSlot{
		CompanyID:           appt.CompanyID,
		SpecialistID:        appt.SpecialistID,
		ServiceID:           appt.ServiceID,
		VariantName:         appt.VariantName,
		StartAt:             appt.StartAt,
		EndAt:               appt.EndAt,
		Price:               appt.Price,
		AmountTotal:         appt.Payment.AmountTotal,
		AmountDeposit:       appt.Payment.AmountDeposit,
		SourceAppointmentID: appt.ID,
	}
}
