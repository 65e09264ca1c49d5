package cancel_appointment

import (
	"time"

	cancelAppointment "github.com/m04kA/SMC-CancellationService/internal/usecase/cancel_appointment"
	fillFreedSlot "github.com/m04kA/SMC-CancellationService/internal/usecase/fill_freed_slot"
)

// CancelAppointmentRequest HTTP request model
type CancelAppointmentRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CancellationResponse HTTP response model
type CancellationResponse struct {
	AppointmentID     int64   `json:"appointmentId"`
	Status            string  `json:"status"`
	RefundAmountMinor int64   `json:"refundAmountMinor"`
	Currency          string  `json:"currency,omitempty"`
	GatewayRefundRef  *string `json:"gatewayRefundRef,omitempty"`
	CancelledAt       *string `json:"cancelledAt,omitempty"`
	AlreadyCancelled  bool    `json:"alreadyCancelled"`

	Waitlist *WaitlistResult `json:"waitlist,omitempty"`
}

// WaitlistResult итог запуска waitlist-матчера для освободившегося слота
type WaitlistResult struct {
	Result        string `json:"result"`
	AppointmentID *int64 `json:"appointmentId,omitempty"`
}

// FromUseCaseResponse конвертирует ответ use case в HTTP response
func FromUseCaseResponse(resp *cancelAppointment.Response) *CancellationResponse {
	var cancelledAt *string
	if resp.CancelledAt != nil {
		formatted := resp.CancelledAt.Format(time.RFC3339)
		cancelledAt = &formatted
	}

	return &CancellationResponse{
		AppointmentID:     resp.AppointmentID,
		Status:            resp.Status,
		RefundAmountMinor: resp.RefundAmountMinor,
		Currency:          resp.Currency,
		GatewayRefundRef:  resp.GatewayRefundRef,
		CancelledAt:       cancelledAt,
		AlreadyCancelled:  resp.AlreadyCancelled,
	}
}

// fromMatchResponse конвертирует результат матчера в HTTP модель
func fromMatchResponse(resp *fillFreedSlot.Response) *WaitlistResult {
	return &WaitlistResult{
		Result:        resp.Result,
		AppointmentID: resp.AppointmentID,
	}
}
