package fill_freed_slot

import (
	"time"

	"github.com/m04kA/SMC-CancellationService/internal/domain"
	fillFreedSlot "github.com/m04kA/SMC-CancellationService/internal/usecase/fill_freed_slot"
)

// FillSlotRequest HTTP request model: описание освободившегося окна.
// Используется для слотов, освобожденных вне потока отмены
// (например, после перевода записи в no_show).
type FillSlotRequest struct {
	CompanyID           int64    `json:"companyId"`
	SpecialistID        int64    `json:"specialistId"`
	ServiceID           int64    `json:"serviceId"`
	VariantName         *string  `json:"variantName,omitempty"`
	StartAt             string   `json:"startAt"` // RFC3339
	EndAt               string   `json:"endAt"`   // RFC3339
	Price               *float64 `json:"price,omitempty"`
	AmountTotalMinor    int64    `json:"amountTotalMinor"`
	AmountDepositMinor  int64    `json:"amountDepositMinor"`
	SourceAppointmentID int64    `json:"sourceAppointmentId"`
}

// FillSlotResponse HTTP response model
type FillSlotResponse struct {
	Result            string `json:"result"`
	WaitlistEntryID   *int64 `json:"waitlistEntryId,omitempty"`
	AppointmentID     *int64 `json:"appointmentId,omitempty"`
	ClientName        string `json:"clientName,omitempty"`
	SkippedCandidates int    `json:"skippedCandidates"`
}

// ToUseCaseRequest конвертирует HTTP запрос в модель use case
func (r *FillSlotRequest) ToUseCaseRequest() (*fillFreedSlot.Request, error) {
	startAt, err := time.Parse(time.RFC3339, r.StartAt)
	if err != nil {
		return nil, err
	}

	endAt, err := time.Parse(time.RFC3339, r.EndAt)
	if err != nil {
		return nil, err
	}

	return &fillFreedSlot.Request{
		Slot: &domain.FreedSlot{
			CompanyID:           r.CompanyID,
			SpecialistID:        r.SpecialistID,
			ServiceID:           r.ServiceID,
			VariantName:         r.VariantName,
			StartAt:             startAt,
			EndAt:               endAt,
			Price:               r.Price,
			AmountTotal:         r.AmountTotalMinor,
			AmountDeposit:       r.AmountDepositMinor,
			SourceAppointmentID: r.SourceAppointmentID,
		},
	}, nil
}

// FromUseCaseResponse конвертирует ответ use case в HTTP response
func FromUseCaseResponse(resp *fillFreedSlot.Response) *FillSlotResponse {
	return &FillSlotResponse{
		Result:            resp.Result,
		WaitlistEntryID:   resp.WaitlistEntryID,
		AppointmentID:     resp.AppointmentID,
		ClientName:        resp.ClientName,
		SkippedCandidates: resp.SkippedCandidates,
	}
}
