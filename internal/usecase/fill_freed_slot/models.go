package fill_freed_slot

import (
	"time"

	"github.com/m04kA/SMC-CancellationService/internal/domain"
)

// Результаты попытки заполнения слота
const (
	ResultMatched              = "matched"
	ResultNoEligibleCandidates = "no_eligible_candidates"
	ResultSlotAlreadyTaken     = "slot_already_taken"
)

// Request модель запроса на заполнение освободившегося слота
type Request struct {
	Slot *domain.FreedSlot
}

// Response модель ответа с результатом заполнения слота
type Response struct {
	Result string // matched | no_eligible_candidates | slot_already_taken

	// Заполнены только при Result == matched
	WaitlistEntryID *int64
	AppointmentID   *int64
	ClientName      string

	// SkippedCandidates сколько подходящих кандидатов выбыло
	// при конвертации (дубликат брони или параллельная конвертация)
	SkippedCandidates int
}

// SlotOfferedNotification payload уведомления о заполненном слоте
type SlotOfferedNotification struct {
	WaitlistEntryID int64     `json:"waitlistEntryId"`
	AppointmentID   int64     `json:"appointmentId"`
	CompanyID       int64     `json:"companyId"`
	SpecialistID    int64     `json:"specialistId"`
	ServiceID       int64     `json:"serviceId"`
	ClientName      string    `json:"clientName"`
	StartAt         time.Time `json:"startAt"`
	EndAt           time.Time `json:"endAt"`
}
