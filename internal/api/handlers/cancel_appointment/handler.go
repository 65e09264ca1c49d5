package cancel_appointment

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/m04kA/SMC-CancellationService/internal/api/handlers"
	"github.com/m04kA/SMC-CancellationService/internal/api/middleware"
	cancelAppointment "github.com/m04kA/SMC-CancellationService/internal/usecase/cancel_appointment"
	fillFreedSlot "github.com/m04kA/SMC-CancellationService/internal/usecase/fill_freed_slot"
)

const (
	msgInvalidAppointmentID = "некорректный ID записи"
	msgInvalidRequestBody   = "некорректное тело запроса"
	msgUnauthorized         = "требуется аутентификация"
	msgNotFound             = "запись не найдена"
	msgCannotCancel         = "запись не может быть отменена из текущего статуса"
	msgRefundFailed         = "платежный шлюз не принял возврат, попробуйте позже"
	msgInvalidInput         = "некорректные данные запроса"
)

type Handler struct {
	cancelUseCase CancelAppointmentUseCase
	fillUseCase   FillFreedSlotUseCase
	logger        Logger
}

func NewHandler(cancelUseCase CancelAppointmentUseCase, fillUseCase FillFreedSlotUseCase, logger Logger) *Handler {
	return &Handler{
		cancelUseCase: cancelUseCase,
		fillUseCase:   fillUseCase,
		logger:        logger,
	}
}

// Handle POST /api/v1/appointments/{appointmentId}/cancel
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	// Извлекаем appointmentId из URL
	vars := mux.Vars(r)
	appointmentIDStr := vars["appointmentId"]

	appointmentID, err := strconv.ParseInt(appointmentIDStr, 10, 64)
	if err != nil {
		h.logger.Warn("POST /appointments/{id}/cancel - Invalid appointment ID: %v", err)
		handlers.RespondBadRequest(w, msgInvalidAppointmentID)
		return
	}

	// Инициатор берется из контекста аутентификации
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		h.logger.Warn("POST /appointments/{id}/cancel - Missing user in context: appointment_id=%d", appointmentID)
		handlers.RespondUnauthorized(w, msgUnauthorized)
		return
	}

	// Декодируем body; пустое тело допустимо — причина опциональна
	var req CancelAppointmentRequest
	if err := handlers.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("POST /appointments/{id}/cancel - Invalid request body: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRequestBody)
		return
	}

	// Отменяем запись
	result, err := h.cancelUseCase.Execute(r.Context(), &cancelAppointment.Request{
		AppointmentID: appointmentID,
		UserID:        userID,
		Reason:        req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, cancelAppointment.ErrAppointmentNotFound):
			h.logger.Warn("POST /appointments/{id}/cancel - Appointment not found: appointment_id=%d", appointmentID)
			handlers.RespondNotFound(w, msgNotFound)

		case errors.Is(err, cancelAppointment.ErrCannotCancel):
			h.logger.Warn("POST /appointments/{id}/cancel - Cannot cancel: appointment_id=%d", appointmentID)
			handlers.RespondConflict(w, msgCannotCancel)

		case errors.Is(err, cancelAppointment.ErrRefundFailed):
			h.logger.Error("POST /appointments/{id}/cancel - Refund failed: appointment_id=%d, error=%v",
				appointmentID, err)
			handlers.RespondError(w, http.StatusBadGateway, msgRefundFailed)

		case errors.Is(err, cancelAppointment.ErrInvalidInput):
			h.logger.Warn("POST /appointments/{id}/cancel - Invalid input: appointment_id=%d, error=%v",
				appointmentID, err)
			handlers.RespondBadRequest(w, msgInvalidInput)

		default:
			h.logger.Error("POST /appointments/{id}/cancel - Failed to cancel appointment: appointment_id=%d, error=%v",
				appointmentID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	response := FromUseCaseResponse(result)

	// Свежая отмена освободила слот — запускаем waitlist-матчер.
	// Его сбой не отменяет уже закоммиченную отмену.
	if result.FreedSlot != nil {
		matched, err := h.fillUseCase.Execute(r.Context(), &fillFreedSlot.Request{Slot: result.FreedSlot})
		if err != nil {
			h.logger.Error("POST /appointments/{id}/cancel - Waitlist matching failed: appointment_id=%d, error=%v",
				appointmentID, err)
		} else {
			response.Waitlist = fromMatchResponse(matched)
		}
	}

	h.logger.Info("POST /appointments/{id}/cancel - Appointment cancelled: appointment_id=%d, user_id=%d, status=%s, refund=%d",
		appointmentID, userID, result.Status, result.RefundAmountMinor)
	handlers.RespondJSON(w, http.StatusOK, response)
}
