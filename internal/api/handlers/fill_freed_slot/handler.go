package fill_freed_slot

import (
	"errors"
	"net/http"

	"github.com/m04kA/SMC-CancellationService/internal/api/handlers"
	fillFreedSlot "github.com/m04kA/SMC-CancellationService/internal/usecase/fill_freed_slot"
)

const (
	msgInvalidRequestBody = "некорректное тело запроса"
	msgInvalidWindow      = "некорректное временное окно слота, ожидается RFC3339"
	msgInvalidInput       = "некорректные данные запроса"
)

type Handler struct {
	useCase FillFreedSlotUseCase
	logger  Logger
}

func NewHandler(useCase FillFreedSlotUseCase, logger Logger) *Handler {
	return &Handler{
		useCase: useCase,
		logger:  logger,
	}
}

// Handle POST /api/v1/slots/fill
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	var req FillSlotRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("POST /slots/fill - Invalid request body: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRequestBody)
		return
	}

	useCaseReq, err := req.ToUseCaseRequest()
	if err != nil {
		h.logger.Warn("POST /slots/fill - Failed to parse slot window: %v", err)
		handlers.RespondBadRequest(w, msgInvalidWindow)
		return
	}

	result, err := h.useCase.Execute(r.Context(), useCaseReq)
	if err != nil {
		switch {
		case errors.Is(err, fillFreedSlot.ErrInvalidInput):
			h.logger.Warn("POST /slots/fill - Invalid input: company_id=%d, error=%v", req.CompanyID, err)
			handlers.RespondBadRequest(w, msgInvalidInput)

		default:
			h.logger.Error("POST /slots/fill - Failed to fill slot: company_id=%d, specialist_id=%d, error=%v",
				req.CompanyID, req.SpecialistID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("POST /slots/fill - Matching finished: company_id=%d, specialist_id=%d, result=%s",
		req.CompanyID, req.SpecialistID, result.Result)
	handlers.RespondJSON(w, http.StatusOK, FromUseCaseResponse(result))
}
