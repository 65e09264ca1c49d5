package cancel_appointment

import (
	"context"

	cancelAppointment "github.com/m04kA/SMC-CancellationService/internal/usecase/cancel_appointment"
	fillFreedSlot "github.com/m04kA/SMC-CancellationService/internal/usecase/fill_freed_slot"
)

type CancelAppointmentUseCase interface {
	Execute(ctx context.Context, req *cancelAppointment.Request) (*cancelAppointment.Response, error)
}

type FillFreedSlotUseCase interface {
	Execute(ctx context.Context, req *fillFreedSlot.Request) (*fillFreedSlot.Response, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
