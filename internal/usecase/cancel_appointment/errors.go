package cancel_appointment

import "errors"

var (
	// ErrAppointmentNotFound возвращается, когда запись не найдена
	ErrAppointmentNotFound = errors.New("cancel_appointment: appointment not found")

	// ErrCannotCancel возвращается, когда запись находится в состоянии,
	// из которого отмена запрещена (например, no_show)
	ErrCannotCancel = errors.New("cancel_appointment: appointment cannot be cancelled from its current status")

	// ErrRefundFailed возвращается, когда платежный шлюз не принял возврат.
	// Статус записи при этом не меняется, повторная попытка безопасна.
	ErrRefundFailed = errors.New("cancel_appointment: refund failed")

	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("cancel_appointment: invalid input data")

	// ErrInternal возвращается при внутренних ошибках usecase
	ErrInternal = errors.New("cancel_appointment: internal error")
)
