package fill_freed_slot

import "errors"

var (
	// ErrInvalidInput возвращается при некорректном описании слота
	ErrInvalidInput = errors.New("fill_freed_slot: invalid input data")

	// ErrInternal возвращается при внутренних ошибках usecase
	ErrInternal = errors.New("fill_freed_slot: internal error")
)

// Сигнальные ошибки конвертации одного кандидата, управляют циклом
// по кандидатам и наружу не возвращаются
var (
	// errSlotTaken слот занят активной записью — попытки прекращаются
	errSlotTaken = errors.New("fill_freed_slot: slot already taken")

	// errCandidateUnavailable кандидат выбыл (конвертирован параллельно
	// или уже имеет запись в этом окне) — пробуем следующего
	errCandidateUnavailable = errors.New("fill_freed_slot: candidate unavailable")
)
