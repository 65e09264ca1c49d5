package appointment

import "errors"

var (
	// ErrAppointmentNotFound возвращается, когда запись не найдена
	ErrAppointmentNotFound = errors.New("appointment.repository: appointment not found")

	// ErrStatusConflict возвращается, когда compare-and-swap переход
	// не прошел: статус записи уже не входит в ожидаемый набор
	ErrStatusConflict = errors.New("appointment.repository: status conflict")

	// ErrSlotConflict возвращается, когда условная вставка отклонена:
	// окно специалиста уже занято активной записью
	ErrSlotConflict = errors.New("appointment.repository: slot conflict")

	// ErrBuildQuery возвращается при ошибке построения SQL запроса
	ErrBuildQuery = errors.New("appointment.repository: failed to build query")

	// ErrExecQuery возвращается при ошибке выполнения SQL запроса
	ErrExecQuery = errors.New("appointment.repository: failed to execute query")

	// ErrScanRow возвращается при ошибке сканирования результата запроса
	ErrScanRow = errors.New("appointment.repository: failed to scan row")
)
