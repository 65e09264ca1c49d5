package domain

// Built-in default cancellation policy, applied when a company has
// configured nothing at all
const (
	DefaultFreeCancelHours = 24
	DefaultNoRefundHours   = 2
	DefaultPartialPercent  = 50.0
	DefaultGraceMinutes    = 15
)

// Time-of-day bucket boundaries (local hours)
const (
	MorningEndHour   = 12
	AfternoonEndHour = 17
)

// Business validation constants
const (
	MaxCancellationReasonLength = 500
)

// Time format constants
const (
	DateFormat = "2006-01-02" // YYYY-MM-DD
)

// TerminalStatuses список терминальных статусов записи
// После перехода в любой из них дальнейшие мутации запрещены
var TerminalStatuses = []AppointmentStatus{
	StatusCancelledFullRefund,
	StatusCancelledPartialRefund,
	StatusCancelledNoRefund,
}

// ActiveStatuses список статусов, при которых запись занимает слот
// Используется при поиске конфликтов по специалисту и окну времени
var ActiveStatuses = []AppointmentStatus{
	StatusReservedUnpaid,
	StatusConfirmed,
}

// CancellableStatuses статусы, из которых разрешен переход в cancelled_*.
// Используются как ожидаемое состояние compare-and-swap при коммите отмены.
var CancellableStatuses = []AppointmentStatus{
	StatusConfirmed,
	StatusReservedUnpaid,
}

// DefaultPolicy возвращает встроенную политику отмены
func DefaultPolicy(companyID int64) CancellationPolicy {
	percent := DefaultPartialPercent
	return CancellationPolicy{
		CompanyID:       companyID,
		Scope:           PolicyScopeDefault,
		FreeCancelHours: DefaultFreeCancelHours,
		NoRefundHours:   DefaultNoRefundHours,
		PartialRefund:   PartialRefund{Percent: &percent},
		GraceMinutes:    DefaultGraceMinutes,
		AppliesTo:       "payment",
		Currency:        "GBP",
	}
}
