package domain

import "time"

// FreedSlot represents a specialist+time window released by a
// cancellation, no-show or reassignment, together with the service
// details a waitlist conversion copies over
type FreedSlot struct {
	CompanyID    int64
	SpecialistID int64
	ServiceID    int64
	VariantName  *string

	StartAt time.Time
	EndAt   time.Time

	// Denormalized data copied into the converted appointment
	Price         *float64
	AmountTotal   int64
	AmountDeposit int64

	// SourceAppointmentID запись, освободившая слот; исключается
	// из проверки конфликтов при повторной валидации окна
	SourceAppointmentID int64
}

// DurationMinutes returns the slot length in whole minutes
func (s *FreedSlot) DurationMinutes() int {
	return int(s.EndAt.Sub(s.StartAt) / time.Minute)
}

// Bucket returns the slot's time-of-day bucket in the given location
func (s *FreedSlot) Bucket(loc *time.Location) TimePreference {
	return TimeOfDayBucket(s.StartAt.In(loc).Hour())
}
