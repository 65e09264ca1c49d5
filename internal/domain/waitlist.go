package domain

import "time"

// WaitlistStatus represents the status of a waitlist entry
type WaitlistStatus string

const (
	WaitlistActive    WaitlistStatus = "active"
	WaitlistConverted WaitlistStatus = "converted"
	WaitlistExpired   WaitlistStatus = "expired"
	WaitlistRemoved   WaitlistStatus = "removed"
)

// TimePreference is the time-of-day bucket a waiting client accepts
type TimePreference string

const (
	PreferenceMorning   TimePreference = "morning"
	PreferenceAfternoon TimePreference = "afternoon"
	PreferenceEvening   TimePreference = "evening"
	PreferenceAny       TimePreference = "any"
)

// TimeOfDayBucket maps a local start hour to its time-of-day bucket:
// <12 morning, <17 afternoon, else evening
func TimeOfDayBucket(localHour int) TimePreference {
	switch {
	case localHour < MorningEndHour:
		return PreferenceMorning
	case localHour < AfternoonEndHour:
		return PreferenceAfternoon
	default:
		return PreferenceEvening
	}
}

// WaitlistEntry is a client waiting for a slot to free up
type WaitlistEntry struct {
	ID        int64
	CompanyID int64

	ServiceID   int64
	VariantName *string

	SpecialistID *int64     // nil = любой специалист
	DesiredDate  *time.Time // nil = любая дата

	TimePreference TimePreference

	ClientName  string
	ClientEmail *string
	ClientPhone *string

	Priority int
	Status   WaitlistStatus

	ConvertedAppointmentID *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasContact returns true if the entry carries at least one way
// to reach the client
func (e *WaitlistEntry) HasContact() bool {
	return (e.ClientEmail != nil && *e.ClientEmail != "") ||
		(e.ClientPhone != nil && *e.ClientPhone != "")
}

// AcceptsSpecialist returns true if the entry matches the given specialist
// (exact match or no preference)
func (e *WaitlistEntry) AcceptsSpecialist(specialistID int64) bool {
	return e.SpecialistID == nil || *e.SpecialistID == specialistID
}

// AcceptsDate returns true if the entry matches the given calendar date
// (exact match or no preference)
func (e *WaitlistEntry) AcceptsDate(date time.Time) bool {
	if e.DesiredDate == nil || e.DesiredDate.IsZero() {
		return true
	}
	y1, m1, d1 := e.DesiredDate.Date()
	y2, m2, d2 := date.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// AcceptsBucket returns true if the entry accepts the given time-of-day bucket
func (e *WaitlistEntry) AcceptsBucket(bucket TimePreference) bool {
	return e.TimePreference == PreferenceAny || e.TimePreference == bucket
}
