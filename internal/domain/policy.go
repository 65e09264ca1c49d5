package domain

import "time"

// PolicyScope defines whether a cancellation policy applies company-wide
// or to a single specialist
type PolicyScope string

const (
	PolicyScopeSalon      PolicyScope = "salon"
	PolicyScopeSpecialist PolicyScope = "specialist"

	// PolicyScopeDefault помечает встроенную политику,
	// применяемую при отсутствии сохраненной
	PolicyScopeDefault PolicyScope = "default"
)

// PartialRefund describes the partial-refund window outcome:
// either a percentage of the refundable base or a fixed amount
// in minor currency units. The two are mutually exclusive.
type PartialRefund struct {
	Percent    *float64
	FixedMinor *int64
}

// CancellationPolicy is the time-windowed refund policy configured by a company.
// Read-only to this engine; resolved per appointment at cancellation time.
type CancellationPolicy struct {
	ID           int64
	CompanyID    int64
	Scope        PolicyScope
	SpecialistID *int64 // только для scope=specialist

	FreeCancelHours int // за сколько часов до начала отмена полностью бесплатна
	NoRefundHours   int // ближе этого порога возврат не производится; всегда <= FreeCancelHours
	PartialRefund   PartialRefund
	GraceMinutes    int

	AppliesTo string // какой компонент платежа регулирует политика
	Currency  string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ResolvedPolicy is a policy plus the scope it was resolved from;
// captured into the appointment's policy snapshot on cancellation
type ResolvedPolicy struct {
	Policy       CancellationPolicy
	ResolvedFrom PolicyScope
}

// PolicySnapshot is the immutable copy of the resolved policy stored on the
// appointment at cancellation time, kept for dispute resolution
type PolicySnapshot struct {
	ResolvedFrom    PolicyScope `json:"resolvedFrom"`
	FreeCancelHours int         `json:"freeCancelHours"`
	NoRefundHours   int         `json:"noRefundHours"`
	PartialPercent  *float64    `json:"partialPercent,omitempty"`
	PartialFixed    *int64      `json:"partialFixedMinor,omitempty"`
	GraceMinutes    int         `json:"graceMinutes"`
	AppliesTo       string      `json:"appliesTo"`
	Currency        string      `json:"currency"`
}

// Snapshot builds the immutable policy snapshot for a resolved policy
func (r *ResolvedPolicy) Snapshot() PolicySnapshot {
	return PolicySnapshot{
		ResolvedFrom:    r.ResolvedFrom,
		FreeCancelHours: r.Policy.FreeCancelHours,
		NoRefundHours:   r.Policy.NoRefundHours,
		PartialPercent:  r.Policy.PartialRefund.Percent,
		PartialFixed:    r.Policy.PartialRefund.FixedMinor,
		GraceMinutes:    r.Policy.GraceMinutes,
		AppliesTo:       r.Policy.AppliesTo,
		Currency:        r.Policy.Currency,
	}
}
