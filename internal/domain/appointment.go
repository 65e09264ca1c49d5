package domain

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusReservedUnpaid         AppointmentStatus = "reserved_unpaid"
	StatusConfirmed              AppointmentStatus = "confirmed"
	StatusCancelledFullRefund    AppointmentStatus = "cancelled_full_refund"
	StatusCancelledPartialRefund AppointmentStatus = "cancelled_partial_refund"
	StatusCancelledNoRefund      AppointmentStatus = "cancelled_no_refund"
	StatusNoShow                 AppointmentStatus = "no_show"
)

// PaymentMode represents how the client pays for the appointment
type PaymentMode string

const (
	PaymentModePayNow     PaymentMode = "pay_now"
	PaymentModeDeposit    PaymentMode = "deposit"
	PaymentModePayInSalon PaymentMode = "pay_in_salon"
)

// PaymentProviderCash marks payments taken outside any gateway
const PaymentProviderCash = "cash"

// PaymentInfo describes the payment attached to an appointment.
// All amounts are integer minor currency units.
type PaymentInfo struct {
	Mode             PaymentMode
	Provider         string // "cash" или имя платежного шлюза ("stripe")
	AmountTotal      int64
	AmountDeposit    int64
	GatewayFeeMinor  *int64  // невозвращаемая комиссия платформы; nil для legacy-записей
	GatewayReference *string // идентификатор платежа в шлюзе, используется для возвратов
	GatewayAccount   *string // connected account компании в шлюзе
}

// GatewayProcessed returns true if the payment went through a payment gateway
func (p *PaymentInfo) GatewayProcessed() bool {
	return p.Provider != "" && p.Provider != PaymentProviderCash && p.GatewayReference != nil
}

// AtRiskAmount returns the amount actually at risk on cancellation:
// the deposit for deposit-mode payments, the full total otherwise
func (p *PaymentInfo) AtRiskAmount() int64 {
	if p.Mode == PaymentModeDeposit {
		return p.AmountDeposit
	}
	return p.AmountTotal
}

// Appointment represents a service appointment on the platform
type Appointment struct {
	ID           int64
	CompanyID    int64
	SpecialistID int64
	UserID       int64
	ServiceID    int64
	VariantName  *string

	// Контактные данные клиента (используются waitlist-матчером
	// для проверки дублирующих бронирований)
	ClientEmail *string
	ClientPhone *string

	StartAt time.Time
	EndAt   time.Time

	// Legacy price in major currency units (pounds); may be nil
	Price *float64

	Payment PaymentInfo
	Status  AppointmentStatus

	CancellationReason *string
	CancelledBy        *string // "customer" | "staff"
	CancelledAt        *time.Time
	RefundAmountMinor  *int64
	GatewayRefundRef   *string
	PolicySnapshot     *PolicySnapshot

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsCancelled returns true if the appointment is in a terminal cancelled_* state.
// A cancelled appointment must never be refunded or mutated again.
func (a *Appointment) IsCancelled() bool {
	return a.Status == StatusCancelledFullRefund ||
		a.Status == StatusCancelledPartialRefund ||
		a.Status == StatusCancelledNoRefund
}

// CanBeCancelled returns true if a cancellation request may proceed
func (a *Appointment) CanBeCancelled() bool {
	return a.Status == StatusConfirmed || a.Status == StatusReservedUnpaid
}

// IsActive returns true if the appointment still occupies its slot
func (a *Appointment) IsActive() bool {
	return a.Status == StatusReservedUnpaid || a.Status == StatusConfirmed
}

// Unpaid returns true if no money has been taken for the appointment
func (a *Appointment) Unpaid() bool {
	return a.Status == StatusReservedUnpaid
}

// Overlaps returns true if the appointment intersects the [from, to) window.
// Boundary touches do not count as overlap.
func (a *Appointment) Overlaps(from, to time.Time) bool {
	return a.StartAt.Before(to) && a.EndAt.After(from)
}

// AuditActor who performed a state transition
type AuditActor string

const (
	ActorCustomer AuditActor = "customer"
	ActorStaff    AuditActor = "staff"
	ActorSystem   AuditActor = "system"
)

// AuditEntry is one append-only record of a state transition
type AuditEntry struct {
	ID        int64
	SubjectID int64 // appointment или waitlist entry
	Action    string
	Actor     AuditActor
	Details   string
	CreatedAt time.Time
}
