package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	appt := &Appointment{StartAt: base, EndAt: base.Add(time.Hour)}

	assert.True(t, appt.Overlaps(base, base.Add(time.Hour)))
	assert.True(t, appt.Overlaps(base.Add(30*time.Minute), base.Add(90*time.Minute)))
	assert.True(t, appt.Overlaps(base.Add(-30*time.Minute), base.Add(30*time.Minute)))

	// Касание границ пересечением не считается
	assert.False(t, appt.Overlaps(base.Add(time.Hour), base.Add(2*time.Hour)))
	assert.False(t, appt.Overlaps(base.Add(-time.Hour), base))
}

func TestGatewayProcessed(t *testing.T) {
	ref := "pi_123"

	gateway := &PaymentInfo{Provider: "stripe", GatewayReference: &ref}
	assert.True(t, gateway.GatewayProcessed())

	cash := &PaymentInfo{Provider: PaymentProviderCash}
	assert.False(t, cash.GatewayProcessed())

	// Провайдер указан, но идентификатор платежа потерян — возврат невозможен
	noRef := &PaymentInfo{Provider: "stripe"}
	assert.False(t, noRef.GatewayProcessed())
}

func TestAtRiskAmount(t *testing.T) {
	payNow := &PaymentInfo{Mode: PaymentModePayNow, AmountTotal: 10000, AmountDeposit: 2000}
	assert.Equal(t, int64(10000), payNow.AtRiskAmount())

	deposit := &PaymentInfo{Mode: PaymentModeDeposit, AmountTotal: 10000, AmountDeposit: 2000}
	assert.Equal(t, int64(2000), deposit.AtRiskAmount())
}

func TestStatusPredicates(t *testing.T) {
	cancelled := &Appointment{Status: StatusCancelledFullRefund}
	assert.True(t, cancelled.IsCancelled())
	assert.False(t, cancelled.CanBeCancelled())
	assert.False(t, cancelled.IsActive())

	noShow := &Appointment{Status: StatusNoShow}
	assert.False(t, noShow.IsCancelled())
	assert.False(t, noShow.CanBeCancelled())

	confirmed := &Appointment{Status: StatusConfirmed}
	assert.True(t, confirmed.CanBeCancelled())
	assert.True(t, confirmed.IsActive())
	assert.False(t, confirmed.Unpaid())

	unpaid := &Appointment{Status: StatusReservedUnpaid}
	assert.True(t, unpaid.CanBeCancelled())
	assert.True(t, unpaid.Unpaid())
}

func TestTimeOfDayBucket(t *testing.T) {
	assert.Equal(t, PreferenceMorning, TimeOfDayBucket(0))
	assert.Equal(t, PreferenceMorning, TimeOfDayBucket(11))
	assert.Equal(t, PreferenceAfternoon, TimeOfDayBucket(12))
	assert.Equal(t, PreferenceAfternoon, TimeOfDayBucket(16))
	assert.Equal(t, PreferenceEvening, TimeOfDayBucket(17))
	assert.Equal(t, PreferenceEvening, TimeOfDayBucket(23))
}
