package cancel_appointment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-CancellationService/internal/domain"
	apptStore "github.com/m04kA/SMC-CancellationService/internal/infra/storage/appointment"
	"github.com/m04kA/SMC-CancellationService/internal/integrations/notifier"
	"github.com/m04kA/SMC-CancellationService/internal/integrations/stripegateway"
	"github.com/m04kA/SMC-CancellationService/pkg/ptr"
)

// --- fakes ---

type fakeApptRepo struct {
	appt          *domain.Appointment
	reread        *domain.Appointment // отдается вторым GetByID после проигранной гонки
	getCalls      int
	transitionErr error
	transitioned  *domain.Appointment
	lastPatch     apptStore.CancelPatch
	audits        []*domain.AuditEntry
}

func (f *fakeApptRepo) GetByID(ctx context.Context, id int64) (*domain.Appointment, error) {
	f.getCalls++
	if f.appt == nil {
		return nil, apptStore.ErrAppointmentNotFound
	}
	if f.getCalls > 1 && f.reread != nil {
		return f.reread, nil
	}
	return f.appt, nil
}

func (f *fakeApptRepo) ConditionalTransition(ctx context.Context, id int64, expected []domain.AppointmentStatus, newStatus domain.AppointmentStatus, patch apptStore.CancelPatch) (*domain.Appointment, error) {
	if f.transitionErr != nil {
		return nil, f.transitionErr
	}
	f.lastPatch = patch

	updated := *f.appt
	updated.Status = newStatus
	updated.CancellationReason = &patch.Reason
	updated.CancelledBy = ptr.Ptr(string(patch.CancelledBy))
	updated.CancelledAt = &patch.CancelledAt
	updated.RefundAmountMinor = &patch.RefundAmountMinor
	updated.GatewayRefundRef = patch.GatewayRefundRef
	updated.PolicySnapshot = patch.Snapshot
	f.transitioned = &updated
	return &updated, nil
}

func (f *fakeApptRepo) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	f.audits = append(f.audits, entry)
	return nil
}

type fakeResolver struct {
	resolved *domain.ResolvedPolicy
}

func (f *fakeResolver) Resolve(ctx context.Context, companyID, specialistID int64) *domain.ResolvedPolicy {
	return f.resolved
}

type fakeGateway struct {
	requests []stripegateway.RefundRequest
	err      error
}

func (f *fakeGateway) Refund(ctx context.Context, req stripegateway.RefundRequest) (*stripegateway.RefundReceipt, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &stripegateway.RefundReceipt{
		RefundID:    "re_test_1",
		Status:      "succeeded",
		AmountMinor: req.AmountMinorUnits,
	}, nil
}

type fakeNotifier struct {
	channels []notifier.Channel
	kinds    []string
	payloads []interface{}
	err      error
}

func (f *fakeNotifier) Notify(ctx context.Context, channel notifier.Channel, kind string, payload interface{}) error {
	f.channels = append(f.channels, channel)
	f.kinds = append(f.kinds, kind)
	f.payloads = append(f.payloads, payload)
	return f.err
}

type fakeTxManager struct{}

func (fakeTxManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeMetrics struct {
	outcomes []string
	refunds  []int64
}

func (f *fakeMetrics) IncRefundOutcome(outcome string, refundMinor int64) {
	f.outcomes = append(f.outcomes, outcome)
	f.refunds = append(f.refunds, refundMinor)
}

type fixedTime struct{ now time.Time }

func (f fixedTime) Now() time.Time { return f.now }

type nopLogger struct{}

func (nopLogger) Info(format string, v ...interface{})  {}
func (nopLogger) Warn(format string, v ...interface{})  {}
func (nopLogger) Error(format string, v ...interface{}) {}

// --- helpers ---

func confirmedAppointment() *domain.Appointment {
	return &domain.Appointment{
		ID:           42,
		CompanyID:    7,
		SpecialistID: 3,
		UserID:       100,
		ServiceID:    9,
		ClientEmail:  ptr.Ptr("client@example.com"),
		StartAt:      testNow.Add(72 * time.Hour),
		EndAt:        testNow.Add(73 * time.Hour),
		Status:       domain.StatusConfirmed,
		Payment: domain.PaymentInfo{
			Mode:             domain.PaymentModePayNow,
			Provider:         "stripe",
			AmountTotal:      10000,
			GatewayReference: ptr.Ptr("pi_test_42"),
			GatewayAccount:   ptr.Ptr("acct_company7"),
		},
		CreatedAt: testNow.Add(-24 * time.Hour),
		UpdatedAt: testNow.Add(-24 * time.Hour),
	}
}

func defaultResolved(companyID int64) *domain.ResolvedPolicy {
	return &domain.ResolvedPolicy{
		Policy:       domain.DefaultPolicy(companyID),
		ResolvedFrom: domain.PolicyScopeDefault,
	}
}

func newTestUseCase(repo *fakeApptRepo, gateway *fakeGateway, metrics *fakeMetrics) *UseCase {
	return newTestUseCaseWithNotifier(repo, gateway, &fakeNotifier{}, metrics)
}

func newTestUseCaseWithNotifier(repo *fakeApptRepo, gateway *fakeGateway, notif *fakeNotifier, metrics *fakeMetrics) *UseCase {
	uc := NewUseCase(repo, &fakeResolver{resolved: defaultResolved(7)}, gateway, notif, fakeTxManager{}, metrics, nopLogger{})
	uc.timeProvider = fixedTime{now: testNow}
	return uc
}

// --- tests ---

func TestExecute_FullRefundHappyPath(t *testing.T) {
	repo := &fakeApptRepo{appt: confirmedAppointment()}
	gateway := &fakeGateway{}
	metrics := &fakeMetrics{}
	uc := newTestUseCase(repo, gateway, metrics)

	resp, err := uc.Execute(context.Background(), &Request{AppointmentID: 42, UserID: 100, Reason: "передумал"})
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusCancelledFullRefund), resp.Status)
	assert.Equal(t, int64(10000), resp.RefundAmountMinor)
	assert.False(t, resp.AlreadyCancelled)
	require.NotNil(t, resp.GatewayRefundRef)
	assert.Equal(t, "re_test_1", *resp.GatewayRefundRef)

	require.Len(t, gateway.requests, 1)
	assert.Equal(t, "pi_test_42", gateway.requests[0].Reference)
	assert.Equal(t, int64(10000), gateway.requests[0].AmountMinorUnits)
	assert.Equal(t, "acct_company7", gateway.requests[0].GatewayAccount)
	assert.NotEmpty(t, gateway.requests[0].IdempotencyKey)

	require.NotNil(t, repo.transitioned)
	assert.Equal(t, domain.StatusCancelledFullRefund, repo.transitioned.Status)
	require.NotNil(t, repo.lastPatch.Snapshot)
	assert.Equal(t, domain.PolicyScopeDefault, repo.lastPatch.Snapshot.ResolvedFrom)

	require.Len(t, repo.audits, 1)
	assert.Equal(t, "cancelled", repo.audits[0].Action)
	assert.Equal(t, domain.ActorCustomer, repo.audits[0].Actor)
	assert.Contains(t, repo.audits[0].Details, "refund_ref=re_test_1")

	require.NotNil(t, resp.FreedSlot)
	assert.Equal(t, int64(42), resp.FreedSlot.SourceAppointmentID)
	assert.Equal(t, int64(3), resp.FreedSlot.SpecialistID)

	assert.Equal(t, []string{string(domain.StatusCancelledFullRefund)}, metrics.outcomes)
}

func TestExecute_StaffActorWhenDifferentUser(t *testing.T) {
	repo := &fakeApptRepo{appt: confirmedAppointment()}
	uc := newTestUseCase(repo, &fakeGateway{}, &fakeMetrics{})

	_, err := uc.Execute(context.Background(), &Request{AppointmentID: 42, UserID: 555})
	require.NoError(t, err)

	require.Len(t, repo.audits, 1)
	assert.Equal(t, domain.ActorStaff, repo.audits[0].Actor)
	assert.Equal(t, domain.ActorStaff, repo.lastPatch.CancelledBy)
}

func TestExecute_AlreadyCancelledIsIdempotent(t *testing.T) {
	appt := confirmedAppointment()
	appt.Status = domain.StatusCancelledPartialRefund
	appt.RefundAmountMinor = ptr.Ptr(int64(2500))
	appt.GatewayRefundRef = ptr.Ptr("re_prev")
	repo := &fakeApptRepo{appt: appt}
	gateway := &fakeGateway{}
	uc := newTestUseCase(repo, gateway, &fakeMetrics{})

	resp, err := uc.Execute(context.Background(), &Request{AppointmentID: 42, UserID: 100})
	require.NoError(t, err)

	assert.True(t, resp.AlreadyCancelled)
	assert.Equal(t, string(domain.StatusCancelledPartialRefund), resp.Status)
	assert.Equal(t, int64(2500), resp.RefundAmountMinor)
	assert.Nil(t, resp.FreedSlot)

	// Никаких побочных эффектов
	assert.Empty(t, gateway.requests)
	assert.Nil(t, repo.transitioned)
	assert.Empty(t, repo.audits)
}

func TestExecute_NoShowCannotBeCancelled(t *testing.T) {
	appt := confirmedAppointment()
	appt.Status = domain.StatusNoShow
	repo := &fakeApptRepo{appt: appt}
	uc := newTestUseCase(repo, &fakeGateway{}, &fakeMetrics{})

	_, err := uc.Execute(context.Background(), &Request{AppointmentID: 42, UserID: 100})
	assert.ErrorIs(t, err, ErrCannotCancel)
}

func TestExecute_UnpaidSkipsGateway(t *testing.T) {
	appt := confirmedAppointment()
	appt.Status = domain.StatusReservedUnpaid
	repo := &fakeApptRepo{appt: appt}
	gateway := &fakeGateway{}
	uc := newTestUseCase(repo, gateway, &fakeMetrics{})

	resp, err := uc.Execute(context.Background(), &Request{AppointmentID: 42, UserID: 100})
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusCancelledNoRefund), resp.Status)
	assert.Equal(t, int64(0), resp.RefundAmountMinor)
	assert.Empty(t, gateway.requests)
	require.NotNil(t, repo.transitioned)
	assert.Equal(t, domain.StatusCancelledNoRefund, repo.transitioned.Status)

	require.Len(t, repo.audits, 1)
	assert.Contains(t, repo.audits[0].Details, "refund_ref=none")
}

func TestExecute_PublishesCancellationNotification(t *testing.T) {
	repo := &fakeApptRepo{appt: confirmedAppointment()}
	notif := &fakeNotifier{}
	uc := newTestUseCaseWithNotifier(repo, &fakeGateway{}, notif, &fakeMetrics{})

	_, err := uc.Execute(context.Background(), &Request{AppointmentID: 42, UserID: 100})
	require.NoError(t, err)

	require.Len(t, notif.kinds, 1)
	assert.Equal(t, notifier.KindCancellationConfirmed, notif.kinds[0])
	assert.Equal(t, notifier.ChannelEmail, notif.channels[0])

	payload, ok := notif.payloads[0].(CancellationNotification)
	require.True(t, ok)
	assert.Equal(t, int64(42), payload.AppointmentID)
	assert.Equal(t, string(domain.StatusCancelledFullRefund), payload.Status)
	assert.Equal(t, int64(10000), payload.RefundAmountMinor)
	require.NotNil(t, payload.ClientEmail)
	assert.Equal(t, "client@example.com", *payload.ClientEmail)
}

func TestExecute_NotificationUsesSMSWhenNoEmail(t *testing.T) {
	appt := confirmedAppointment()
	appt.ClientEmail = nil
	appt.ClientPhone = ptr.Ptr("+447700900123")
	repo := &fakeApptRepo{appt: appt}
	notif := &fakeNotifier{}
	uc := newTestUseCaseWithNotifier(repo, &fakeGateway{}, notif, &fakeMetrics{})

	_, err := uc.Execute(context.Background(), &Request{AppointmentID: 42, UserID: 100})
	require.NoError(t, err)

	require.Len(t, notif.channels, 1)
	assert.Equal(t, notifier.ChannelSMS, notif.channels[0])
}

func TestExecute_NotificationFailureDoesNotFailCancellation(t *testing.T) {
	repo := &fakeApptRepo{appt: confirmedAppointment()}
	notif := &fakeNotifier{err: context.DeadlineExceeded}
	uc := newTestUseCaseWithNotifier(repo, &fakeGateway{}, notif, &fakeMetrics{})

	resp, err := uc.Execute(context.Background(), &Request{AppointmentID: 42, UserID: 100})
	require.NoError(t, err)

	assert.Equal(t, string(domain.StatusCancelledFullRefund), resp.Status)
	require.NotNil(t, repo.transitioned)
	require.Len(t, notif.kinds, 1)
}

func TestExecute_AlreadyCancelledDoesNotNotify(t *testing.T) {
	appt := confirmedAppointment()
	appt.Status = domain.StatusCancelledFullRefund
	appt.RefundAmountMinor = ptr.Ptr(int64(10000))
	repo := &fakeApptRepo{appt: appt}
	notif := &fakeNotifier{}
	uc := newTestUseCaseWithNotifier(repo, &fakeGateway{}, notif, &fakeMetrics{})

	resp, err := uc.Execute(context.Background(), &Request{AppointmentID: 42, UserID: 100})
	require.NoError(t, err)

	assert.True(t, resp.AlreadyCancelled)
	assert.Empty(t, notif.kinds)
}

func TestExecute_GatewayFailureLeavesAppointmentUntouched(t *testing.T) {
	repo := &fakeApptRepo{appt: confirmedAppointment()}
	gateway := &fakeGateway{err: stripegateway.ErrGatewayUnavailable}
	uc := newTestUseCase(repo, gateway, &fakeMetrics{})

	_, err := uc.Execute(context.Background(), &Request{AppointmentID: 42, UserID: 100})

	assert.ErrorIs(t, err, ErrRefundFailed)
	assert.Nil(t, repo.transitioned)
	assert.Empty(t, repo.audits)
}

func TestExecute_LostRaceReturnsWinnersOutcome(t *testing.T) {
	appt := confirmedAppointment()
	winner := confirmedAppointment()
	winner.Status = domain.StatusCancelledFullRefund
	winner.RefundAmountMinor = ptr.Ptr(int64(10000))

	repo := &fakeApptRepo{
		appt:          appt,
		reread:        winner,
		transitionErr: apptStore.ErrStatusConflict,
	}
	uc := newTestUseCase(repo, &fakeGateway{}, &fakeMetrics{})

	resp, err := uc.Execute(context.Background(), &Request{AppointmentID: 42, UserID: 100})
	require.NoError(t, err)

	assert.True(t, resp.AlreadyCancelled)
	assert.Equal(t, string(domain.StatusCancelledFullRefund), resp.Status)
	assert.Equal(t, int64(10000), resp.RefundAmountMinor)
	assert.Nil(t, resp.FreedSlot)
}

func TestExecute_LostRaceToNoShowFails(t *testing.T) {
	appt := confirmedAppointment()
	noShow := confirmedAppointment()
	noShow.Status = domain.StatusNoShow

	repo := &fakeApptRepo{
		appt:          appt,
		reread:        noShow,
		transitionErr: apptStore.ErrStatusConflict,
	}
	uc := newTestUseCase(repo, &fakeGateway{}, &fakeMetrics{})

	_, err := uc.Execute(context.Background(), &Request{AppointmentID: 42, UserID: 100})
	assert.ErrorIs(t, err, ErrCannotCancel)
}

func TestExecute_NotFound(t *testing.T) {
	repo := &fakeApptRepo{}
	uc := newTestUseCase(repo, &fakeGateway{}, &fakeMetrics{})

	_, err := uc.Execute(context.Background(), &Request{AppointmentID: 404, UserID: 100})
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestExecute_InvalidInput(t *testing.T) {
	uc := newTestUseCase(&fakeApptRepo{}, &fakeGateway{}, &fakeMetrics{})

	_, err := uc.Execute(context.Background(), &Request{AppointmentID: 0, UserID: 100})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = uc.Execute(context.Background(), &Request{AppointmentID: 1, UserID: 0})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRefundIdempotencyKey_Deterministic(t *testing.T) {
	appt := confirmedAppointment()

	assert.Equal(t, refundIdempotencyKey(appt), refundIdempotencyKey(appt))

	// Другая версия строки дает другой ключ
	changed := confirmedAppointment()
	changed.UpdatedAt = changed.UpdatedAt.Add(time.Minute)
	assert.NotEqual(t, refundIdempotencyKey(appt), refundIdempotencyKey(changed))

	// Для записей без updated_at используется created_at
	fresh := confirmedAppointment()
	fresh.UpdatedAt = time.Time{}
	assert.Equal(t, refundIdempotencyKey(fresh), refundIdempotencyKey(fresh))
}
