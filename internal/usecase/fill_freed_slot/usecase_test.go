package fill_freed_slot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-CancellationService/internal/domain"
	apptStore "github.com/m04kA/SMC-CancellationService/internal/infra/storage/appointment"
	waitlistStore "github.com/m04kA/SMC-CancellationService/internal/infra/storage/waitlist"
	"github.com/m04kA/SMC-CancellationService/internal/integrations/notifier"
	"github.com/m04kA/SMC-CancellationService/pkg/ptr"
)

// --- fakes ---

type fakeWaitlistRepo struct {
	candidates       []*domain.WaitlistEntry
	notActiveEntries map[int64]bool // записи, проигравшие параллельную конвертацию
	deletedEntries   map[int64]bool // записи, удаленные между выборкой и конвертацией
	converted        map[int64]int64
	audits           []*domain.AuditEntry
}

func (f *fakeWaitlistRepo) FindActiveCandidates(ctx context.Context, criteria waitlistStore.Criteria) ([]*domain.WaitlistEntry, error) {
	return f.candidates, nil
}

func (f *fakeWaitlistRepo) MarkConverted(ctx context.Context, entryID, appointmentID int64) error {
	if f.deletedEntries[entryID] {
		return waitlistStore.ErrEntryNotFound
	}
	if f.notActiveEntries[entryID] {
		return waitlistStore.ErrEntryNotActive
	}
	if f.converted == nil {
		f.converted = make(map[int64]int64)
	}
	f.converted[entryID] = appointmentID
	return nil
}

func (f *fakeWaitlistRepo) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	f.audits = append(f.audits, entry)
	return nil
}

type fakeApptRepo struct {
	conflict        *domain.Appointment
	clientConflicts map[string]bool // email с существующей записью в окне
	createErr       error
	created         []*domain.Appointment
	audits          []*domain.AuditEntry
	nextID          int64
}

func (f *fakeApptRepo) FindActiveConflict(ctx context.Context, companyID, specialistID int64, from, to time.Time, excludeID int64) (*domain.Appointment, error) {
	return f.conflict, nil
}

func (f *fakeApptRepo) FindClientConflict(ctx context.Context, companyID int64, email, phone *string, from, to time.Time) (*domain.Appointment, error) {
	if email != nil && f.clientConflicts[*email] {
		return &domain.Appointment{ID: 999}, nil
	}
	return nil, nil
}

func (f *fakeApptRepo) CreateConfirmed(ctx context.Context, appt *domain.Appointment) (*domain.Appointment, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	appt.ID = f.nextID + 100
	f.created = append(f.created, appt)
	return appt, nil
}

func (f *fakeApptRepo) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	f.audits = append(f.audits, entry)
	return nil
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

func (fakeTxManager) DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeMetrics struct {
	results []string
}

func (f *fakeMetrics) IncWaitlistMatch(result string) {
	f.results = append(f.results, result)
}

type fixedTime struct{ now time.Time }

func (f fixedTime) Now() time.Time { return f.now }

type nopLogger struct{}

func (nopLogger) Info(format string, v ...interface{})  {}
func (nopLogger) Warn(format string, v ...interface{})  {}
func (nopLogger) Error(format string, v ...interface{}) {}

// --- helpers ---

var matchNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestUseCase(waitlist *fakeWaitlistRepo, appts *fakeApptRepo, dispatcher *fakeNotifier, metrics *fakeMetrics) *UseCase {
	uc := NewUseCase(waitlist, appts, dispatcher, fakeTxManager{}, metrics, time.UTC, nopLogger{})
	uc.timeProvider = fixedTime{now: matchNow}
	return uc
}

func futureSlot() *domain.FreedSlot {
	return &domain.FreedSlot{
		CompanyID:           7,
		SpecialistID:        3,
		ServiceID:           9,
		StartAt:             matchNow.Add(48 * time.Hour),
		EndAt:               matchNow.Add(49 * time.Hour),
		Price:               ptr.Ptr(100.0),
		AmountTotal:         10000,
		SourceAppointmentID: 42,
	}
}

func waitingClient(id int64, priority int, email string) *domain.WaitlistEntry {
	return &domain.WaitlistEntry{
		ID:             id,
		CompanyID:      7,
		ServiceID:      9,
		TimePreference: domain.PreferenceAny,
		ClientName:     "Мария",
		ClientEmail:    ptr.Ptr(email),
		Priority:       priority,
		Status:         domain.WaitlistActive,
	}
}

// --- tests ---

func TestExecute_MatchesFirstCandidate(t *testing.T) {
	waitlist := &fakeWaitlistRepo{candidates: []*domain.WaitlistEntry{
		waitingClient(1, 10, "first@example.com"),
		waitingClient(2, 5, "second@example.com"),
	}}
	appts := &fakeApptRepo{}
	dispatcher := &fakeNotifier{}
	metrics := &fakeMetrics{}
	uc := newTestUseCase(waitlist, appts, dispatcher, metrics)

	resp, err := uc.Execute(context.Background(), &Request{Slot: futureSlot()})
	require.NoError(t, err)

	assert.Equal(t, ResultMatched, resp.Result)
	require.NotNil(t, resp.WaitlistEntryID)
	assert.Equal(t, int64(1), *resp.WaitlistEntryID)
	require.NotNil(t, resp.AppointmentID)
	assert.Equal(t, 0, resp.SkippedCandidates)

	// Конвертирован ровно один кандидат
	require.Len(t, appts.created, 1)
	created := appts.created[0]
	assert.Equal(t, domain.StatusConfirmed, created.Status)
	assert.Equal(t, domain.PaymentModePayInSalon, created.Payment.Mode)
	assert.Equal(t, domain.PaymentProviderCash, created.Payment.Provider)
	assert.Equal(t, int64(10000), created.Payment.AmountTotal)
	assert.Equal(t, waitlist.converted[1], created.ID)

	// Аудит с обеих сторон
	require.Len(t, waitlist.audits, 1)
	assert.Equal(t, "converted", waitlist.audits[0].Action)
	require.Len(t, appts.audits, 1)
	assert.Equal(t, "created_from_waitlist", appts.audits[0].Action)

	// Уведомление отправлено по email
	require.Len(t, dispatcher.kinds, 1)
	assert.Equal(t, notifier.KindWaitlistSlotOffered, dispatcher.kinds[0])
	assert.Equal(t, notifier.ChannelEmail, dispatcher.channels[0])

	assert.Equal(t, []string{ResultMatched}, metrics.results)
}

func TestExecute_SMSChannelWhenNoEmail(t *testing.T) {
	entry := waitingClient(1, 0, "")
	entry.ClientEmail = nil
	entry.ClientPhone = ptr.Ptr("+447700900123")
	waitlist := &fakeWaitlistRepo{candidates: []*domain.WaitlistEntry{entry}}
	dispatcher := &fakeNotifier{}
	uc := newTestUseCase(waitlist, &fakeApptRepo{}, dispatcher, &fakeMetrics{})

	resp, err := uc.Execute(context.Background(), &Request{Slot: futureSlot()})
	require.NoError(t, err)

	assert.Equal(t, ResultMatched, resp.Result)
	require.Len(t, dispatcher.channels, 1)
	assert.Equal(t, notifier.ChannelSMS, dispatcher.channels[0])
}

func TestExecute_SlotAlreadyTakenAbortsAll(t *testing.T) {
	waitlist := &fakeWaitlistRepo{candidates: []*domain.WaitlistEntry{
		waitingClient(1, 10, "first@example.com"),
		waitingClient(2, 5, "second@example.com"),
	}}
	appts := &fakeApptRepo{conflict: &domain.Appointment{ID: 77}}
	metrics := &fakeMetrics{}
	uc := newTestUseCase(waitlist, appts, &fakeNotifier{}, metrics)

	resp, err := uc.Execute(context.Background(), &Request{Slot: futureSlot()})
	require.NoError(t, err)

	assert.Equal(t, ResultSlotAlreadyTaken, resp.Result)
	assert.Empty(t, appts.created)
	assert.Empty(t, waitlist.converted)
	assert.Equal(t, []string{ResultSlotAlreadyTaken}, metrics.results)
}

func TestExecute_ConditionalCreateConflictAbortsAll(t *testing.T) {
	waitlist := &fakeWaitlistRepo{candidates: []*domain.WaitlistEntry{
		waitingClient(1, 10, "first@example.com"),
	}}
	appts := &fakeApptRepo{createErr: apptStore.ErrSlotConflict}
	uc := newTestUseCase(waitlist, appts, &fakeNotifier{}, &fakeMetrics{})

	resp, err := uc.Execute(context.Background(), &Request{Slot: futureSlot()})
	require.NoError(t, err)

	assert.Equal(t, ResultSlotAlreadyTaken, resp.Result)
	assert.Empty(t, waitlist.converted)
}

func TestExecute_ClientWithExistingAppointmentSkipped(t *testing.T) {
	waitlist := &fakeWaitlistRepo{candidates: []*domain.WaitlistEntry{
		waitingClient(1, 10, "busy@example.com"),
		waitingClient(2, 5, "free@example.com"),
	}}
	appts := &fakeApptRepo{clientConflicts: map[string]bool{"busy@example.com": true}}
	uc := newTestUseCase(waitlist, appts, &fakeNotifier{}, &fakeMetrics{})

	resp, err := uc.Execute(context.Background(), &Request{Slot: futureSlot()})
	require.NoError(t, err)

	assert.Equal(t, ResultMatched, resp.Result)
	require.NotNil(t, resp.WaitlistEntryID)
	assert.Equal(t, int64(2), *resp.WaitlistEntryID)
	assert.Equal(t, 1, resp.SkippedCandidates)
}

func TestExecute_ConcurrentlyConvertedCandidateSkipped(t *testing.T) {
	waitlist := &fakeWaitlistRepo{
		candidates: []*domain.WaitlistEntry{
			waitingClient(1, 10, "gone@example.com"),
			waitingClient(2, 5, "here@example.com"),
		},
		notActiveEntries: map[int64]bool{1: true},
	}
	uc := newTestUseCase(waitlist, &fakeApptRepo{}, &fakeNotifier{}, &fakeMetrics{})

	resp, err := uc.Execute(context.Background(), &Request{Slot: futureSlot()})
	require.NoError(t, err)

	assert.Equal(t, ResultMatched, resp.Result)
	require.NotNil(t, resp.WaitlistEntryID)
	assert.Equal(t, int64(2), *resp.WaitlistEntryID)
	assert.Equal(t, 1, resp.SkippedCandidates)
}

func TestExecute_DeletedCandidateSkipped(t *testing.T) {
	waitlist := &fakeWaitlistRepo{
		candidates: []*domain.WaitlistEntry{
			waitingClient(1, 10, "deleted@example.com"),
			waitingClient(2, 5, "here@example.com"),
		},
		deletedEntries: map[int64]bool{1: true},
	}
	uc := newTestUseCase(waitlist, &fakeApptRepo{}, &fakeNotifier{}, &fakeMetrics{})

	resp, err := uc.Execute(context.Background(), &Request{Slot: futureSlot()})
	require.NoError(t, err)

	assert.Equal(t, ResultMatched, resp.Result)
	require.NotNil(t, resp.WaitlistEntryID)
	assert.Equal(t, int64(2), *resp.WaitlistEntryID)
	assert.Equal(t, 1, resp.SkippedCandidates)
}

func TestExecute_NoEligibleCandidates(t *testing.T) {
	noContact := waitingClient(1, 0, "")
	noContact.ClientEmail = nil
	waitlist := &fakeWaitlistRepo{candidates: []*domain.WaitlistEntry{noContact}}
	metrics := &fakeMetrics{}
	uc := newTestUseCase(waitlist, &fakeApptRepo{}, &fakeNotifier{}, metrics)

	resp, err := uc.Execute(context.Background(), &Request{Slot: futureSlot()})
	require.NoError(t, err)

	assert.Equal(t, ResultNoEligibleCandidates, resp.Result)
	assert.Equal(t, []string{ResultNoEligibleCandidates}, metrics.results)
}

func TestExecute_PastSlotIsNotOffered(t *testing.T) {
	slot := futureSlot()
	slot.StartAt = matchNow.Add(-2 * time.Hour)
	slot.EndAt = matchNow.Add(-time.Hour)
	waitlist := &fakeWaitlistRepo{candidates: []*domain.WaitlistEntry{
		waitingClient(1, 0, "late@example.com"),
	}}
	uc := newTestUseCase(waitlist, &fakeApptRepo{}, &fakeNotifier{}, &fakeMetrics{})

	resp, err := uc.Execute(context.Background(), &Request{Slot: slot})
	require.NoError(t, err)

	assert.Equal(t, ResultNoEligibleCandidates, resp.Result)
	assert.Empty(t, waitlist.converted)
}

func TestExecute_NotificationFailureDoesNotUndoMatch(t *testing.T) {
	waitlist := &fakeWaitlistRepo{candidates: []*domain.WaitlistEntry{
		waitingClient(1, 0, "flaky@example.com"),
	}}
	dispatcher := &fakeNotifier{err: context.DeadlineExceeded}
	uc := newTestUseCase(waitlist, &fakeApptRepo{}, dispatcher, &fakeMetrics{})

	resp, err := uc.Execute(context.Background(), &Request{Slot: futureSlot()})
	require.NoError(t, err)

	assert.Equal(t, ResultMatched, resp.Result)
	assert.Len(t, waitlist.converted, 1)
}

func TestExecute_InvalidSlot(t *testing.T) {
	uc := newTestUseCase(&fakeWaitlistRepo{}, &fakeApptRepo{}, &fakeNotifier{}, &fakeMetrics{})

	_, err := uc.Execute(context.Background(), &Request{Slot: nil})
	assert.ErrorIs(t, err, ErrInvalidInput)

	slot := futureSlot()
	slot.EndAt = slot.StartAt
	_, err = uc.Execute(context.Background(), &Request{Slot: slot})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
