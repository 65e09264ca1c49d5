package fill_freed_slot

import (
	"context"
	"time"

	"github.com/m04kA/SMC-CancellationService/internal/domain"
	waitlistStore "github.com/m04kA/SMC-CancellationService/internal/infra/storage/waitlist"
	"github.com/m04kA/SMC-CancellationService/internal/integrations/notifier"
)

// WaitlistRepository интерфейс репозитория листа ожидания
type WaitlistRepository interface {
	FindActiveCandidates(ctx context.Context, criteria waitlistStore.Criteria) ([]*domain.WaitlistEntry, error)
	MarkConverted(ctx context.Context, entryID, appointmentID int64) error
	AppendAudit(ctx context.Context, entry *domain.AuditEntry) error
}

// AppointmentRepository интерфейс репозитория записей
type AppointmentRepository interface {
	FindActiveConflict(ctx context.Context, companyID, specialistID int64, from, to time.Time, excludeID int64) (*domain.Appointment, error)
	FindClientConflict(ctx context.Context, companyID int64, email, phone *string, from, to time.Time) (*domain.Appointment, error)
	CreateConfirmed(ctx context.Context, appt *domain.Appointment) (*domain.Appointment, error)
	AppendAudit(ctx context.Context, entry *domain.AuditEntry) error
}

// Notifier интерфейс диспетчера уведомлений
type Notifier interface {
	Notify(ctx context.Context, channel notifier.Channel, kind string, payload interface{}) error
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error
}

// Metrics доменные счетчики результатов заполнения слотов
type Metrics interface {
	IncWaitlistMatch(result string)
}

// TimeProvider интерфейс для получения текущего времени (для тестирования)
type TimeProvider interface {
	Now() time.Time
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// RealTimeProvider реальный провайдер времени для production
type RealTimeProvider struct{}

// Now возвращает текущее время
func (p *RealTimeProvider) Now() time.Time {
	return time.Now()
}
