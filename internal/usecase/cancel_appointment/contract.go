package cancel_appointment

import (
	"context"
	"time"

	"github.com/m04kA/SMC-CancellationService/internal/domain"
	apptStore "github.com/m04kA/SMC-CancellationService/internal/infra/storage/appointment"
	"github.com/m04kA/SMC-CancellationService/internal/integrations/notifier"
	"github.com/m04kA/SMC-CancellationService/internal/integrations/stripegateway"
)

// AppointmentRepository интерфейс репозитория записей
type AppointmentRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Appointment, error)
	ConditionalTransition(ctx context.Context, id int64, expected []domain.AppointmentStatus, newStatus domain.AppointmentStatus, patch apptStore.CancelPatch) (*domain.Appointment, error)
	AppendAudit(ctx context.Context, entry *domain.AuditEntry) error
}

// PolicyResolver интерфейс резолвера политики отмены
type PolicyResolver interface {
	Resolve(ctx context.Context, companyID, specialistID int64) *domain.ResolvedPolicy
}

// PaymentGateway интерфейс клиента платежного шлюза
type PaymentGateway interface {
	Refund(ctx context.Context, req stripegateway.RefundRequest) (*stripegateway.RefundReceipt, error)
}

// Notifier интерфейс диспетчера уведомлений
type Notifier interface {
	Notify(ctx context.Context, channel notifier.Channel, kind string, payload interface{}) error
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Metrics доменные счетчики исходов отмены
type Metrics interface {
	IncRefundOutcome(outcome string, refundMinor int64)
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
