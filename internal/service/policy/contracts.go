package policy

import (
	"context"

	"github.com/m04kA/SMC-CancellationService/internal/domain"
)

// PolicyRepository интерфейс репозитория политик отмены
type PolicyRepository interface {
	FindSpecialistPolicy(ctx context.Context, companyID, specialistID int64) (*domain.CancellationPolicy, error)
	FindCompanyPolicy(ctx context.Context, companyID int64) (*domain.CancellationPolicy, error)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
