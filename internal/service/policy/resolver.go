// Package policy резолвер эффективной политики отмены для записи
package policy

import (
	"context"
	"errors"

	"github.com/m04kA/SMC-CancellationService/internal/domain"
	policyRepo "github.com/m04kA/SMC-CancellationService/internal/infra/storage/policy"
)

// Resolver определяет эффективную политику отмены для записи.
//
// Порядок разрешения:
//  1. Политика, заданная для конкретного специалиста
//  2. Политика уровня всей компании
//  3. Встроенная политика по умолчанию
//
// Resolve никогда не возвращает ошибку: отсутствие сохраненной политики —
// нормальная ситуация, а ошибки хранилища деградируют к встроенной
// политике с логированием. Результат не кешируется между запросами —
// политика могла измениться.
type Resolver struct {
	policyRepo PolicyRepository
	logger     Logger
}

// NewResolver создает новый резолвер политик
func NewResolver(policyRepo PolicyRepository, logger Logger) *Resolver {
	return &Resolver{
		policyRepo: policyRepo,
		logger:     logger,
	}
}

// Resolve возвращает эффективную политику для пары компания+специалист
// вместе с уровнем, на котором она была найдена
func (r *Resolver) Resolve(ctx context.Context, companyID, specialistID int64) *domain.ResolvedPolicy {
	// 1. Политика конкретного специалиста
	p, err := r.policyRepo.FindSpecialistPolicy(ctx, companyID, specialistID)
	if err == nil {
		r.logger.Info("Resolve: using specialist policy id=%d for company=%d, specialist=%d", p.ID, companyID, specialistID)
		return &domain.ResolvedPolicy{Policy: *p, ResolvedFrom: domain.PolicyScopeSpecialist}
	}
	if !errors.Is(err, policyRepo.ErrPolicyNotFound) {
		r.logger.Error("Resolve: specialist policy lookup failed for company=%d, specialist=%d: %v", companyID, specialistID, err)
	}

	// 2. Политика компании
	p, err = r.policyRepo.FindCompanyPolicy(ctx, companyID)
	if err == nil {
		r.logger.Info("Resolve: using salon policy id=%d for company=%d", p.ID, companyID)
		return &domain.ResolvedPolicy{Policy: *p, ResolvedFrom: domain.PolicyScopeSalon}
	}
	if !errors.Is(err, policyRepo.ErrPolicyNotFound) {
		r.logger.Error("Resolve: salon policy lookup failed for company=%d: %v", companyID, err)
	}

	// 3. Встроенная политика по умолчанию
	r.logger.Info("Resolve: using default policy for company=%d, specialist=%d", companyID, specialistID)
	return &domain.ResolvedPolicy{
		Policy:       domain.DefaultPolicy(companyID),
		ResolvedFrom: domain.PolicyScopeDefault,
	}
}
