package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/escrow/internal/audit/domain"
	"github.com/allisson/escrow/internal/metrics"
)

// auditLogUseCaseWithMetrics decorates AuditLogUseCase with metrics instrumentation.
type auditLogUseCaseWithMetrics struct {
	next    AuditLogUseCase
	metrics metrics.BusinessMetrics
}

// NewAuditLogUseCaseWithMetrics wraps an AuditLogUseCase with metrics recording.
func NewAuditLogUseCaseWithMetrics(useCase AuditLogUseCase, m metrics.BusinessMetrics) AuditLogUseCase {
	return &auditLogUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (a *auditLogUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.StatusFromError(err)
	a.metrics.RecordOperation(ctx, "audit", operation, status)
	a.metrics.RecordDuration(ctx, "audit", operation, time.Since(start), status)
}

// Append records metrics for audit log appends.
func (a *auditLogUseCaseWithMetrics) Append(ctx context.Context, entry *auditDomain.AuditLog) error {
	start := time.Now()
	err := a.next.Append(ctx, entry)
	a.record(ctx, "audit_log_append", start, err)
	return err
}

// List records metrics for audit log page reads.
func (a *auditLogUseCaseWithMetrics) List(ctx context.Context, input *ListInput) (*ListOutput, error) {
	start := time.Now()
	output, err := a.next.List(ctx, input)
	a.record(ctx, "audit_log_list", start, err)
	return output, err
}

// VerifyIntegrity records metrics for single entry verification.
func (a *auditLogUseCaseWithMetrics) VerifyIntegrity(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	err := a.next.VerifyIntegrity(ctx, id)
	a.record(ctx, "audit_log_verify", start, err)
	return err
}

// VerifyBatch records metrics for batch verification.
func (a *auditLogUseCaseWithMetrics) VerifyBatch(
	ctx context.Context,
	startTime, endTime time.Time,
) (*auditDomain.VerificationReport, error) {
	start := time.Now()
	report, err := a.next.VerifyBatch(ctx, startTime, endTime)
	a.record(ctx, "audit_log_verify_batch", start, err)
	return report, err
}
