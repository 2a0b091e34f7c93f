package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/escrow/internal/audit/domain"
	auditService "github.com/allisson/escrow/internal/audit/service"
	authDomain "github.com/allisson/escrow/internal/auth/domain"
	authService "github.com/allisson/escrow/internal/auth/service"
	cryptoDomain "github.com/allisson/escrow/internal/crypto/domain"
	apperrors "github.com/allisson/escrow/internal/errors"
	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
)

const verifyBatchSize = 500

type auditLogUseCase struct {
	auditLogRepo AuditLogRepository
	signer       auditService.AuditSigner
	keyset       *cryptoDomain.Keyset
	evaluator    authService.PermissionEvaluator
	logger       *slog.Logger
}

// NewAuditLogUseCase creates an AuditLogUseCase that signs entries with keys derived
// from keyset integrity keys.
func NewAuditLogUseCase(
	auditLogRepo AuditLogRepository,
	signer auditService.AuditSigner,
	keyset *cryptoDomain.Keyset,
	evaluator authService.PermissionEvaluator,
	logger *slog.Logger,
) AuditLogUseCase {
	return &auditLogUseCase{
		auditLogRepo: auditLogRepo,
		signer:       signer,
		keyset:       keyset,
		evaluator:    evaluator,
		logger:       logger,
	}
}

// Append implements AuditLogUseCase.
func (a *auditLogUseCase) Append(ctx context.Context, entry *auditDomain.AuditLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.Must(uuid.NewV7())
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	// Stores keep microseconds; the signature must survive the round trip.
	entry.CreatedAt = entry.CreatedAt.UTC().Truncate(time.Microsecond)

	primary := a.keyset.Primary()
	entry.KeyVersion = primary.Version

	signature, err := a.signer.Sign(primary.HMACKey, entry)
	if err != nil {
		return apperrors.Wrap(err, "failed to sign audit log")
	}
	entry.Signature = signature

	if err := a.auditLogRepo.Create(ctx, entry); err != nil {
		return apperrors.Wrap(err, "failed to append audit log")
	}
	return nil
}

// List implements AuditLogUseCase.
func (a *auditLogUseCase) List(ctx context.Context, input *ListInput) (*ListOutput, error) {
	if _, err := escrowDomain.LookupSecretType(input.SecretType); err != nil {
		return nil, err
	}

	allowed, err := a.evaluator.HasCapability(input.Requester, input.SecretType, authDomain.PermissionMaster)
	if err != nil {
		return nil, err
	}
	if !allowed {
		a.appendLogsEntry(ctx, input, false)
		return nil, auditDomain.ErrAccessDenied
	}

	criteria := auditDomain.ListCriteria{
		SecretType: input.SecretType,
		OnlyErrors: input.OnlyErrors,
		Limit:      input.Limit,
	}
	if criteria.Limit <= 0 {
		criteria.Limit = auditDomain.DefaultPageSize
	}
	if criteria.Limit > auditDomain.MaxPageSize {
		criteria.Limit = auditDomain.MaxPageSize
	}
	if input.Cursor != "" {
		cursor, err := auditDomain.ParseCursor(input.Cursor)
		if err != nil {
			return nil, err
		}
		criteria.Before = cursor
	}

	pageSize := criteria.Limit
	criteria.Limit++

	logs, err := a.auditLogRepo.List(ctx, criteria)
	if err != nil {
		return nil, err
	}

	output := &ListOutput{Logs: logs}
	if len(logs) > pageSize {
		output.Logs = logs[:pageSize]
		output.NextCursor = output.Logs[pageSize-1].PaginationKey()
	}

	a.appendLogsEntry(ctx, input, true)
	return output, nil
}

func (a *auditLogUseCase) appendLogsEntry(ctx context.Context, input *ListInput, successful bool) {
	principal := ""
	if input.Requester != nil {
		principal = input.Requester.PrincipalID()
	}
	entry := &auditDomain.AuditLog{
		SecretType: input.SecretType,
		Principal:  principal,
		Message:    auditDomain.MessageLogs,
		Successful: successful,
		IPAddress:  input.IPAddress,
		Query:      input.Cursor,
	}
	if err := a.Append(ctx, entry); err != nil {
		a.logger.Error("failed to append audit log",
			slog.String("secret_type", input.SecretType),
			slog.String("message", auditDomain.MessageLogs),
			slog.Any("error", err),
		)
	}
}

// VerifyIntegrity implements AuditLogUseCase.
func (a *auditLogUseCase) VerifyIntegrity(ctx context.Context, id uuid.UUID) error {
	entry, err := a.auditLogRepo.Get(ctx, id)
	if err != nil {
		return err
	}
	return a.verify(entry)
}

func (a *auditLogUseCase) verify(entry *auditDomain.AuditLog) error {
	version, ok := a.keyset.Get(entry.KeyVersion)
	if !ok {
		return auditDomain.ErrSigningKeyNotFound
	}
	return a.signer.Verify(version.HMACKey, entry)
}

// VerifyBatch implements AuditLogUseCase.
func (a *auditLogUseCase) VerifyBatch(
	ctx context.Context,
	startTime, endTime time.Time,
) (*auditDomain.VerificationReport, error) {
	report := &auditDomain.VerificationReport{InvalidLogs: make([]uuid.UUID, 0)}

	var afterSequence int64
	for {
		logs, err := a.auditLogRepo.ListRange(ctx, startTime, endTime, afterSequence, verifyBatchSize)
		if err != nil {
			return nil, err
		}

		for _, entry := range logs {
			report.TotalChecked++
			err := a.verify(entry)
			switch {
			case err == nil:
				report.ValidCount++
			case errors.Is(err, auditDomain.ErrSignatureInvalid), errors.Is(err, auditDomain.ErrSigningKeyNotFound):
				report.InvalidCount++
				report.InvalidLogs = append(report.InvalidLogs, entry.ID)
			default:
				return nil, err
			}
			afterSequence = entry.Sequence
		}

		if len(logs) < verifyBatchSize {
			return report, nil
		}
	}
}
