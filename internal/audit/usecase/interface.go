// Package usecase implements appending, listing and verifying audit log entries.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/escrow/internal/audit/domain"
	authDomain "github.com/allisson/escrow/internal/auth/domain"
)

// AuditLogRepository persists audit entries. Create must set the entry Sequence.
type AuditLogRepository interface {
	Create(ctx context.Context, log *auditDomain.AuditLog) error
	Get(ctx context.Context, id uuid.UUID) (*auditDomain.AuditLog, error)
	List(ctx context.Context, criteria auditDomain.ListCriteria) ([]*auditDomain.AuditLog, error)
	ListRange(
		ctx context.Context,
		start, end time.Time,
		afterSequence int64,
		limit int,
	) ([]*auditDomain.AuditLog, error)
}

// ListInput requests one page of a secret type's audit log.
type ListInput struct {
	SecretType string
	OnlyErrors bool
	// Cursor is the pagination key of the last entry of the previous page.
	Cursor    string
	Limit     int
	Requester *authDomain.Client
	IPAddress string
}

// ListOutput carries a page and the cursor for the next one. NextCursor is empty on
// the last page.
type ListOutput struct {
	Logs       []*auditDomain.AuditLog
	NextCursor string
}

// AuditLogUseCase is the audit log surface. Append is the only write.
type AuditLogUseCase interface {
	// Append signs and stores entry, assigning its id, timestamp and key version when unset.
	Append(ctx context.Context, entry *auditDomain.AuditLog) error

	// List returns a page of entries newest first. Requires MASTER on the secret type.
	List(ctx context.Context, input *ListInput) (*ListOutput, error)

	// VerifyIntegrity checks the signature of a single entry.
	VerifyIntegrity(ctx context.Context, id uuid.UUID) error

	// VerifyBatch checks every entry created in [startTime, endTime).
	VerifyBatch(ctx context.Context, startTime, endTime time.Time) (*auditDomain.VerificationReport, error)
}
