// Package usecase implements the escrow version controller: storing new secret
// versions race-safely, retrieving the active version for authorized principals and
// mutating the small set of record fields that may change after creation.
package usecase

import (
	"context"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/escrow/internal/audit/domain"
	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
	outboxDomain "github.com/allisson/escrow/internal/outbox/domain"
)

// SecretRecordRepository persists secret records. Implementations must be transaction
// aware through database.GetTx.
type SecretRecordRepository interface {
	// Create inserts record. Inserting an active record for a (type, target, tag) that
	// already has one returns ErrSupersedeConflict.
	Create(ctx context.Context, record *escrowDomain.SecretRecord) error

	// Get returns the record with id regardless of its state.
	Get(ctx context.Context, id uuid.UUID) (*escrowDomain.SecretRecord, error)

	// GetActive returns the active record for (secretType, targetID, tag).
	GetActive(ctx context.Context, secretType, targetID, tag string) (*escrowDomain.SecretRecord, error)

	// Deactivate flips the record to inactive only if it is still active. When no row
	// changes it returns ErrSupersedeConflict.
	Deactivate(ctx context.Context, id uuid.UUID) error

	// UpdateMutable applies fields to the record only if it is active. When no row
	// changes it returns ErrRecordInactive.
	UpdateMutable(ctx context.Context, id uuid.UUID, fields escrowDomain.MutableFields) error

	// Search returns records matching criteria, newest first.
	Search(ctx context.Context, criteria escrowDomain.SearchCriteria) ([]*escrowDomain.SecretRecord, error)
}

// AuditLogger appends audit entries.
type AuditLogger interface {
	Append(ctx context.Context, entry *auditDomain.AuditLog) error
}

// OutboxEventRepository enqueues notification events in the caller's transaction.
type OutboxEventRepository interface {
	Create(ctx context.Context, event *outboxDomain.OutboxEvent) error
}

// VersionController is the escrow use case surface.
type VersionController interface {
	// Escrow stores a new version for a target. An identical active version returns
	// ErrDuplicateSecret without writing; an older version is stored inactive.
	Escrow(ctx context.Context, input *escrowDomain.EscrowInput) (*escrowDomain.SecretRecord, error)

	// Retrieve decrypts the active version (or the record named by RecordID) for an
	// authorized requester and flags the record for rekeying.
	//
	// Callers MUST zero the returned Plaintext after use.
	Retrieve(ctx context.Context, input *escrowDomain.RetrieveInput) (*escrowDomain.RetrieveOutput, error)

	// Patch updates the mutable fields of an active record.
	Patch(ctx context.Context, recordID uuid.UUID, fields escrowDomain.MutableFields) error

	// ChangeOwners replaces the owners of an active record. It returns false when the
	// normalized owner set is unchanged.
	ChangeOwners(ctx context.Context, input *escrowDomain.ChangeOwnersInput) (bool, error)

	// RekeyStatus reports whether an owner must rotate the target's secret.
	RekeyStatus(ctx context.Context, input *escrowDomain.RekeyStatusInput) (bool, error)

	// Search finds records by a column or metadata value.
	Search(ctx context.Context, input *escrowDomain.SearchInput) ([]*escrowDomain.SecretRecord, error)
}
