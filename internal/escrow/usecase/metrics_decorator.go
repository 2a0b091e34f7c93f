package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
	"github.com/allisson/escrow/internal/metrics"
)

// versionControllerWithMetrics decorates VersionController with metrics instrumentation.
type versionControllerWithMetrics struct {
	next    VersionController
	metrics metrics.BusinessMetrics
}

// NewVersionControllerWithMetrics wraps a VersionController with metrics recording.
func NewVersionControllerWithMetrics(controller VersionController, m metrics.BusinessMetrics) VersionController {
	return &versionControllerWithMetrics{
		next:    controller,
		metrics: m,
	}
}

func (v *versionControllerWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.StatusFromError(err)
	v.metrics.RecordOperation(ctx, "escrow", operation, status)
	v.metrics.RecordDuration(ctx, "escrow", operation, time.Since(start), status)
}

// Escrow records metrics for escrow operations. Duplicates get their own status.
func (v *versionControllerWithMetrics) Escrow(
	ctx context.Context,
	input *escrowDomain.EscrowInput,
) (*escrowDomain.SecretRecord, error) {
	start := time.Now()
	record, err := v.next.Escrow(ctx, input)
	v.record(ctx, "secret_escrow", start, err)
	return record, err
}

// Retrieve records metrics for retrieval operations.
func (v *versionControllerWithMetrics) Retrieve(
	ctx context.Context,
	input *escrowDomain.RetrieveInput,
) (*escrowDomain.RetrieveOutput, error) {
	start := time.Now()
	output, err := v.next.Retrieve(ctx, input)
	v.record(ctx, "secret_retrieve", start, err)
	return output, err
}

// Patch records metrics for record patches.
func (v *versionControllerWithMetrics) Patch(
	ctx context.Context,
	recordID uuid.UUID,
	fields escrowDomain.MutableFields,
) error {
	start := time.Now()
	err := v.next.Patch(ctx, recordID, fields)
	v.record(ctx, "secret_patch", start, err)
	return err
}

// ChangeOwners records metrics for owner changes.
func (v *versionControllerWithMetrics) ChangeOwners(
	ctx context.Context,
	input *escrowDomain.ChangeOwnersInput,
) (bool, error) {
	start := time.Now()
	changed, err := v.next.ChangeOwners(ctx, input)
	v.record(ctx, "secret_change_owners", start, err)
	return changed, err
}

// RekeyStatus records metrics for rekey status checks.
func (v *versionControllerWithMetrics) RekeyStatus(
	ctx context.Context,
	input *escrowDomain.RekeyStatusInput,
) (bool, error) {
	start := time.Now()
	rekey, err := v.next.RekeyStatus(ctx, input)
	v.record(ctx, "secret_rekey_status", start, err)
	return rekey, err
}

// Search records metrics for searches.
func (v *versionControllerWithMetrics) Search(
	ctx context.Context,
	input *escrowDomain.SearchInput,
) ([]*escrowDomain.SecretRecord, error) {
	start := time.Now()
	records, err := v.next.Search(ctx, input)
	v.record(ctx, "secret_search", start, err)
	return records, err
}
