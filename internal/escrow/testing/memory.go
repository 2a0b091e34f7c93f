// Package testing provides an in-memory store and fixtures for escrow use case tests.
//
// The store mirrors the guarantees of the SQL repositories: inserting a second active
// record for a (type, target, tag) fails, deactivation and mutable updates are
// conditional on the record being active, and transactions roll back on error.
// Writes are serialized; reads are not, so concurrent callers observe the same
// intermediate states a READ COMMITTED database would expose.
package testing

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/escrow/internal/audit/domain"
	"github.com/allisson/escrow/internal/database"
	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
	outboxDomain "github.com/allisson/escrow/internal/outbox/domain"
)

type txKey struct{}

type memTx struct {
	undo []func()
}

// Store holds records, audit entries and outbox events in memory.
type Store struct {
	writeMu sync.Mutex
	mu      sync.Mutex

	records   map[uuid.UUID]*escrowDomain.SecretRecord
	auditLogs []*auditDomain.AuditLog
	sequence  int64
	events    []*outboxDomain.OutboxEvent
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{records: make(map[uuid.UUID]*escrowDomain.SecretRecord)}
}

// TxManager returns a database.TxManager whose transactions serialize writes and roll
// back every store mutation when fn fails.
func (s *Store) TxManager() database.TxManager {
	return &memTxManager{store: s}
}

// SecretRecords returns the record repository view of the store.
func (s *Store) SecretRecords() *SecretRecordRepository {
	return &SecretRecordRepository{store: s}
}

// AuditLogs returns the audit log repository view of the store.
func (s *Store) AuditLogs() *AuditLogRepository {
	return &AuditLogRepository{store: s}
}

// OutboxEvents returns the outbox repository view of the store.
func (s *Store) OutboxEvents() *OutboxEventRepository {
	return &OutboxEventRepository{store: s}
}

// Records returns copies of every stored record for (secretType, targetID, tag).
func (s *Store) Records(secretType, targetID, tag string) []*escrowDomain.SecretRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*escrowDomain.SecretRecord
	for _, r := range s.records {
		if r.SecretType == secretType && r.TargetID == targetID && r.Tag == tag {
			out = append(out, cloneRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out
}

// AuditEntries returns a copy of every appended audit entry in insertion order.
func (s *Store) AuditEntries() []auditDomain.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]auditDomain.AuditLog, 0, len(s.auditLogs))
	for _, l := range s.auditLogs {
		out = append(out, *l)
	}
	return out
}

// Events returns a copy of every enqueued outbox event.
func (s *Store) Events() []outboxDomain.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]outboxDomain.OutboxEvent, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, *e)
	}
	return out
}

// write runs fn holding the data lock. Outside a transaction it also takes the write
// lock; inside one the transaction already holds it and fn may register undo steps.
func (s *Store) write(ctx context.Context, fn func(tx *memTx) error) error {
	tx, inTx := ctx.Value(txKey{}).(*memTx)
	if !inTx {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(tx)
}

type memTxManager struct {
	store *Store
}

func (m *memTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*memTx); ok {
		return fn(ctx)
	}

	m.store.writeMu.Lock()
	defer m.store.writeMu.Unlock()

	tx := &memTx{}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		m.store.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		m.store.mu.Unlock()
		return err
	}
	return nil
}

func onRollback(tx *memTx, fn func()) {
	if tx != nil {
		tx.undo = append(tx.undo, fn)
	}
}

func cloneRecord(r *escrowDomain.SecretRecord) *escrowDomain.SecretRecord {
	cp := *r
	cp.Owners = slices.Clone(r.Owners)
	cp.Metadata = maps.Clone(r.Metadata)
	return &cp
}

// SecretRecordRepository implements the escrow record repository over a Store.
type SecretRecordRepository struct {
	store *Store
}

// Create inserts record, rejecting a second active record for the same key.
func (r *SecretRecordRepository) Create(ctx context.Context, record *escrowDomain.SecretRecord) error {
	return r.store.write(ctx, func(tx *memTx) error {
		if record.Active {
			for _, existing := range r.store.records {
				if existing.Active && existing.SecretType == record.SecretType &&
					existing.TargetID == record.TargetID && existing.Tag == record.Tag {
					return escrowDomain.ErrSupersedeConflict
				}
			}
		}
		r.store.records[record.ID] = cloneRecord(record)
		id := record.ID
		onRollback(tx, func() { delete(r.store.records, id) })
		return nil
	})
}

// Get returns a copy of the record with id.
func (r *SecretRecordRepository) Get(_ context.Context, id uuid.UUID) (*escrowDomain.SecretRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	record, ok := r.store.records[id]
	if !ok {
		return nil, escrowDomain.ErrSecretRecordNotFound
	}
	return cloneRecord(record), nil
}

// GetActive returns a copy of the active record for the key.
func (r *SecretRecordRepository) GetActive(
	_ context.Context,
	secretType, targetID, tag string,
) (*escrowDomain.SecretRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for _, record := range r.store.records {
		if record.Active && record.SecretType == secretType && record.TargetID == targetID && record.Tag == tag {
			return cloneRecord(record), nil
		}
	}
	return nil, escrowDomain.ErrSecretRecordNotFound
}

// Deactivate flips an active record to inactive.
func (r *SecretRecordRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return r.store.write(ctx, func(tx *memTx) error {
		record, ok := r.store.records[id]
		if !ok || !record.Active {
			return escrowDomain.ErrSupersedeConflict
		}
		record.Active = false
		onRollback(tx, func() { record.Active = true })
		return nil
	})
}

// UpdateMutable applies fields to an active record.
func (r *SecretRecordRepository) UpdateMutable(
	ctx context.Context,
	id uuid.UUID,
	fields escrowDomain.MutableFields,
) error {
	return r.store.write(ctx, func(tx *memTx) error {
		record, ok := r.store.records[id]
		if !ok || !record.Active {
			return escrowDomain.ErrRecordInactive
		}
		before := cloneRecord(record)
		if fields.Owners != nil {
			record.Owners = slices.Clone(fields.Owners)
		}
		if fields.Hostname != nil {
			record.Hostname = *fields.Hostname
		}
		if fields.ForceRekeying != nil {
			record.ForceRekeying = *fields.ForceRekeying
		}
		onRollback(tx, func() { *record = *before })
		return nil
	})
}

// Search matches criteria against columns and metadata, newest first.
func (r *SecretRecordRepository) Search(
	_ context.Context,
	criteria escrowDomain.SearchCriteria,
) ([]*escrowDomain.SecretRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	match := func(value string) bool {
		if criteria.Prefix {
			return strings.HasPrefix(value, criteria.Value)
		}
		return value == criteria.Value
	}

	var out []*escrowDomain.SecretRecord
	for _, record := range r.store.records {
		if record.SecretType != criteria.SecretType {
			continue
		}
		if criteria.Tag != "" && record.Tag != criteria.Tag {
			continue
		}
		var ok bool
		switch criteria.Field {
		case escrowDomain.SearchFieldTargetID:
			ok = match(record.TargetID)
		case escrowDomain.SearchFieldHostname:
			ok = match(record.Hostname)
		case escrowDomain.SearchFieldCreatedBy:
			ok = match(record.CreatedBy)
		case escrowDomain.SearchFieldOwner:
			ok = slices.ContainsFunc(record.Owners, match)
		default:
			value, present := record.Metadata[criteria.Field]
			ok = present && match(value)
		}
		if ok {
			out = append(out, cloneRecord(record))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.After(out[j].Created)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	if criteria.Limit > 0 && len(out) > criteria.Limit {
		out = out[:criteria.Limit]
	}
	return out, nil
}

// AuditLogRepository implements the audit log repository over a Store.
type AuditLogRepository struct {
	store *Store
}

// Create appends entry and assigns the next sequence.
func (a *AuditLogRepository) Create(ctx context.Context, entry *auditDomain.AuditLog) error {
	return a.store.write(ctx, func(tx *memTx) error {
		a.store.sequence++
		entry.Sequence = a.store.sequence
		cp := *entry
		a.store.auditLogs = append(a.store.auditLogs, &cp)
		n := len(a.store.auditLogs)
		onRollback(tx, func() { a.store.auditLogs = a.store.auditLogs[:n-1] })
		return nil
	})
}

// Get returns a copy of the entry with id.
func (a *AuditLogRepository) Get(_ context.Context, id uuid.UUID) (*auditDomain.AuditLog, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	for _, l := range a.store.auditLogs {
		if l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, auditDomain.ErrAuditLogNotFound
}

// Tamper applies fn to the stored entry with id, for integrity tests.
func (a *AuditLogRepository) Tamper(id uuid.UUID, fn func(entry *auditDomain.AuditLog)) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	for _, l := range a.store.auditLogs {
		if l.ID == id {
			fn(l)
		}
	}
}

// List returns a page ordered by pagination key descending.
func (a *AuditLogRepository) List(
	_ context.Context,
	criteria auditDomain.ListCriteria,
) ([]*auditDomain.AuditLog, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	var before string
	if criteria.Before != nil {
		before = criteria.Before.String()
	}

	out := make([]*auditDomain.AuditLog, 0)
	for _, l := range a.store.auditLogs {
		if l.SecretType != criteria.SecretType || (criteria.OnlyErrors && l.Successful) {
			continue
		}
		if before != "" && l.PaginationKey() >= before {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PaginationKey() > out[j].PaginationKey() })
	if criteria.Limit > 0 && len(out) > criteria.Limit {
		out = out[:criteria.Limit]
	}
	return out, nil
}

// ListRange returns entries created in [start, end) after afterSequence.
func (a *AuditLogRepository) ListRange(
	_ context.Context,
	start, end time.Time,
	afterSequence int64,
	limit int,
) ([]*auditDomain.AuditLog, error) {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()

	out := make([]*auditDomain.AuditLog, 0)
	for _, l := range a.store.auditLogs {
		if l.Sequence <= afterSequence || l.CreatedAt.Before(start) || !l.CreatedAt.Before(end) {
			continue
		}
		cp := *l
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// OutboxEventRepository implements the outbox repository over a Store.
type OutboxEventRepository struct {
	store *Store
}

// Create enqueues event.
func (o *OutboxEventRepository) Create(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	return o.store.write(ctx, func(tx *memTx) error {
		cp := *event
		o.store.events = append(o.store.events, &cp)
		n := len(o.store.events)
		onRollback(tx, func() { o.store.events = o.store.events[:n-1] })
		return nil
	})
}

// GetPendingEvents returns up to limit events due at now, in insertion order.
func (o *OutboxEventRepository) GetPendingEvents(
	_ context.Context,
	now time.Time,
	limit int,
) ([]*outboxDomain.OutboxEvent, error) {
	o.store.mu.Lock()
	defer o.store.mu.Unlock()

	var out []*outboxDomain.OutboxEvent
	for _, e := range o.store.events {
		if e.Due(now) {
			cp := *e
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Update replaces the stored event with the same id.
func (o *OutboxEventRepository) Update(ctx context.Context, event *outboxDomain.OutboxEvent) error {
	return o.store.write(ctx, func(tx *memTx) error {
		for i, e := range o.store.events {
			if e.ID == event.ID {
				before := *e
				cp := *event
				o.store.events[i] = &cp
				onRollback(tx, func() { o.store.events[i] = &before })
				return nil
			}
		}
		return nil
	})
}
