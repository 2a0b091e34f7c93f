// Package repository stores notification outbox events in PostgreSQL or MySQL.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/escrow/internal/database"
	"github.com/allisson/escrow/internal/outbox/domain"
)

const outboxColumns = `id, event_type, payload, status, retries, last_error, next_attempt_at,
	processed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEvent reads one row in outboxColumns order. id receives the raw id column so
// that each driver can decode its own representation.
func scanEvent(row rowScanner, id any, event *domain.OutboxEvent) error {
	return row.Scan(id, &event.EventType, &event.Payload, &event.Status, &event.Retries,
		&event.LastError, &event.NextAttemptAt, &event.ProcessedAt, &event.CreatedAt, &event.UpdatedAt)
}

type PostgreSQLOutboxEventRepository struct {
	db *sql.DB
}

func NewPostgreSQLOutboxEventRepository(db *sql.DB) *PostgreSQLOutboxEventRepository {
	return &PostgreSQLOutboxEventRepository{db: db}
}

// Create enqueues event, inside the caller's transaction when there is one.
func (r *PostgreSQLOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	_, err := database.GetTx(ctx, r.db).ExecContext(ctx,
		`INSERT INTO outbox_events (`+outboxColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		event.ID, event.EventType, event.Payload, event.Status, event.Retries, event.LastError,
		event.NextAttemptAt, event.ProcessedAt, event.CreatedAt, event.UpdatedAt,
	)
	return err
}

// GetPendingEvents locks up to limit pending events due at now, in due order. Rows
// held by another worker are skipped.
func (r *PostgreSQLOutboxEventRepository) GetPendingEvents(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	rows, err := database.GetTx(ctx, r.db).QueryContext(ctx,
		`SELECT `+outboxColumns+`
		 FROM outbox_events
		 WHERE status = $1 AND next_attempt_at <= $2
		 ORDER BY next_attempt_at, created_at
		 LIMIT $3
		 FOR UPDATE SKIP LOCKED`,
		domain.OutboxEventStatusPending, now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	events := []*domain.OutboxEvent{}
	for rows.Next() {
		event := &domain.OutboxEvent{}
		if err := scanEvent(rows, &event.ID, event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *PostgreSQLOutboxEventRepository) Update(ctx context.Context, event *domain.OutboxEvent) error {
	_, err := database.GetTx(ctx, r.db).ExecContext(ctx,
		`UPDATE outbox_events
		 SET status = $1, retries = $2, last_error = $3, next_attempt_at = $4, processed_at = $5, updated_at = $6
		 WHERE id = $7`,
		event.Status, event.Retries, event.LastError, event.NextAttemptAt, event.ProcessedAt,
		event.UpdatedAt, event.ID,
	)
	return err
}
