package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/allisson/escrow/internal/database"
	"github.com/allisson/escrow/internal/outbox/domain"
)

// MySQLOutboxEventRepository keeps ids as BINARY(16).
type MySQLOutboxEventRepository struct {
	db *sql.DB
}

func NewMySQLOutboxEventRepository(db *sql.DB) *MySQLOutboxEventRepository {
	return &MySQLOutboxEventRepository{db: db}
}

func (r *MySQLOutboxEventRepository) Create(ctx context.Context, event *domain.OutboxEvent) error {
	id, err := event.ID.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = database.GetTx(ctx, r.db).ExecContext(ctx,
		`INSERT INTO outbox_events (`+outboxColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, event.EventType, event.Payload, event.Status, event.Retries, event.LastError,
		event.NextAttemptAt, event.ProcessedAt, event.CreatedAt, event.UpdatedAt,
	)
	return err
}

func (r *MySQLOutboxEventRepository) GetPendingEvents(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*domain.OutboxEvent, error) {
	rows, err := database.GetTx(ctx, r.db).QueryContext(ctx,
		`SELECT `+outboxColumns+`
		 FROM outbox_events
		 WHERE status = ? AND next_attempt_at <= ?
		 ORDER BY next_attempt_at, created_at
		 LIMIT ?
		 FOR UPDATE SKIP LOCKED`,
		domain.OutboxEventStatusPending, now, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	events := []*domain.OutboxEvent{}
	for rows.Next() {
		var id []byte
		event := &domain.OutboxEvent{}
		if err := scanEvent(rows, &id, event); err != nil {
			return nil, err
		}
		if err := event.ID.UnmarshalBinary(id); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *MySQLOutboxEventRepository) Update(ctx context.Context, event *domain.OutboxEvent) error {
	id, err := event.ID.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = database.GetTx(ctx, r.db).ExecContext(ctx,
		`UPDATE outbox_events
		 SET status = ?, retries = ?, last_error = ?, next_attempt_at = ?, processed_at = ?, updated_at = ?
		 WHERE id = ?`,
		event.Status, event.Retries, event.LastError, event.NextAttemptAt, event.ProcessedAt,
		event.UpdatedAt, id,
	)
	return err
}
