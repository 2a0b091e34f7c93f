package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/escrow/internal/database"
	"github.com/allisson/escrow/internal/outbox/domain"
)

var outboxColumnNames = []string{
	"id", "event_type", "payload", "status", "retries", "last_error", "next_attempt_at",
	"processed_at", "created_at", "updated_at",
}

var testPolicy = domain.RetryPolicy{MaxRetries: 3, BaseDelay: time.Minute, MaxDelay: time.Hour}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

func newTestEvent(t *testing.T) *domain.OutboxEvent {
	t.Helper()
	event, err := domain.NewSecretRetrievedEvent(&domain.SecretRetrievedPayload{
		RecordID:   uuid.Must(uuid.NewV7()),
		SecretType: "filevault",
		TargetID:   "V1",
		Recipients: []string{"alice@example.com"},
	})
	require.NoError(t, err)
	return event
}

func TestPostgreSQLOutboxEventRepository_CreateJoinsTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLOutboxEventRepository(db)
	event := newTestEvent(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(event.ID, domain.EventTypeSecretRetrieved, event.Payload, domain.OutboxEventStatusPending,
			0, nil, event.NextAttemptAt, nil, event.CreatedAt, event.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := database.NewTxManager(db).WithTx(context.Background(), func(ctx context.Context) error {
		return repo.Create(ctx, event)
	})
	require.NoError(t, err)
}

func TestPostgreSQLOutboxEventRepository_GetPendingEvents(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLOutboxEventRepository(db)
	event := newTestEvent(t)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE status = \$1 AND next_attempt_at <= \$2 (.+) FOR UPDATE SKIP LOCKED`).
		WithArgs(domain.OutboxEventStatusPending, now, 10).
		WillReturnRows(sqlmock.NewRows(outboxColumnNames).
			AddRow(event.ID.String(), event.EventType, event.Payload, "pending", 1, "timeout",
				now.Add(-time.Second), nil, event.CreatedAt, event.UpdatedAt))

	events, err := repo.GetPendingEvents(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
	assert.Equal(t, 1, events[0].Retries)
	require.NotNil(t, events[0].LastError)
	assert.Equal(t, "timeout", *events[0].LastError)
	assert.True(t, events[0].Due(now))
}

func TestPostgreSQLOutboxEventRepository_GetPendingEventsError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLOutboxEventRepository(db)
	dbErr := errors.New("connection reset")

	mock.ExpectQuery("FROM outbox_events").WillReturnError(dbErr)

	_, err := repo.GetPendingEvents(context.Background(), time.Now(), 10)
	assert.ErrorIs(t, err, dbErr)
}

func TestPostgreSQLOutboxEventRepository_UpdateReschedules(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLOutboxEventRepository(db)
	event := newTestEvent(t)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	event.MarkFailed(errors.New("webhook returned 502"), testPolicy, now)

	mock.ExpectExec(`UPDATE outbox_events SET status = \$1`).
		WithArgs(domain.OutboxEventStatusPending, 1, "webhook returned 502", now.Add(time.Minute), nil, now, event.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), event))
}

func TestMySQLOutboxEventRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOutboxEventRepository(db)
	event := newTestEvent(t)
	id, err := event.ID.MarshalBinary()
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(id, domain.EventTypeSecretRetrieved, event.Payload, domain.OutboxEventStatusPending,
			0, nil, event.NextAttemptAt, nil, event.CreatedAt, event.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), event))
}

func TestMySQLOutboxEventRepository_GetPendingEvents(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOutboxEventRepository(db)
	event := newTestEvent(t)
	id, err := event.ID.MarshalBinary()
	require.NoError(t, err)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE status = \? AND next_attempt_at <= \?`).
		WithArgs(domain.OutboxEventStatusPending, now, 5).
		WillReturnRows(sqlmock.NewRows(outboxColumnNames).
			AddRow(id, event.EventType, event.Payload, "pending", 0, nil, now, nil, event.CreatedAt, event.UpdatedAt))

	events, err := repo.GetPendingEvents(context.Background(), now, 5)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
	assert.Nil(t, events[0].LastError)
}

func TestMySQLOutboxEventRepository_GetPendingEventsBadID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOutboxEventRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM outbox_events").
		WillReturnRows(sqlmock.NewRows(outboxColumnNames).
			AddRow([]byte{1, 2, 3}, domain.EventTypeSecretRetrieved, "{}", "pending", 0, nil, now, nil, now, now))

	_, err := repo.GetPendingEvents(context.Background(), now, 5)
	assert.Error(t, err)
}

func TestMySQLOutboxEventRepository_UpdateGivesUp(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLOutboxEventRepository(db)
	event := newTestEvent(t)
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	event.MarkFailed(errors.New("boom"), domain.RetryPolicy{MaxRetries: 1}, now)
	id, err := event.ID.MarshalBinary()
	require.NoError(t, err)

	mock.ExpectExec(`UPDATE outbox_events SET status = \?`).
		WithArgs(domain.OutboxEventStatusFailed, 1, "boom", event.NextAttemptAt, nil, now, id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), event))
}
