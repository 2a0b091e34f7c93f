package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
	"github.com/allisson/escrow/internal/database"
	apperrors "github.com/allisson/escrow/internal/errors"
)

type PostgreSQLClientRepository struct {
	db *sql.DB
}

func NewPostgreSQLClientRepository(db *sql.DB) *PostgreSQLClientRepository {
	return &PostgreSQLClientRepository{db: db}
}

func (p *PostgreSQLClientRepository) Create(ctx context.Context, client *authDomain.Client) error {
	grants, err := encodeGrants(client.Grants)
	if err != nil {
		return err
	}
	_, err = database.GetTx(ctx, p.db).ExecContext(ctx,
		`INSERT INTO clients (`+clientColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		client.ID, client.Secret, client.Name, client.IsActive, grants,
		client.FailedAttempts, client.LockedUntil, client.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create client")
	}
	return nil
}

// Update rewrites the mutable columns. Lock state has its own statement, see UpdateLockState.
func (p *PostgreSQLClientRepository) Update(ctx context.Context, client *authDomain.Client) error {
	grants, err := encodeGrants(client.Grants)
	if err != nil {
		return err
	}
	_, err = database.GetTx(ctx, p.db).ExecContext(ctx,
		`UPDATE clients SET secret = $1, name = $2, is_active = $3, grants = $4 WHERE id = $5`,
		client.Secret, client.Name, client.IsActive, grants, client.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update client")
	}
	return nil
}

func (p *PostgreSQLClientRepository) Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error) {
	var id uuid.UUID
	row := database.GetTx(ctx, p.db).QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1`, clientID)

	client, err := scanClient(row, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authDomain.ErrClientNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get client")
	}
	client.ID = id
	return client, nil
}

// List pages through clients newest first (ids are UUIDv7).
func (p *PostgreSQLClientRepository) List(ctx context.Context, offset, limit int) ([]*authDomain.Client, error) {
	rows, err := database.GetTx(ctx, p.db).QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list clients")
	}
	defer rows.Close() //nolint:errcheck

	clients := []*authDomain.Client{}
	for rows.Next() {
		var id uuid.UUID
		client, err := scanClient(rows, &id)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan client row")
		}
		client.ID = id
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate client rows")
	}
	return clients, nil
}

func (p *PostgreSQLClientRepository) UpdateLockState(
	ctx context.Context,
	clientID uuid.UUID,
	failedAttempts int,
	lockedUntil *time.Time,
) error {
	_, err := database.GetTx(ctx, p.db).ExecContext(ctx,
		`UPDATE clients SET failed_attempts = $1, locked_until = $2 WHERE id = $3`,
		failedAttempts, lockedUntil, clientID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update client lock state")
	}
	return nil
}
