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

type MySQLClientRepository struct {
	db *sql.DB
}

func NewMySQLClientRepository(db *sql.DB) *MySQLClientRepository {
	return &MySQLClientRepository{db: db}
}

func (m *MySQLClientRepository) Create(ctx context.Context, client *authDomain.Client) error {
	grants, err := encodeGrants(client.Grants)
	if err != nil {
		return err
	}
	id, err := client.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal client id")
	}
	_, err = database.GetTx(ctx, m.db).ExecContext(ctx,
		`INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, client.Secret, client.Name, client.IsActive, grants,
		client.FailedAttempts, client.LockedUntil, client.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create client")
	}
	return nil
}

func (m *MySQLClientRepository) Update(ctx context.Context, client *authDomain.Client) error {
	grants, err := encodeGrants(client.Grants)
	if err != nil {
		return err
	}
	id, err := client.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal client id")
	}
	_, err = database.GetTx(ctx, m.db).ExecContext(ctx,
		`UPDATE clients SET secret = ?, name = ?, is_active = ?, grants = ? WHERE id = ?`,
		client.Secret, client.Name, client.IsActive, grants, id,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update client")
	}
	return nil
}

func (m *MySQLClientRepository) Get(ctx context.Context, clientID uuid.UUID) (*authDomain.Client, error) {
	key, err := clientID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal client id")
	}
	row := database.GetTx(ctx, m.db).QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = ?`, key)

	client, err := scanMySQLClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authDomain.ErrClientNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get client")
	}
	return client, nil
}

func (m *MySQLClientRepository) List(ctx context.Context, offset, limit int) ([]*authDomain.Client, error) {
	rows, err := database.GetTx(ctx, m.db).QueryContext(ctx,
		`SELECT `+clientColumns+` FROM clients ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list clients")
	}
	defer rows.Close() //nolint:errcheck

	clients := []*authDomain.Client{}
	for rows.Next() {
		client, err := scanMySQLClient(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan client row")
		}
		clients = append(clients, client)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate client rows")
	}
	return clients, nil
}

func (m *MySQLClientRepository) UpdateLockState(
	ctx context.Context,
	clientID uuid.UUID,
	failedAttempts int,
	lockedUntil *time.Time,
) error {
	id, err := clientID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal client id")
	}
	_, err = database.GetTx(ctx, m.db).ExecContext(ctx,
		`UPDATE clients SET failed_attempts = ?, locked_until = ? WHERE id = ?`,
		failedAttempts, lockedUntil, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to update client lock state")
	}
	return nil
}

func scanMySQLClient(row rowScanner) (*authDomain.Client, error) {
	var id []byte
	client, err := scanClient(row, &id)
	if err != nil {
		return nil, err
	}
	if err := client.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal client id")
	}
	return client, nil
}
