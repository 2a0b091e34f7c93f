package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
	"github.com/allisson/escrow/internal/database"
	apperrors "github.com/allisson/escrow/internal/errors"
)

type MySQLTokenRepository struct {
	db *sql.DB
}

func NewMySQLTokenRepository(db *sql.DB) *MySQLTokenRepository {
	return &MySQLTokenRepository{db: db}
}

func (m *MySQLTokenRepository) Create(ctx context.Context, token *authDomain.Token) error {
	id, err := token.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal token id")
	}
	clientID, err := token.ClientID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal client id")
	}
	_, err = database.GetTx(ctx, m.db).ExecContext(ctx,
		`INSERT INTO tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		id, token.TokenHash, clientID, token.ExpiresAt, token.RevokedAt, token.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create token")
	}
	return nil
}

func (m *MySQLTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*authDomain.Token, error) {
	token := &authDomain.Token{}
	var id, clientID []byte
	err := database.GetTx(ctx, m.db).
		QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE token_hash = ?`, tokenHash).
		Scan(&id, &token.TokenHash, &clientID, &token.ExpiresAt, &token.RevokedAt, &token.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authDomain.ErrTokenNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get token by hash")
	}

	if err := token.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal token id")
	}
	if err := token.ClientID.UnmarshalBinary(clientID); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal client id")
	}
	return token, nil
}

func (m *MySQLTokenRepository) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return expiredTokens(ctx, database.GetTx(ctx, m.db), `DELETE FROM tokens WHERE expires_at < ?`, olderThan)
}

func (m *MySQLTokenRepository) CountExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return countTokens(ctx, database.GetTx(ctx, m.db), `SELECT COUNT(*) FROM tokens WHERE expires_at < ?`, olderThan)
}
