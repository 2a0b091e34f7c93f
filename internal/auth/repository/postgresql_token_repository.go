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

type PostgreSQLTokenRepository struct {
	db *sql.DB
}

func NewPostgreSQLTokenRepository(db *sql.DB) *PostgreSQLTokenRepository {
	return &PostgreSQLTokenRepository{db: db}
}

func (p *PostgreSQLTokenRepository) Create(ctx context.Context, token *authDomain.Token) error {
	_, err := database.GetTx(ctx, p.db).ExecContext(ctx,
		`INSERT INTO tokens (`+tokenColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.TokenHash, token.ClientID, token.ExpiresAt, token.RevokedAt, token.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create token")
	}
	return nil
}

// GetByTokenHash looks a token up by the SHA-256 of its plaintext.
func (p *PostgreSQLTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*authDomain.Token, error) {
	token := &authDomain.Token{}
	err := database.GetTx(ctx, p.db).
		QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE token_hash = $1`, tokenHash).
		Scan(&token.ID, &token.TokenHash, &token.ClientID, &token.ExpiresAt, &token.RevokedAt, &token.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authDomain.ErrTokenNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get token by hash")
	}
	return token, nil
}

func (p *PostgreSQLTokenRepository) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return expiredTokens(ctx, database.GetTx(ctx, p.db), `DELETE FROM tokens WHERE expires_at < $1`, olderThan)
}

func (p *PostgreSQLTokenRepository) CountExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	return countTokens(ctx, database.GetTx(ctx, p.db), `SELECT COUNT(*) FROM tokens WHERE expires_at < $1`, olderThan)
}
