package repository

import (
	"context"

	"github.com/allisson/escrow/internal/database"
	apperrors "github.com/allisson/escrow/internal/errors"
)

const tokenColumns = "id, token_hash, client_id, expires_at, revoked_at, created_at"

// expiredTokens runs the dialect's expiry statement and reports the affected row count.
func expiredTokens(ctx context.Context, q database.Querier, query string, args ...any) (int64, error) {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete expired tokens")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get affected rows")
	}
	return n, nil
}

func countTokens(ctx context.Context, q database.Querier, query string, args ...any) (int64, error) {
	var n int64
	if err := q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, apperrors.Wrap(err, "failed to count expired tokens")
	}
	return n, nil
}
