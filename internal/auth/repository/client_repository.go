// Package repository persists clients and tokens in PostgreSQL (native UUID columns) or
// MySQL (BINARY(16) ids). Every method joins the transaction carried by ctx, if any.
package repository

import (
	"encoding/json"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
	apperrors "github.com/allisson/escrow/internal/errors"
)

const clientColumns = "id, secret, name, is_active, grants, failed_attempts, locked_until, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

// scanClient reads one clients row. id receives the raw id column so each dialect can
// decode it its own way.
func scanClient(row rowScanner, id any) (*authDomain.Client, error) {
	client := &authDomain.Client{}
	var grants []byte
	err := row.Scan(id, &client.Secret, &client.Name, &client.IsActive, &grants,
		&client.FailedAttempts, &client.LockedUntil, &client.CreatedAt)
	if err != nil {
		return nil, err
	}
	if client.Grants, err = decodeGrants(grants); err != nil {
		return nil, err
	}
	return client, nil
}

// Grants are stored as a JSON document keyed by secret type; nil is written as {}.
func encodeGrants(grants authDomain.Grants) (string, error) {
	if grants == nil {
		grants = authDomain.Grants{}
	}
	data, err := json.Marshal(grants)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to marshal client grants")
	}
	return string(data), nil
}

func decodeGrants(data []byte) (authDomain.Grants, error) {
	grants := authDomain.Grants{}
	if len(data) == 0 {
		return grants, nil
	}
	if err := json.Unmarshal(data, &grants); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal client grants")
	}
	return grants, nil
}
