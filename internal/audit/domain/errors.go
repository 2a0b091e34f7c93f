package domain

import (
	"github.com/allisson/escrow/internal/errors"
)

// Audit log errors.
var (
	// ErrAuditLogNotFound indicates no entry has the requested id.
	ErrAuditLogNotFound = errors.Wrap(errors.ErrNotFound, "audit log not found")

	// ErrAccessDenied indicates the requester does not hold MASTER for the secret type.
	ErrAccessDenied = errors.Wrap(errors.ErrForbidden, "access denied")

	// ErrInvalidCursor indicates a malformed pagination key.
	ErrInvalidCursor = errors.Wrap(errors.ErrInvalidInput, "invalid cursor")

	// ErrSignatureInvalid indicates the entry does not match its signature.
	ErrSignatureInvalid = errors.New("audit log signature is invalid")

	// ErrSigningKeyNotFound indicates the key version that signed an entry is no longer
	// in the keyset.
	ErrSigningKeyNotFound = errors.New("audit log signing key not found")
)
