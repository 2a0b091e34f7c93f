package domain

import (
	"github.com/allisson/escrow/internal/errors"
)

// Escrow error definitions.
var (
	// ErrSecretRecordNotFound indicates no record matches the requested target or id.
	ErrSecretRecordNotFound = errors.Wrap(errors.ErrNotFound, "secret record not found")

	// ErrAccessDenied indicates the requester holds no retrieval tier for the record.
	ErrAccessDenied = errors.Wrap(errors.ErrForbidden, "access denied")

	// ErrRecordInactive indicates a mutation targeted a superseded record.
	ErrRecordInactive = errors.Wrap(errors.ErrInvalidInput, "secret record is inactive")

	// ErrSupersedeConflict indicates the active record changed between lookup and
	// deactivation. The caller re-evaluates against the new winner.
	ErrSupersedeConflict = errors.Wrap(errors.ErrConflict, "active secret record changed concurrently")

	// ErrDuplicateSecret indicates the escrowed value is identical to the active record.
	ErrDuplicateSecret = errors.Wrap(errors.ErrDuplicate, "secret already escrowed")

	// ErrUnknownSecretType indicates a request named a type that is not registered.
	ErrUnknownSecretType = errors.Wrap(errors.ErrInvalidInput, "unknown secret type")

	// ErrMissingTargetID indicates the target id is empty.
	ErrMissingTargetID = errors.Wrap(errors.ErrInvalidInput, "target id is required")

	// ErrMissingSecret indicates the plaintext is empty.
	ErrMissingSecret = errors.Wrap(errors.ErrInvalidInput, "secret is required")

	// ErrMissingHostname indicates a type that requires a hostname received none.
	ErrMissingHostname = errors.Wrap(errors.ErrInvalidInput, "hostname is required")

	// ErrMissingOwners indicates a type that requires owners received none.
	ErrMissingOwners = errors.Wrap(errors.ErrInvalidInput, "owners are required")

	// ErrMissingMetadata indicates a required metadata property is absent or empty.
	ErrMissingMetadata = errors.Wrap(errors.ErrInvalidInput, "required metadata is missing")

	// ErrInvalidFormat indicates a target id or secret failed the type's format check.
	ErrInvalidFormat = errors.Wrap(errors.ErrInvalidInput, "invalid format")

	// ErrInvalidSearchField indicates Search was asked for a field the type does not index.
	ErrInvalidSearchField = errors.Wrap(errors.ErrInvalidInput, "invalid search field")
)
