package domain

import (
	"github.com/allisson/escrow/internal/errors"
)

// Authentication and authorization errors.
var (
	// ErrClientNotFound indicates a client with the specified ID was not found.
	ErrClientNotFound = errors.Wrap(errors.ErrNotFound, "client not found")

	// ErrTokenNotFound indicates a token with the specified hash was not found.
	ErrTokenNotFound = errors.Wrap(errors.ErrNotFound, "token not found")

	// ErrInvalidCredentials is returned for unknown clients, wrong secrets and
	// expired or revoked tokens alike.
	ErrInvalidCredentials = errors.Wrap(errors.ErrUnauthorized, "invalid credentials")

	// ErrClientInactive indicates the client exists but is disabled.
	ErrClientInactive = errors.Wrap(errors.ErrForbidden, "client is inactive")

	// ErrClientLocked indicates the client is locked after repeated failed attempts.
	ErrClientLocked = errors.Wrap(errors.ErrLocked, "client is locked")

	// ErrInvalidRetention indicates a negative retention period for token cleanup.
	ErrInvalidRetention = errors.Wrap(errors.ErrInvalidInput, "retention days must not be negative")

	// ErrUnknownPermission indicates a grant names a permission that does not exist.
	ErrUnknownPermission = errors.Wrap(errors.ErrInvalidInput, "unknown permission")

	// ErrUnknownGrantType indicates a client grant names a secret type that is not registered.
	ErrUnknownGrantType = errors.Wrap(errors.ErrInvalidInput, "grant for unregistered secret type")

	// ErrBlankClientName indicates a client without a principal name.
	ErrBlankClientName = errors.Wrap(errors.ErrInvalidInput, "client name must not be blank")

	// ErrUnknownSecretType indicates a permission check for a secret type that has no
	// entry in the permission table. It is a configuration error, never a silent deny.
	ErrUnknownSecretType = errors.Wrap(errors.ErrConfiguration, "unknown secret type")
)
