// Package errors holds the sentinel errors shared by the escrow domains. Use cases wrap
// one of them with context; transport layers only ever look at the sentinel.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized means no valid credentials. ErrForbidden means valid credentials
	// without the permission the operation needs.
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrLocked is returned while a client is locked out after repeated bad secrets.
	ErrLocked = errors.New("locked")

	// ErrDuplicate reports that the submitted value equals the active one. Callers
	// treat it as an idempotent success.
	ErrDuplicate = errors.New("duplicate")

	// ErrConfiguration marks server-side setup problems such as an empty keyset or a
	// missing KMS key. Retrying the request cannot fix it.
	ErrConfiguration = errors.New("configuration error")
)

// kinds is ordered by precedence: an error wrapping several sentinels reports the
// first one listed here.
var kinds = []error{
	ErrConfiguration,
	ErrUnauthorized,
	ErrLocked,
	ErrForbidden,
	ErrNotFound,
	ErrConflict,
	ErrDuplicate,
	ErrInvalidInput,
}

// Kind returns the sentinel err wraps, or nil for errors outside this package.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

func New(message string) error {
	return errors.New(message)
}

// Wrap prefixes err with message. A nil err stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
