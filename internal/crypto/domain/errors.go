package domain

import (
	"github.com/allisson/escrow/internal/errors"
)

// Cryptographic error definitions.
//
// Configuration problems (missing or malformed keys, unknown backends or key contexts)
// wrap errors.ErrConfiguration and surface as 500 responses: they are never a
// per-record problem the caller can fix. Decryption and KMS failures are plain errors
// and fail closed.
var (
	// ErrEmptyKeyset indicates a keyset with no versions was loaded.
	ErrEmptyKeyset = errors.Wrap(errors.ErrConfiguration, "empty keyset")

	// ErrInvalidKeyset indicates the keyset document is malformed.
	ErrInvalidKeyset = errors.Wrap(errors.ErrConfiguration, "invalid keyset")

	// ErrNoPrimaryKey indicates the keyset does not have exactly one PRIMARY version.
	ErrNoPrimaryKey = errors.Wrap(errors.ErrConfiguration, "keyset must have exactly one primary version")

	// ErrInvalidKeySize indicates key material of an unsupported length.
	ErrInvalidKeySize = errors.Wrap(errors.ErrConfiguration, "invalid key size")

	// ErrUnknownKeyContext indicates no key material is configured for a key name.
	ErrUnknownKeyContext = errors.Wrap(errors.ErrConfiguration, "unknown key context")

	// ErrUnknownBackend indicates a stored value names a backend that is not registered.
	ErrUnknownBackend = errors.Wrap(errors.ErrConfiguration, "unknown crypto backend")

	// ErrMissingKMSKey indicates the KMS key URI template is not configured.
	ErrMissingKMSKey = errors.Wrap(errors.ErrConfiguration, "missing KMS key reference")

	// ErrDecryptionFailed indicates ciphertext could not be authenticated or parsed.
	//
	// The specific cause is not disclosed.
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrKeyVersionNotFound indicates ciphertext references a version absent from the keyset.
	ErrKeyVersionNotFound = errors.Wrap(ErrDecryptionFailed, "key version not found")

	// ErrKMSOperationFailed indicates a wrap or unwrap call failed after retries.
	ErrKMSOperationFailed = errors.New("kms operation failed")
)
