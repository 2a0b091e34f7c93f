package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/escrow/internal/crypto/domain"
	apperrors "github.com/allisson/escrow/internal/errors"
)

func newTestBackends(t *testing.T) (*KeysetBackend, *KMSEnvelopeBackend) {
	t.Helper()
	keysetBackend := NewKeysetBackend(map[string]*cryptoDomain.Keyset{
		"filevault": newTestKeyset(t),
	})
	return keysetBackend, newLocalKMSBackend(t)
}

func TestNewEnvelope(t *testing.T) {
	keysetBackend, kmsBackend := newTestBackends(t)

	t.Run("UnknownDefault", func(t *testing.T) {
		_, err := NewEnvelope("rot13", keysetBackend, kmsBackend)
		assert.ErrorIs(t, err, cryptoDomain.ErrUnknownBackend)
		assert.True(t, apperrors.Is(err, apperrors.ErrConfiguration))
	})

	t.Run("KeysetBackendRequired", func(t *testing.T) {
		_, err := NewEnvelope(cryptoDomain.BackendEnvelopeCloudKMS, kmsBackend)
		assert.ErrorIs(t, err, cryptoDomain.ErrUnknownBackend)
	})
}

func TestEnvelope_EncryptTagsBackend(t *testing.T) {
	ctx := context.Background()
	keysetBackend, kmsBackend := newTestBackends(t)

	for _, backendID := range []string{cryptoDomain.BackendKeyset, cryptoDomain.BackendEnvelopeCloudKMS} {
		t.Run(backendID, func(t *testing.T) {
			env, err := NewEnvelope(backendID, keysetBackend, kmsBackend)
			require.NoError(t, err)

			stored, err := env.Encrypt(ctx, []byte("s3cret"), "filevault")
			require.NoError(t, err)

			var decoded map[string]string
			require.NoError(t, json.Unmarshal([]byte(stored), &decoded))
			assert.Equal(t, backendID, decoded["backend"])
			assert.NotEmpty(t, decoded["value"])

			plaintext, err := env.Decrypt(ctx, stored, "filevault")
			require.NoError(t, err)
			assert.Equal(t, []byte("s3cret"), plaintext)
		})
	}
}

func TestEnvelope_BackendInteroperability(t *testing.T) {
	ctx := context.Background()
	keysetBackend, kmsBackend := newTestBackends(t)

	before, err := NewEnvelope(cryptoDomain.BackendKeyset, keysetBackend, kmsBackend)
	require.NoError(t, err)
	stored, err := before.Encrypt(ctx, []byte("written under A"), "filevault")
	require.NoError(t, err)

	after, err := NewEnvelope(cryptoDomain.BackendEnvelopeCloudKMS, keysetBackend, kmsBackend)
	require.NoError(t, err)

	plaintext, err := after.Decrypt(ctx, stored, "filevault")
	require.NoError(t, err)
	assert.Equal(t, []byte("written under A"), plaintext)

	fresh, err := after.Encrypt(ctx, []byte("written under B"), "filevault")
	require.NoError(t, err)
	assert.Contains(t, fresh, `"backend": "envelope_cloud_kms"`)

	plaintext, err = before.Decrypt(ctx, fresh, "filevault")
	require.NoError(t, err)
	assert.Equal(t, []byte("written under B"), plaintext)
}

func TestEnvelope_LegacyUntaggedValue(t *testing.T) {
	ctx := context.Background()
	keysetBackend, kmsBackend := newTestBackends(t)

	legacy, err := keysetBackend.Encrypt(ctx, []byte("pre-tagging"), "filevault")
	require.NoError(t, err)

	env, err := NewEnvelope(cryptoDomain.BackendEnvelopeCloudKMS, keysetBackend, kmsBackend)
	require.NoError(t, err)

	plaintext, err := env.Decrypt(ctx, legacy, "filevault")
	require.NoError(t, err)
	assert.Equal(t, []byte("pre-tagging"), plaintext)
}

func TestEnvelope_UnknownStoredBackend(t *testing.T) {
	ctx := context.Background()
	keysetBackend, kmsBackend := newTestBackends(t)
	env, err := NewEnvelope(cryptoDomain.BackendKeyset, keysetBackend, kmsBackend)
	require.NoError(t, err)

	_, err = env.Decrypt(ctx, `{"backend": "rot13", "value": "uryyb"}`, "filevault")
	assert.ErrorIs(t, err, cryptoDomain.ErrUnknownBackend)

	_, err = env.Decrypt(ctx, `{"value": "uryyb"}`, "filevault")
	assert.ErrorIs(t, err, cryptoDomain.ErrUnknownBackend)
}
