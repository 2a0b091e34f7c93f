package service

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gocloud.dev/gcerrors"

	cryptoDomain "github.com/allisson/escrow/internal/crypto/domain"
)

const (
	dekSize          = 32
	wrappedKeyDigits = 4
	maxWrappedKeyLen = 9999
)

// ctrInitialCounter is the counter block the historical layout starts from. The random
// IV written in front of the ciphertext is kept for format compatibility only.
var ctrInitialCounter = [aes.BlockSize]byte{aes.BlockSize - 1: 1}

// KMSEnvelopeBackend is the envelope backend: a fresh data encryption key per value,
// wrapped by a remote KMS master key.
//
// Payload layout:
//
//	%04d(len(wrapped)) || base64(wrapped DEK) || urlsafe_base64(iv16 || AES-256-CTR(plaintext))
type KMSEnvelopeBackend struct {
	kmsService      KMSService
	uriTemplate     string
	maxRetries      int
	initialInterval time.Duration
	logger          *slog.Logger

	mu      sync.Mutex
	keepers map[string]cryptoDomain.KMSKeeper
}

// NewKMSEnvelopeBackend creates the KMS backend. uriTemplate is a gocloud.dev/secrets
// URL where "{key_name}" is replaced by the secret type's key name.
func NewKMSEnvelopeBackend(
	kmsService KMSService,
	uriTemplate string,
	maxRetries int,
	initialInterval time.Duration,
	logger *slog.Logger,
) *KMSEnvelopeBackend {
	return &KMSEnvelopeBackend{
		kmsService:      kmsService,
		uriTemplate:     uriTemplate,
		maxRetries:      maxRetries,
		initialInterval: initialInterval,
		logger:          logger,
		keepers:         make(map[string]cryptoDomain.KMSKeeper),
	}
}

// ID implements Backend.
func (b *KMSEnvelopeBackend) ID() string {
	return cryptoDomain.BackendEnvelopeCloudKMS
}

// Encrypt implements Backend.
func (b *KMSEnvelopeBackend) Encrypt(ctx context.Context, plaintext []byte, keyName string) (string, error) {
	keeper, err := b.keeper(ctx, keyName)
	if err != nil {
		return "", err
	}

	dek := make([]byte, dekSize)
	defer cryptoDomain.Zero(dek)
	if _, err := rand.Read(dek); err != nil {
		return "", fmt.Errorf("failed to generate data encryption key: %w", err)
	}

	wrapped, err := b.withRetry(ctx, "wrap", keyName, func() ([]byte, error) {
		return keeper.Encrypt(ctx, dek)
	})
	if err != nil {
		return "", err
	}

	encodedKey := base64.StdEncoding.EncodeToString(wrapped)
	if len(encodedKey) > maxWrappedKeyLen {
		return "", fmt.Errorf("%w: wrapped key too long (%d)", cryptoDomain.ErrKMSOperationFailed, len(encodedKey))
	}

	ciphertext, err := encryptCTR(dek, plaintext)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d%s%s", wrappedKeyDigits, len(encodedKey), encodedKey, ciphertext), nil
}

// Decrypt implements Backend. Any failure, including exhausted retries, returns no plaintext.
func (b *KMSEnvelopeBackend) Decrypt(ctx context.Context, payload string, keyName string) ([]byte, error) {
	if len(payload) < wrappedKeyDigits {
		return nil, fmt.Errorf("%w: payload too short", cryptoDomain.ErrDecryptionFailed)
	}
	length, err := strconv.Atoi(payload[:wrappedKeyDigits])
	if err != nil || length < 0 || length > len(payload)-wrappedKeyDigits {
		return nil, fmt.Errorf("%w: invalid key length prefix", cryptoDomain.ErrDecryptionFailed)
	}
	rest := payload[wrappedKeyDigits:]
	encodedKey, ciphertext := rest[:length], rest[length:]

	wrapped, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid wrapped key encoding", cryptoDomain.ErrDecryptionFailed)
	}

	keeper, err := b.keeper(ctx, keyName)
	if err != nil {
		return nil, err
	}

	dek, err := b.withRetry(ctx, "unwrap", keyName, func() ([]byte, error) {
		return keeper.Decrypt(ctx, wrapped)
	})
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(dek)

	return decryptCTR(dek, ciphertext)
}

// Close releases every keeper opened by the backend.
func (b *KMSEnvelopeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for name, keeper := range b.keepers {
		if err := keeper.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.keepers, name)
	}
	return firstErr
}

func (b *KMSEnvelopeBackend) keeper(ctx context.Context, keyName string) (cryptoDomain.KMSKeeper, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if keeper, ok := b.keepers[keyName]; ok {
		return keeper, nil
	}

	uri, err := ExpandKeyURI(b.uriTemplate, keyName)
	if err != nil {
		return nil, err
	}
	keeper, err := b.kmsService.OpenKeeper(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrMissingKMSKey, err)
	}
	b.keepers[keyName] = keeper
	return keeper, nil
}

// withRetry runs a KMS call with bounded exponential backoff. Only transient failures
// are retried.
func (b *KMSEnvelopeBackend) withRetry(
	ctx context.Context,
	op string,
	keyName string,
	fn func() ([]byte, error),
) ([]byte, error) {
	policy := backoff.NewExponentialBackOff(backoff.WithInitialInterval(b.initialInterval))
	bo := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(b.maxRetries)), ctx)

	out, err := backoff.RetryNotifyWithData(func() ([]byte, error) {
		res, err := fn()
		if err != nil && !isTransientKMSError(ctx, err) {
			return nil, backoff.Permanent(err)
		}
		return res, err
	}, bo, func(err error, next time.Duration) {
		b.logger.Warn("kms call failed, retrying",
			slog.String("operation", op),
			slog.String("key_name", keyName),
			slog.Duration("backoff", next),
			slog.Any("error", err),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", cryptoDomain.ErrKMSOperationFailed, op, err)
	}
	return out, nil
}

func isTransientKMSError(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch gcerrors.Code(err) {
	case gcerrors.Unknown, gcerrors.Internal, gcerrors.ResourceExhausted, gcerrors.DeadlineExceeded:
		return true
	default:
		return false
	}
}

func encryptCTR(key, plaintext []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	out := make([]byte, aes.BlockSize+len(plaintext))
	if _, err := rand.Read(out[:aes.BlockSize]); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}
	counter := ctrInitialCounter
	cipher.NewCTR(block, counter[:]).XORKeyStream(out[aes.BlockSize:], plaintext)

	return base64.URLEncoding.EncodeToString(out), nil
}

func decryptCTR(key []byte, encoded string) ([]byte, error) {
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil || len(data) < aes.BlockSize {
		return nil, fmt.Errorf("%w: invalid ciphertext", cryptoDomain.ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrDecryptionFailed, err)
	}

	ciphertext := data[aes.BlockSize:]
	plaintext := make([]byte, len(ciphertext))
	counter := ctrInitialCounter
	cipher.NewCTR(block, counter[:]).XORKeyStream(plaintext, ciphertext)

	return plaintext, nil
}
