package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/allisson/go-pwdhash"

	apperrors "github.com/allisson/escrow/internal/errors"
)

// Credential prefixes make leaked values recognizable to secret scanners and let the
// API reject foreign tokens without a database lookup.
const (
	TokenPrefix  = "esc_tok_"
	SecretPrefix = "esc_sec_"

	credentialEntropyBytes = 32
)

func randomCredential(prefix string) (string, error) {
	b := make([]byte, credentialEntropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// HasTokenPrefix reports whether token looks like a bearer token issued by this service.
func HasTokenPrefix(token string) bool {
	return strings.HasPrefix(token, TokenPrefix) && len(token) > len(TokenPrefix)
}

// secretService hashes client secrets with Argon2id.
type secretService struct {
	hasher *pwdhash.PasswordHasher
}

// NewSecretService returns a SecretService using the Moderate Argon2id policy.
func NewSecretService() SecretService {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
	if err != nil {
		// Only reachable with an invalid built-in policy.
		panic(err)
	}
	return &secretService{hasher: hasher}
}

func (s *secretService) GenerateSecret() (plainSecret string, hashedSecret string, error error) {
	plainSecret, err := randomCredential(SecretPrefix)
	if err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate client secret")
	}

	hashedSecret, err = s.HashSecret(plainSecret)
	if err != nil {
		return "", "", err
	}
	return plainSecret, hashedSecret, nil
}

func (s *secretService) HashSecret(plainSecret string) (hashedSecret string, error error) {
	hashedSecret, err := s.hasher.Hash([]byte(plainSecret))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash client secret")
	}
	return hashedSecret, nil
}

func (s *secretService) CompareSecret(plainSecret string, hashedSecret string) bool {
	ok, err := s.hasher.Verify([]byte(plainSecret), hashedSecret)
	return err == nil && ok
}

// tokenService stores bearer tokens as unsalted SHA-256 so they can be looked up by hash.
// Tokens carry 256 bits of entropy, which makes a slow hash unnecessary.
type tokenService struct{}

// NewTokenService returns the SHA-256 TokenService.
func NewTokenService() TokenService {
	return &tokenService{}
}

func (t *tokenService) GenerateToken() (plainToken string, tokenHash string, error error) {
	plainToken, err := randomCredential(TokenPrefix)
	if err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate token")
	}
	return plainToken, t.HashToken(plainToken), nil
}

func (t *tokenService) HashToken(plainToken string) string {
	sum := sha256.Sum256([]byte(plainToken))
	return hex.EncodeToString(sum[:])
}
