// Package service provides technical services for authentication and authorization:
// client secret hashing, bearer token generation and the permission evaluator.
package service

import (
	authDomain "github.com/allisson/escrow/internal/auth/domain"
)

// SecretService generates and verifies client secrets.
type SecretService interface {
	// GenerateSecret returns a random secret and its hash. The plain secret is shown once.
	GenerateSecret() (plainSecret string, hashedSecret string, error error)

	// HashSecret hashes a plain text secret.
	HashSecret(plainSecret string) (hashedSecret string, error error)

	// CompareSecret reports whether plainSecret matches hashedSecret in constant time.
	CompareSecret(plainSecret string, hashedSecret string) bool
}

// TokenService generates bearer tokens and hashes them for storage and lookup.
type TokenService interface {
	GenerateToken() (plainToken string, tokenHash string, error error)
	HashToken(plainToken string) string
}

// PermissionEvaluator decides whether a principal holds a permission for a secret type.
type PermissionEvaluator interface {
	// HasCapability returns true when p is in the secret type's defaults or in the
	// principal's explicit grant for it. An unknown secret type returns
	// authDomain.ErrUnknownSecretType instead of a silent deny.
	HasCapability(principal *authDomain.Client, secretType string, p authDomain.Permission) (bool, error)
}
