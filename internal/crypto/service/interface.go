// Package service implements the encryption envelope that protects escrowed secrets at
// rest: a versioned shared-key backend, a KMS envelope backend and the dispatcher that
// routes stored values to the backend recorded with them.
package service

import (
	"context"
)

// Backend encrypts and decrypts secret values for one persisted backend id.
type Backend interface {
	// ID returns the backend identifier stored alongside every value it writes.
	ID() string

	// Encrypt returns the backend payload for plaintext under keyName.
	Encrypt(ctx context.Context, plaintext []byte, keyName string) (string, error)

	// Decrypt reverses Encrypt.
	Decrypt(ctx context.Context, payload string, keyName string) ([]byte, error)
}

// Envelope turns plaintext into the self-describing stored representation and back.
type Envelope interface {
	// Encrypt encrypts with the configured default backend and returns the stored form.
	Encrypt(ctx context.Context, plaintext []byte, keyName string) (string, error)

	// Decrypt parses the stored form and dispatches to the backend that wrote it.
	Decrypt(ctx context.Context, stored string, keyName string) ([]byte, error)
}
