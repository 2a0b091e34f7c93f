package service

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/escrow/internal/crypto/domain"
)

// envelope dispatches by the backend id persisted with each value.
type envelope struct {
	backends       map[string]Backend
	defaultBackend string
}

// NewEnvelope creates an Envelope that writes with defaultBackend and reads with any
// registered backend. An unregistered default backend is a configuration error.
func NewEnvelope(defaultBackend string, backends ...Backend) (Envelope, error) {
	e := &envelope{
		backends:       make(map[string]Backend, len(backends)),
		defaultBackend: defaultBackend,
	}
	for _, b := range backends {
		e.backends[b.ID()] = b
	}
	if _, ok := e.backends[defaultBackend]; !ok {
		return nil, fmt.Errorf("%w: %q", cryptoDomain.ErrUnknownBackend, defaultBackend)
	}
	if _, ok := e.backends[cryptoDomain.BackendKeyset]; !ok {
		return nil, fmt.Errorf("%w: %q backend is required for untagged values",
			cryptoDomain.ErrUnknownBackend, cryptoDomain.BackendKeyset)
	}
	return e, nil
}

// Encrypt implements Envelope.
func (e *envelope) Encrypt(ctx context.Context, plaintext []byte, keyName string) (string, error) {
	backend := e.backends[e.defaultBackend]

	payload, err := backend.Encrypt(ctx, plaintext, keyName)
	if err != nil {
		return "", err
	}

	return cryptoDomain.StoredSecret{Backend: backend.ID(), Value: payload}.Encode()
}

// Decrypt implements Envelope. Values that are not a JSON object predate backend tagging
// and are handed to the keyset backend unchanged.
func (e *envelope) Decrypt(ctx context.Context, stored string, keyName string) ([]byte, error) {
	secret, tagged := cryptoDomain.DecodeStoredSecret(stored)
	if !tagged {
		return e.backends[cryptoDomain.BackendKeyset].Decrypt(ctx, stored, keyName)
	}

	backend, ok := e.backends[secret.Backend]
	if !ok {
		return nil, fmt.Errorf("%w: %q", cryptoDomain.ErrUnknownBackend, secret.Backend)
	}
	return backend.Decrypt(ctx, secret.Value, keyName)
}
