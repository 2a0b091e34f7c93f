package domain

import (
	"context"
	"encoding/json"
	"fmt"
)

// Backend identifiers persisted with every encrypted value. They are part of the stored
// format and must never change.
const (
	BackendKeyset           = "keyczar"
	BackendEnvelopeCloudKMS = "envelope_cloud_kms"
)

// StoredSecret is the self-describing persisted form of an encrypted value.
type StoredSecret struct {
	Backend string `json:"backend"`
	Value   string `json:"value"`
}

// Encode serializes the stored secret as a JSON object using the separators of the
// serializer that wrote the historical records.
func (s StoredSecret) Encode() (string, error) {
	backend, err := json.Marshal(s.Backend)
	if err != nil {
		return "", err
	}
	value, err := json.Marshal(s.Value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`{"backend": %s, "value": %s}`, backend, value), nil
}

// DecodeStoredSecret parses a persisted value. The boolean is false when raw is not a
// JSON object: such values predate backend tagging and belong to the keyset backend.
func DecodeStoredSecret(raw string) (StoredSecret, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil || fields == nil {
		return StoredSecret{}, false
	}

	var s StoredSecret
	if b, ok := fields["backend"]; ok {
		_ = json.Unmarshal(b, &s.Backend)
	}
	if v, ok := fields["value"]; ok {
		_ = json.Unmarshal(v, &s.Value)
	}
	return s, true
}

// KMSKeeper wraps and unwraps data encryption keys with a remote master key.
// *secrets.Keeper from gocloud.dev satisfies it.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}
