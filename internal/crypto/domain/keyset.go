package domain

import (
	"bytes"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // keyczar key hashes are SHA-1 truncated to four bytes
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// KeyStatus is the lifecycle state of a keyset version.
type KeyStatus string

const (
	// KeyStatusPrimary marks the single version used for every new encryption.
	KeyStatusPrimary KeyStatus = "PRIMARY"
	// KeyStatusActive marks a version that is still expected to decrypt live data.
	KeyStatusActive KeyStatus = "ACTIVE"
	// KeyStatusInactive marks a deprecated version kept only so old ciphertext stays readable.
	KeyStatusInactive KeyStatus = "INACTIVE"
)

const (
	// DefaultAESKeySize is the size in bytes of generated AES keys (keyczar's 128 bit default).
	DefaultAESKeySize = 16
	// DefaultHMACKeySize is the size in bytes of generated integrity keys (keyczar's 256 bit default).
	DefaultHMACKeySize = 32

	// KeyHashSize is the length of the key hash carried in every keyczar ciphertext header.
	KeyHashSize = 4

	minHMACKeySize = 16
)

// KeyVersion is one generation of the versioned shared-key keyset.
type KeyVersion struct {
	Version uint32
	AESKey  []byte
	HMACKey []byte
	Status  KeyStatus
}

// Hash returns the keyczar identifier of the version:
// SHA-1(uint32 len(aes) || aes || hmac), truncated to KeyHashSize bytes.
func (v *KeyVersion) Hash() []byte {
	h := sha1.New() //nolint:gosec
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(v.AESKey)))
	h.Write(length[:])
	h.Write(v.AESKey)
	h.Write(v.HMACKey)
	return h.Sum(nil)[:KeyHashSize]
}

// keyVersionJSON is the on-disk representation of a key version. Field names follow the
// keyset files already deployed alongside historical data; sizes are in bits and only
// informative.
type keyVersionJSON struct {
	VersionNumber uint32    `json:"versionNumber"`
	AESKeyString  string    `json:"aesKeyString"`
	AESKeySize    int       `json:"aesKeySize,omitempty"`
	HMACKeyString string    `json:"hmacKeyString"`
	HMACKeySize   int       `json:"hmacKeySize,omitempty"`
	Status        KeyStatus `json:"status"`
}

// Keyset maps version numbers to key material. It is immutable after construction.
//
// Exactly one version is PRIMARY. Encryption always uses the primary version while
// decryption accepts any known version regardless of status, so INACTIVE keys keep
// older ciphertext decryptable after rotation.
type Keyset struct {
	versions map[uint32]*KeyVersion
	primary  uint32
}

// NewKeyset validates versions and builds a Keyset.
func NewKeyset(versions []*KeyVersion) (*Keyset, error) {
	if len(versions) == 0 {
		return nil, ErrEmptyKeyset
	}

	ks := &Keyset{versions: make(map[uint32]*KeyVersion, len(versions))}
	primaries := 0

	for _, v := range versions {
		if _, exists := ks.versions[v.Version]; exists {
			return nil, fmt.Errorf("%w: duplicate version %d", ErrInvalidKeyset, v.Version)
		}
		switch len(v.AESKey) {
		case 16, 24, 32:
		default:
			return nil, fmt.Errorf("%w: aes key for version %d", ErrInvalidKeySize, v.Version)
		}
		if len(v.HMACKey) < minHMACKeySize {
			return nil, fmt.Errorf("%w: hmac key for version %d", ErrInvalidKeySize, v.Version)
		}
		switch v.Status {
		case KeyStatusPrimary:
			primaries++
			ks.primary = v.Version
		case KeyStatusActive, KeyStatusInactive:
		default:
			return nil, fmt.Errorf("%w: unknown status %q for version %d", ErrInvalidKeyset, v.Status, v.Version)
		}
		ks.versions[v.Version] = v
	}

	if primaries != 1 {
		return nil, fmt.Errorf("%w: found %d primary versions", ErrNoPrimaryKey, primaries)
	}

	return ks, nil
}

// ParseKeyset decodes a JSON keyset of the form
// [{"versionNumber":1,"aesKeyString":"...","hmacKeyString":"...","status":"PRIMARY"}].
// Key strings are URL-safe base64 with or without padding.
func ParseKeyset(data []byte) (*Keyset, error) {
	var raw []keyVersionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyset, err)
	}

	versions := make([]*KeyVersion, 0, len(raw))
	for _, r := range raw {
		aesKey, err := decodeKeyString(r.AESKeyString)
		if err != nil {
			return nil, fmt.Errorf("%w: aes key for version %d: %v", ErrInvalidKeyset, r.VersionNumber, err)
		}
		hmacKey, err := decodeKeyString(r.HMACKeyString)
		if err != nil {
			return nil, fmt.Errorf("%w: hmac key for version %d: %v", ErrInvalidKeyset, r.VersionNumber, err)
		}
		versions = append(versions, &KeyVersion{
			Version: r.VersionNumber,
			AESKey:  aesKey,
			HMACKey: hmacKey,
			Status:  KeyStatus(strings.ToUpper(string(r.Status))),
		})
	}

	return NewKeyset(versions)
}

// Primary returns the version used for new encryptions.
func (k *Keyset) Primary() *KeyVersion {
	return k.versions[k.primary]
}

// ByHash returns the versions whose keyczar hash equals hash, lowest version first.
// Distinct keys may collide on four bytes, so callers try each candidate in turn.
func (k *Keyset) ByHash(hash []byte) []*KeyVersion {
	var out []*KeyVersion
	for _, v := range k.Versions() {
		if bytes.Equal(v.Hash(), hash) {
			out = append(out, v)
		}
	}
	return out
}

// Get returns the key version with the given number.
func (k *Keyset) Get(version uint32) (*KeyVersion, bool) {
	v, ok := k.versions[version]
	return v, ok
}

// Versions returns all key versions ordered by version number.
func (k *Keyset) Versions() []*KeyVersion {
	out := make([]*KeyVersion, 0, len(k.versions))
	for _, v := range k.versions {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// Rotate returns a new keyset with a freshly generated PRIMARY version. The previous
// primary is demoted to ACTIVE; every other version keeps its status.
func (k *Keyset) Rotate() (*Keyset, error) {
	versions := k.Versions()
	next := versions[len(versions)-1].Version + 1

	rotated := make([]*KeyVersion, 0, len(versions)+1)
	for _, v := range versions {
		cp := *v
		if cp.Status == KeyStatusPrimary {
			cp.Status = KeyStatusActive
		}
		rotated = append(rotated, &cp)
	}

	fresh, err := GenerateKeyVersion(next, KeyStatusPrimary)
	if err != nil {
		return nil, err
	}

	return NewKeyset(append(rotated, fresh))
}

// MarshalJSON encodes the keyset in the format accepted by ParseKeyset.
func (k *Keyset) MarshalJSON() ([]byte, error) {
	versions := k.Versions()
	raw := make([]keyVersionJSON, 0, len(versions))
	for _, v := range versions {
		raw = append(raw, keyVersionJSON{
			VersionNumber: v.Version,
			AESKeyString:  base64.URLEncoding.EncodeToString(v.AESKey),
			AESKeySize:    len(v.AESKey) * 8,
			HMACKeyString: base64.URLEncoding.EncodeToString(v.HMACKey),
			HMACKeySize:   len(v.HMACKey) * 8,
			Status:        v.Status,
		})
	}
	return json.Marshal(raw)
}

// Zero overwrites b with zeros. Used for key material and decrypted data keys.
func Zero(b []byte) {
	clear(b)
}

// Zero clears all key material held by the keyset.
func (k *Keyset) Zero() {
	for _, v := range k.versions {
		Zero(v.AESKey)
		Zero(v.HMACKey)
	}
}

// GenerateKeyVersion creates a key version with random AES and HMAC keys.
func GenerateKeyVersion(version uint32, status KeyStatus) (*KeyVersion, error) {
	aesKey := make([]byte, DefaultAESKeySize)
	if _, err := rand.Read(aesKey); err != nil {
		return nil, fmt.Errorf("failed to generate aes key: %w", err)
	}
	hmacKey := make([]byte, DefaultHMACKeySize)
	if _, err := rand.Read(hmacKey); err != nil {
		return nil, fmt.Errorf("failed to generate hmac key: %w", err)
	}
	return &KeyVersion{Version: version, AESKey: aesKey, HMACKey: hmacKey, Status: status}, nil
}

func decodeKeyString(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
