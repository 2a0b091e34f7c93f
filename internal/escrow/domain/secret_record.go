// Package domain defines the escrowed secret record, the registry of secret types and
// the validation and normalization rules applied before a record is stored.
//
// Records are append-only: every escrow creates a new row and at most one row per
// (secret type, target id, tag) is active at any time.
package domain

import (
	"crypto/md5" //nolint:gosec // checksum is an integrity hint for clients, not a MAC
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
	customValidation "github.com/allisson/escrow/internal/validation"
)

// DefaultTag is used when an escrow or lookup does not name a tag.
const DefaultTag = "default"

// MaxSearchResults bounds the number of records returned by a search.
const MaxSearchResults = 250

// SecretRecord is one escrowed version of a secret. The plaintext never lives on the
// record; only the envelope-encrypted form is persisted.
type SecretRecord struct {
	ID              uuid.UUID
	SecretType      string
	TargetID        string
	Tag             string
	Owners          []string
	Created         time.Time
	CreatedBy       string
	Active          bool
	ForceRekeying   bool
	Hostname        string
	Metadata        map[string]string
	EncryptedSecret string
}

// IsOwner reports whether principal is one of the record owners.
func (r *SecretRecord) IsOwner(principal string) bool {
	return slices.Contains(r.Owners, principal)
}

// SameContent reports whether other carries the same hostname, owners, metadata and
// creator as r. Identity, creation time, rekey flag and ciphertext are ignored; the
// plaintext is compared separately by the caller.
func (r *SecretRecord) SameContent(other *SecretRecord) bool {
	return r.Hostname == other.Hostname &&
		r.CreatedBy == other.CreatedBy &&
		slices.Equal(r.Owners, other.Owners) &&
		maps.Equal(r.Metadata, other.Metadata)
}

// Checksum returns the hex MD5 of plaintext, which clients use to confirm the
// passphrase they escrowed is the one they get back.
func Checksum(plaintext []byte) string {
	sum := md5.Sum(plaintext) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// NormalizeOwners trims owners, appends "@"+emailDomain to bare usernames, drops empty
// and repeated entries and sorts the result.
func NormalizeOwners(owners []string, emailDomain string) []string {
	normalized := make([]string, 0, len(owners))
	for _, owner := range owners {
		owner = strings.TrimSpace(owner)
		if owner == "" {
			continue
		}
		if !strings.Contains(owner, "@") && emailDomain != "" {
			owner = owner + "@" + emailDomain
		}
		if !slices.Contains(normalized, owner) {
			normalized = append(normalized, owner)
		}
	}
	slices.Sort(normalized)
	return normalized
}

// NormalizeTag returns DefaultTag for an empty tag.
func NormalizeTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return DefaultTag
	}
	return tag
}

// Validate checks an escrow request against the type's required fields and formats.
// It must run after normalization.
func (t *SecretType) Validate(in *EscrowInput) error {
	if in.TargetID == "" {
		return ErrMissingTargetID
	}
	if len(in.Plaintext) == 0 {
		return ErrMissingSecret
	}
	if t.TargetPattern != nil && !t.TargetPattern.MatchString(in.TargetID) {
		return fmt.Errorf("%w: %s %q", ErrInvalidFormat, t.TargetField, in.TargetID)
	}
	if t.SecretPattern != nil && !t.SecretPattern.Match(in.Plaintext) {
		return fmt.Errorf("%w: %s", ErrInvalidFormat, t.SecretField)
	}
	if t.HostnameRequired && in.Hostname == "" {
		return ErrMissingHostname
	}
	if t.OwnersRequired && len(in.Owners) == 0 {
		return ErrMissingOwners
	}
	if err := ValidateHostname(in.Hostname); err != nil {
		return err
	}
	if err := ValidateOwners(in.Owners); err != nil {
		return err
	}
	for _, key := range t.RequiredMetadata {
		if strings.TrimSpace(in.Metadata[key]) == "" {
			return fmt.Errorf("%w: %s", ErrMissingMetadata, key)
		}
	}
	return nil
}

// ValidateHostname checks the format of a normalized hostname. Empty hostnames pass.
func ValidateHostname(hostname string) error {
	if err := validation.Validate(hostname, customValidation.Hostname); err != nil {
		return fmt.Errorf("%w: hostname %q", ErrInvalidFormat, hostname)
	}
	return nil
}

// ValidateOwners checks that every normalized owner is an email address or a username.
func ValidateOwners(owners []string) error {
	for _, owner := range owners {
		if err := validation.Validate(owner, customValidation.Owner); err != nil {
			return fmt.Errorf("%w: owner %q", ErrInvalidFormat, owner)
		}
	}
	return nil
}

// MutableFields lists the only record properties that may change after creation. Nil
// fields are left untouched.
type MutableFields struct {
	Owners        []string
	Hostname      *string
	ForceRekeying *bool
}

// IsEmpty reports whether no field is set.
func (m MutableFields) IsEmpty() bool {
	return m.Owners == nil && m.Hostname == nil && m.ForceRekeying == nil
}

// EscrowInput is a request to store a new secret version.
type EscrowInput struct {
	SecretType string
	TargetID   string
	Tag        string
	Plaintext  []byte
	Hostname   string
	Owners     []string
	Metadata   map[string]string
	// Created is the client-supplied creation time; zero means now.
	Created   time.Time
	Requester *authDomain.Client
	IPAddress string
}

// RetrieveInput is a request for the current secret of a target, or for a specific
// record when RecordID is set.
type RetrieveInput struct {
	SecretType string
	TargetID   string
	Tag        string
	RecordID   *uuid.UUID
	Requester  *authDomain.Client
	IPAddress  string
	Query      string
}

// RetrieveOutput carries the decrypted secret. Callers must zero Plaintext after use.
type RetrieveOutput struct {
	Record    *SecretRecord
	Plaintext []byte
	Checksum  string
}

// ChangeOwnersInput replaces the owner set of an active record.
type ChangeOwnersInput struct {
	SecretType string
	RecordID   uuid.UUID
	NewOwners  []string
	Requester  *authDomain.Client
	IPAddress  string
}

// RekeyStatusInput asks whether a target must rotate its secret.
type RekeyStatusInput struct {
	SecretType string
	TargetID   string
	Tag        string
	Requester  *authDomain.Client
}

// SearchInput finds records by a column or metadata value. Prefix turns the match into
// a prefix match. An empty Tag searches every tag.
type SearchInput struct {
	SecretType string
	Field      string
	Value      string
	Prefix     bool
	Tag        string
	Requester  *authDomain.Client
	IPAddress  string
}

// SearchCriteria is the normalized query handed to the repository.
type SearchCriteria struct {
	SecretType string
	Field      string
	Value      string
	Prefix     bool
	Tag        string
	Limit      int
}
