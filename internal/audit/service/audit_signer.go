// Package service provides HMAC signing for audit log entries.
package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	auditDomain "github.com/allisson/escrow/internal/audit/domain"
	cryptoDomain "github.com/allisson/escrow/internal/crypto/domain"
)

const signingKeyInfo = "audit-log-signing-v1"

// AuditSigner signs and verifies audit entries with a key derived from a keyset
// integrity key.
type AuditSigner interface {
	Sign(integrityKey []byte, log *auditDomain.AuditLog) ([]byte, error)
	Verify(integrityKey []byte, log *auditDomain.AuditLog) error
}

type auditSigner struct{}

// NewAuditSigner creates an HKDF-SHA256 / HMAC-SHA256 signer.
func NewAuditSigner() AuditSigner {
	return &auditSigner{}
}

func (a *auditSigner) deriveSigningKey(integrityKey []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, integrityKey, nil, []byte(signingKeyInfo))

	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(reader, signingKey); err != nil {
		return nil, err
	}
	return signingKey, nil
}

// canonicalize serializes every field except Sequence and Signature. Sequence is
// assigned by the store after signing. Variable fields are length prefixed.
func (a *auditSigner) canonicalize(log *auditDomain.AuditLog) []byte {
	buf := make([]byte, 0, 256)

	buf = append(buf, log.ID[:]...)
	buf = appendLengthPrefixed(buf, []byte(log.SecretType))
	buf = appendLengthPrefixed(buf, []byte(log.Principal))
	buf = appendLengthPrefixed(buf, []byte(log.Message))
	if log.Successful {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	if log.RecordID != nil {
		buf = appendLengthPrefixed(buf, log.RecordID[:])
	} else {
		buf = appendLengthPrefixed(buf, nil)
	}
	buf = appendLengthPrefixed(buf, []byte(log.TargetID))
	buf = appendLengthPrefixed(buf, []byte(log.IPAddress))
	buf = appendLengthPrefixed(buf, []byte(log.Query))
	buf = binary.BigEndian.AppendUint32(buf, log.KeyVersion)
	buf = binary.BigEndian.AppendUint64(buf, uint64(log.CreatedAt.UnixMicro())) //nolint:gosec

	return buf
}

func appendLengthPrefixed(buf []byte, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data))) //nolint:gosec
	return append(buf, data...)
}

// Sign returns the 32 byte HMAC-SHA256 of the canonical entry.
func (a *auditSigner) Sign(integrityKey []byte, log *auditDomain.AuditLog) ([]byte, error) {
	signingKey, err := a.deriveSigningKey(integrityKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	defer cryptoDomain.Zero(signingKey)

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(a.canonicalize(log))
	return mac.Sum(nil), nil
}

// Verify returns ErrSignatureInvalid when the entry was altered after signing.
func (a *auditSigner) Verify(integrityKey []byte, log *auditDomain.AuditLog) error {
	expected, err := a.Sign(integrityKey, log)
	if err != nil {
		return err
	}
	if !hmac.Equal(log.Signature, expected) {
		return auditDomain.ErrSignatureInvalid
	}
	return nil
}
