package service

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/allisson/escrow/internal/audit/domain"
)

func newIntegrityKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func newAuditLog() *auditDomain.AuditLog {
	recordID := uuid.Must(uuid.NewV7())
	return &auditDomain.AuditLog{
		ID:         uuid.Must(uuid.NewV7()),
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
		SecretType: "filevault",
		Principal:  "alice@example.com",
		Message:    auditDomain.MessageGet,
		Successful: true,
		RecordID:   &recordID,
		TargetID:   "A1B2",
		IPAddress:  "10.0.0.1",
		KeyVersion: 1,
	}
}

func TestAuditSigner_SignAndVerify(t *testing.T) {
	signer := NewAuditSigner()
	key := newIntegrityKey(t)
	log := newAuditLog()

	signature, err := signer.Sign(key, log)
	require.NoError(t, err)
	assert.Len(t, signature, 32)

	log.Signature = signature
	assert.NoError(t, signer.Verify(key, log))
}

func TestAuditSigner_SequenceIsNotSigned(t *testing.T) {
	signer := NewAuditSigner()
	key := newIntegrityKey(t)
	log := newAuditLog()

	signature, err := signer.Sign(key, log)
	require.NoError(t, err)
	log.Signature = signature

	log.Sequence = 99
	assert.NoError(t, signer.Verify(key, log))
}

func TestAuditSigner_VerifyDetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(log *auditDomain.AuditLog)
	}{
		{"Principal", func(log *auditDomain.AuditLog) { log.Principal = "mallory@example.com" }},
		{"Message", func(log *auditDomain.AuditLog) { log.Message = auditDomain.MessagePut }},
		{"Successful", func(log *auditDomain.AuditLog) { log.Successful = false }},
		{"RecordID", func(log *auditDomain.AuditLog) { log.RecordID = nil }},
		{"TargetID", func(log *auditDomain.AuditLog) { log.TargetID = "OTHER" }},
		{"CreatedAt", func(log *auditDomain.AuditLog) { log.CreatedAt = log.CreatedAt.Add(time.Second) }},
		{"KeyVersion", func(log *auditDomain.AuditLog) { log.KeyVersion = 2 }},
	}

	signer := NewAuditSigner()
	key := newIntegrityKey(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := newAuditLog()
			signature, err := signer.Sign(key, log)
			require.NoError(t, err)
			log.Signature = signature

			tt.tamper(log)
			assert.ErrorIs(t, signer.Verify(key, log), auditDomain.ErrSignatureInvalid)
		})
	}
}

func TestAuditSigner_WrongKey(t *testing.T) {
	signer := NewAuditSigner()
	log := newAuditLog()

	signature, err := signer.Sign(newIntegrityKey(t), log)
	require.NoError(t, err)
	log.Signature = signature

	assert.ErrorIs(t, signer.Verify(newIntegrityKey(t), log), auditDomain.ErrSignatureInvalid)
}

func TestAuditSigner_FieldBoundaries(t *testing.T) {
	signer := NewAuditSigner()
	key := newIntegrityKey(t)

	a := newAuditLog()
	a.TargetID, a.IPAddress = "ab", "c"
	b := *a
	b.TargetID, b.IPAddress = "a", "bc"

	sigA, err := signer.Sign(key, a)
	require.NoError(t, err)
	sigB, err := signer.Sign(key, &b)
	require.NoError(t, err)
	assert.NotEqual(t, sigA, sigB)
}
