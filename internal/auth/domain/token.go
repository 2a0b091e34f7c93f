package domain

import (
	"time"

	"github.com/google/uuid"
)

// Token is an issued bearer token. Only its SHA-256 hash is stored.
type Token struct {
	ID        uuid.UUID
	TokenHash string
	ClientID  uuid.UUID
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// IsValid reports whether the token can authenticate at now.
func (t *Token) IsValid(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}

// IssueTokenInput carries client credentials for the token endpoint.
type IssueTokenInput struct {
	ClientID     uuid.UUID
	ClientSecret string //nolint:gosec
}

// IssueTokenOutput carries the plain token. It is shown once.
type IssueTokenOutput struct {
	PlainToken string
	ExpiresAt  time.Time
}
