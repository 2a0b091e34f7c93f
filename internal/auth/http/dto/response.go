package dto

import (
	"time"
)

// IssueTokenResponse contains the result of issuing a token.
// The token is only returned once.
type IssueTokenResponse struct {
	Token     string    `json:"token"` //nolint:gosec // returned once on issue
	ExpiresAt time.Time `json:"expires_at"`
}
