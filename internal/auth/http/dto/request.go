// Package dto holds the wire types of the token endpoint.
package dto

import (
	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	authDomain "github.com/allisson/escrow/internal/auth/domain"
	customValidation "github.com/allisson/escrow/internal/validation"
)

// IssueTokenRequest is the body of POST /v1/token.
type IssueTokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"` //nolint:gosec // request payload
}

// Validate checks both credentials are present and client_id is a UUID.
func (r *IssueTokenRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ClientID,
			validation.Required,
			customValidation.NotBlank,
			customValidation.UUID,
		),
		validation.Field(&r.ClientSecret,
			validation.Required,
			customValidation.NotBlank,
		),
	)
}

// ToInput converts a validated request into use case input.
func (r *IssueTokenRequest) ToInput() (*authDomain.IssueTokenInput, error) {
	clientID, err := uuid.Parse(r.ClientID)
	if err != nil {
		return nil, err
	}
	return &authDomain.IssueTokenInput{ClientID: clientID, ClientSecret: r.ClientSecret}, nil
}
