// Package dto provides data transfer objects for the escrow HTTP API.
package dto

import (
	"time"

	validation "github.com/jellydator/validation"
)

const (
	maxHostnameLength = 255
	maxOwnerLength    = 254
	maxOwners         = 100
	maxMetadataKeys   = 64
)

// EscrowRequest is the body of an upload. The type and target id come from the URL.
// Content rules such as hostname, owner and id formats are checked by the use case so
// that rejections are audited.
type EscrowRequest struct {
	Secret   string            `json:"secret"` //nolint:gosec // request payload
	Hostname string            `json:"hostname"`
	Owners   []string          `json:"owners"`
	Metadata map[string]string `json:"metadata"`
	Created  *time.Time        `json:"created"`
}

// Validate checks the size limits of the request.
func (r *EscrowRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Hostname, validation.Length(0, maxHostnameLength)),
		validation.Field(&r.Owners, validation.Length(0, maxOwners), validation.Each(validation.Length(0, maxOwnerLength))),
		validation.Field(&r.Metadata, validation.Length(0, maxMetadataKeys)),
	)
}

// ChangeOwnersRequest replaces the owners of an active record. An empty or malformed
// owner list is rejected, and audited, by the use case.
type ChangeOwnersRequest struct {
	Owners []string `json:"owners"`
}

// Validate checks the size limits of the request.
func (r *ChangeOwnersRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Owners, validation.Length(0, maxOwners), validation.Each(validation.Length(0, maxOwnerLength))),
	)
}
