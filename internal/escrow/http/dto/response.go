package dto

import (
	"time"

	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
)

// EscrowResponse describes the stored version. Duplicate uploads return only
// {"duplicate": true}.
type EscrowResponse struct {
	ID         string    `json:"id,omitempty"`
	SecretType string    `json:"secret_type,omitempty"`
	TargetID   string    `json:"target_id,omitempty"`
	Tag        string    `json:"tag,omitempty"`
	Active     bool      `json:"active,omitempty"`
	Created    time.Time `json:"created,omitzero"`
	Duplicate  bool      `json:"duplicate,omitempty"`
}

// MapRecordToEscrowResponse converts a stored record to an upload response.
func MapRecordToEscrowResponse(record *escrowDomain.SecretRecord) EscrowResponse {
	return EscrowResponse{
		ID:         record.ID.String(),
		SecretType: record.SecretType,
		TargetID:   record.TargetID,
		Tag:        record.Tag,
		Active:     record.Active,
		Created:    record.Created,
	}
}

// SecretRecordResponse represents a record without its secret.
type SecretRecordResponse struct {
	ID            string            `json:"id"`
	SecretType    string            `json:"secret_type"`
	TargetID      string            `json:"target_id"`
	Tag           string            `json:"tag"`
	Owners        []string          `json:"owners"`
	Created       time.Time         `json:"created"`
	CreatedBy     string            `json:"created_by"`
	Active        bool              `json:"active"`
	ForceRekeying bool              `json:"force_rekeying"`
	Hostname      string            `json:"hostname"`
	Metadata      map[string]string `json:"metadata"`
}

// MapRecordToResponse converts a record to an API response.
func MapRecordToResponse(record *escrowDomain.SecretRecord) SecretRecordResponse {
	return SecretRecordResponse{
		ID:            record.ID.String(),
		SecretType:    record.SecretType,
		TargetID:      record.TargetID,
		Tag:           record.Tag,
		Owners:        record.Owners,
		Created:       record.Created,
		CreatedBy:     record.CreatedBy,
		Active:        record.Active,
		ForceRekeying: record.ForceRekeying,
		Hostname:      record.Hostname,
		Metadata:      record.Metadata,
	}
}

// SearchResponse lists matching records newest first.
type SearchResponse struct {
	Data []SecretRecordResponse `json:"data"`
}

// MapRecordsToSearchResponse converts search results to an API response.
func MapRecordsToSearchResponse(records []*escrowDomain.SecretRecord) SearchResponse {
	data := make([]SecretRecordResponse, 0, len(records))
	for _, record := range records {
		data = append(data, MapRecordToResponse(record))
	}
	return SearchResponse{Data: data}
}

// MapRetrieveToResponse builds the retrieval body. The secret is keyed "passphrase" ("key_pair"
// for duplicity) and the target id "volume_uuid" for every type.
func MapRetrieveToResponse(secretType *escrowDomain.SecretType, out *escrowDomain.RetrieveOutput) map[string]any {
	record := out.Record
	return map[string]any{
		secretType.SecretName():          string(out.Plaintext),
		escrowDomain.RetrievedTargetName: record.TargetID,
		"checksum":                       out.Checksum,
		"id":                             record.ID.String(),
		"tag":                            record.Tag,
		"owners":                         record.Owners,
		"hostname":                       record.Hostname,
		"created":                        record.Created,
		"created_by":                     record.CreatedBy,
		"active":                         record.Active,
		"force_rekeying":                 record.ForceRekeying,
		"metadata":                       record.Metadata,
	}
}

// ChangeOwnersResponse reports whether the owner set changed.
type ChangeOwnersResponse struct {
	Changed bool `json:"changed"`
}

// RekeyStatusResponse reports whether the client must rotate its secret.
type RekeyStatusResponse struct {
	RekeyNeeded bool `json:"rekey_needed"`
}
