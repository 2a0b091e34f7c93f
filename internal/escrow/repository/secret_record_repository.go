// Package repository persists escrowed secret records in PostgreSQL and MySQL.
//
// Both stores enforce at most one active record per (secret_type, target_id, tag) with
// a unique index, so a lost supersede race surfaces as a unique violation on insert or
// as a zero-row conditional update. Owners and metadata are stored as JSON documents.
package repository

import (
	"encoding/json"
	"strings"

	apperrors "github.com/allisson/escrow/internal/errors"
	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
)

const secretRecordColumns = `id, secret_type, target_id, tag, owners, created, created_by, active,
	force_rekeying, hostname, metadata, encrypted_secret`

type rowScanner interface {
	Scan(dest ...any) error
}

func encodeOwners(owners []string) (string, error) {
	if owners == nil {
		owners = []string{}
	}
	data, err := json.Marshal(owners)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to encode owners")
	}
	return string(data), nil
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to encode metadata")
	}
	return string(data), nil
}

// decodeDocuments fills the JSON columns of record.
func decodeDocuments(record *escrowDomain.SecretRecord, owners, metadata []byte) error {
	record.Owners = []string{}
	if len(owners) > 0 {
		if err := json.Unmarshal(owners, &record.Owners); err != nil {
			return apperrors.Wrap(err, "failed to decode owners")
		}
	}
	record.Metadata = map[string]string{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return apperrors.Wrap(err, "failed to decode metadata")
		}
	}
	return nil
}

// likePrefix escapes LIKE wildcards in value and appends a trailing %.
func likePrefix(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value) + "%"
}

// searchColumn maps the column backed search fields; metadata keys return "".
func searchColumn(field string) string {
	switch field {
	case escrowDomain.SearchFieldTargetID:
		return "target_id"
	case escrowDomain.SearchFieldHostname:
		return "hostname"
	case escrowDomain.SearchFieldCreatedBy:
		return "created_by"
	default:
		return ""
	}
}
