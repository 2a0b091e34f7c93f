package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/allisson/escrow/internal/database"
	apperrors "github.com/allisson/escrow/internal/errors"
	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
)

// MySQLSecretRecordRepository stores records in the secret_records table using
// BINARY(16) ids. The generated active_marker column is 1 for active rows and NULL
// otherwise, so its unique key only constrains active records.
type MySQLSecretRecordRepository struct {
	db *sql.DB
}

// NewMySQLSecretRecordRepository creates a new MySQL secret record repository.
func NewMySQLSecretRecordRepository(db *sql.DB) *MySQLSecretRecordRepository {
	return &MySQLSecretRecordRepository{db: db}
}

// Create inserts record. A second active record for the same key returns
// escrowDomain.ErrSupersedeConflict.
func (m *MySQLSecretRecordRepository) Create(ctx context.Context, record *escrowDomain.SecretRecord) error {
	querier := database.GetTx(ctx, m.db)

	id, err := record.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal secret record id")
	}
	owners, err := encodeOwners(record.Owners)
	if err != nil {
		return err
	}
	metadata, err := encodeMetadata(record.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO secret_records (` + secretRecordColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		record.SecretType,
		record.TargetID,
		record.Tag,
		owners,
		record.Created,
		record.CreatedBy,
		record.Active,
		record.ForceRekeying,
		record.Hostname,
		metadata,
		record.EncryptedSecret,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return escrowDomain.ErrSupersedeConflict
		}
		return apperrors.Wrap(err, "failed to create secret record")
	}
	return nil
}

// Get returns the record with id, active or not.
func (m *MySQLSecretRecordRepository) Get(ctx context.Context, id uuid.UUID) (*escrowDomain.SecretRecord, error) {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal secret record id")
	}

	query := `SELECT ` + secretRecordColumns + ` FROM secret_records WHERE id = ?`

	return m.getOne(querier.QueryRowContext(ctx, query, idBytes))
}

// GetActive returns the active record for (secretType, targetID, tag).
func (m *MySQLSecretRecordRepository) GetActive(
	ctx context.Context,
	secretType, targetID, tag string,
) (*escrowDomain.SecretRecord, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + secretRecordColumns + ` FROM secret_records
			  WHERE secret_type = ? AND target_id = ? AND tag = ? AND active = TRUE`

	return m.getOne(querier.QueryRowContext(ctx, query, secretType, targetID, tag))
}

func (m *MySQLSecretRecordRepository) getOne(row *sql.Row) (*escrowDomain.SecretRecord, error) {
	record, err := scanMySQLSecretRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, escrowDomain.ErrSecretRecordNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get secret record")
	}
	return record, nil
}

// Deactivate flips an active record to inactive. It returns
// escrowDomain.ErrSupersedeConflict when the record is no longer active.
func (m *MySQLSecretRecordRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal secret record id")
	}

	result, err := querier.ExecContext(ctx,
		`UPDATE secret_records SET active = FALSE WHERE id = ? AND active = TRUE`, idBytes)
	if err != nil {
		return apperrors.Wrap(err, "failed to deactivate secret record")
	}
	return requireOneRow(result, escrowDomain.ErrSupersedeConflict)
}

// UpdateMutable applies the non-nil fields to an active record. It returns
// escrowDomain.ErrRecordInactive when the record is missing or inactive. Connections
// opened by database.Connect report matched rows, so an unchanged value still counts.
func (m *MySQLSecretRecordRepository) UpdateMutable(
	ctx context.Context,
	id uuid.UUID,
	fields escrowDomain.MutableFields,
) error {
	if fields.IsEmpty() {
		return nil
	}
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal secret record id")
	}

	var sets []string
	var args []any
	if fields.Owners != nil {
		owners, err := encodeOwners(fields.Owners)
		if err != nil {
			return err
		}
		sets = append(sets, "owners = ?")
		args = append(args, owners)
	}
	if fields.Hostname != nil {
		sets = append(sets, "hostname = ?")
		args = append(args, *fields.Hostname)
	}
	if fields.ForceRekeying != nil {
		sets = append(sets, "force_rekeying = ?")
		args = append(args, *fields.ForceRekeying)
	}
	args = append(args, idBytes)

	query := `UPDATE secret_records SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND active = TRUE`

	result, err := querier.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.Wrap(err, "failed to update secret record")
	}
	return requireOneRow(result, escrowDomain.ErrRecordInactive)
}

// Search returns records of one secret type matching criteria, newest first.
func (m *MySQLSecretRecordRepository) Search(
	ctx context.Context,
	criteria escrowDomain.SearchCriteria,
) ([]*escrowDomain.SecretRecord, error) {
	querier := database.GetTx(ctx, m.db)

	value := criteria.Value
	op := "= ?"
	if criteria.Prefix {
		value = likePrefix(value)
		op = "LIKE ?"
	}

	conditions := []string{"secret_type = ?"}
	args := []any{criteria.SecretType}

	switch column := searchColumn(criteria.Field); {
	case column != "":
		conditions = append(conditions, column+" "+op)
		args = append(args, value)
	case criteria.Field == escrowDomain.SearchFieldOwner && !criteria.Prefix:
		conditions = append(conditions, "JSON_CONTAINS(owners, JSON_QUOTE(?))")
		args = append(args, value)
	case criteria.Field == escrowDomain.SearchFieldOwner:
		conditions = append(conditions, "JSON_SEARCH(owners, 'one', ?) IS NOT NULL")
		args = append(args, value)
	default:
		conditions = append(conditions, "JSON_UNQUOTE(JSON_EXTRACT(metadata, ?)) "+op)
		args = append(args, "$."+strconv.Quote(criteria.Field), value)
	}
	if criteria.Tag != "" {
		conditions = append(conditions, "tag = ?")
		args = append(args, criteria.Tag)
	}

	query := `SELECT ` + secretRecordColumns + ` FROM secret_records WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created DESC, id DESC`
	if criteria.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, criteria.Limit)
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to search secret records")
	}
	defer rows.Close() //nolint:errcheck

	records := make([]*escrowDomain.SecretRecord, 0)
	for rows.Next() {
		record, err := scanMySQLSecretRecord(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan secret record")
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate secret records")
	}
	return records, nil
}

func scanMySQLSecretRecord(row rowScanner) (*escrowDomain.SecretRecord, error) {
	var record escrowDomain.SecretRecord
	var id, owners, metadata []byte

	err := row.Scan(
		&id,
		&record.SecretType,
		&record.TargetID,
		&record.Tag,
		&owners,
		&record.Created,
		&record.CreatedBy,
		&record.Active,
		&record.ForceRekeying,
		&record.Hostname,
		&metadata,
		&record.EncryptedSecret,
	)
	if err != nil {
		return nil, err
	}
	if err := record.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal secret record id")
	}
	if err := decodeDocuments(&record, owners, metadata); err != nil {
		return nil, err
	}
	record.Created = record.Created.UTC()
	return &record, nil
}
