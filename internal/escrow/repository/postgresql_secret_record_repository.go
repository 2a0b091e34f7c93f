package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/allisson/escrow/internal/database"
	apperrors "github.com/allisson/escrow/internal/errors"
	escrowDomain "github.com/allisson/escrow/internal/escrow/domain"
)

// PostgreSQLSecretRecordRepository stores records in the secret_records table. A
// partial unique index over active rows guards the single-active invariant.
type PostgreSQLSecretRecordRepository struct {
	db *sql.DB
}

// NewPostgreSQLSecretRecordRepository creates a new PostgreSQL secret record repository.
func NewPostgreSQLSecretRecordRepository(db *sql.DB) *PostgreSQLSecretRecordRepository {
	return &PostgreSQLSecretRecordRepository{db: db}
}

// Create inserts record. A second active record for the same key returns
// escrowDomain.ErrSupersedeConflict.
func (p *PostgreSQLSecretRecordRepository) Create(ctx context.Context, record *escrowDomain.SecretRecord) error {
	querier := database.GetTx(ctx, p.db)

	owners, err := encodeOwners(record.Owners)
	if err != nil {
		return err
	}
	metadata, err := encodeMetadata(record.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO secret_records (` + secretRecordColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = querier.ExecContext(
		ctx,
		query,
		record.ID,
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
func (p *PostgreSQLSecretRecordRepository) Get(ctx context.Context, id uuid.UUID) (*escrowDomain.SecretRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + secretRecordColumns + ` FROM secret_records WHERE id = $1`

	return p.getOne(querier.QueryRowContext(ctx, query, id))
}

// GetActive returns the active record for (secretType, targetID, tag).
func (p *PostgreSQLSecretRecordRepository) GetActive(
	ctx context.Context,
	secretType, targetID, tag string,
) (*escrowDomain.SecretRecord, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + secretRecordColumns + ` FROM secret_records
			  WHERE secret_type = $1 AND target_id = $2 AND tag = $3 AND active`

	return p.getOne(querier.QueryRowContext(ctx, query, secretType, targetID, tag))
}

func (p *PostgreSQLSecretRecordRepository) getOne(row *sql.Row) (*escrowDomain.SecretRecord, error) {
	record, err := scanPostgreSQLSecretRecord(row)
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
func (p *PostgreSQLSecretRecordRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE secret_records SET active = FALSE WHERE id = $1 AND active`

	result, err := querier.ExecContext(ctx, query, id)
	if err != nil {
		return apperrors.Wrap(err, "failed to deactivate secret record")
	}
	return requireOneRow(result, escrowDomain.ErrSupersedeConflict)
}

// UpdateMutable applies the non-nil fields to an active record. It returns
// escrowDomain.ErrRecordInactive when the record is missing or inactive.
func (p *PostgreSQLSecretRecordRepository) UpdateMutable(
	ctx context.Context,
	id uuid.UUID,
	fields escrowDomain.MutableFields,
) error {
	if fields.IsEmpty() {
		return nil
	}
	querier := database.GetTx(ctx, p.db)

	var sets []string
	var args []any
	if fields.Owners != nil {
		owners, err := encodeOwners(fields.Owners)
		if err != nil {
			return err
		}
		args = append(args, owners)
		sets = append(sets, fmt.Sprintf("owners = $%d", len(args)))
	}
	if fields.Hostname != nil {
		args = append(args, *fields.Hostname)
		sets = append(sets, fmt.Sprintf("hostname = $%d", len(args)))
	}
	if fields.ForceRekeying != nil {
		args = append(args, *fields.ForceRekeying)
		sets = append(sets, fmt.Sprintf("force_rekeying = $%d", len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE secret_records SET %s WHERE id = $%d AND active`,
		strings.Join(sets, ", "), len(args))

	result, err := querier.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.Wrap(err, "failed to update secret record")
	}
	return requireOneRow(result, escrowDomain.ErrRecordInactive)
}

// Search returns records of one secret type matching criteria, newest first.
func (p *PostgreSQLSecretRecordRepository) Search(
	ctx context.Context,
	criteria escrowDomain.SearchCriteria,
) ([]*escrowDomain.SecretRecord, error) {
	querier := database.GetTx(ctx, p.db)

	value := criteria.Value
	op := "="
	if criteria.Prefix {
		value = likePrefix(value)
		op = "LIKE"
	}

	args := []any{criteria.SecretType}
	conditions := []string{"secret_type = $1"}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	switch column := searchColumn(criteria.Field); {
	case column != "":
		conditions = append(conditions, fmt.Sprintf("%s %s %s", column, op, arg(value)))
	case criteria.Field == escrowDomain.SearchFieldOwner && !criteria.Prefix:
		conditions = append(conditions, fmt.Sprintf("owners @> jsonb_build_array(%s::text)", arg(value)))
	case criteria.Field == escrowDomain.SearchFieldOwner:
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements_text(owners) AS o(owner) WHERE o.owner LIKE %s)",
			arg(value)))
	default:
		key := arg(criteria.Field)
		conditions = append(conditions, fmt.Sprintf("metadata ->> %s %s %s", key, op, arg(value)))
	}
	if criteria.Tag != "" {
		conditions = append(conditions, "tag = "+arg(criteria.Tag))
	}

	query := `SELECT ` + secretRecordColumns + ` FROM secret_records WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created DESC, id DESC`
	if criteria.Limit > 0 {
		query += " LIMIT " + arg(criteria.Limit)
	}

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to search secret records")
	}
	defer rows.Close() //nolint:errcheck

	records := make([]*escrowDomain.SecretRecord, 0)
	for rows.Next() {
		record, err := scanPostgreSQLSecretRecord(rows)
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

func scanPostgreSQLSecretRecord(row rowScanner) (*escrowDomain.SecretRecord, error) {
	var record escrowDomain.SecretRecord
	var owners, metadata []byte

	err := row.Scan(
		&record.ID,
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
	if err := decodeDocuments(&record, owners, metadata); err != nil {
		return nil, err
	}
	record.Created = record.Created.UTC()
	return &record, nil
}

func requireOneRow(result sql.Result, noRows error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return noRows
	}
	return nil
}
