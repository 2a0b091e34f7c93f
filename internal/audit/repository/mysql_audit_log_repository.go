package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/escrow/internal/audit/domain"
	"github.com/allisson/escrow/internal/database"
	apperrors "github.com/allisson/escrow/internal/errors"
)

// MySQLAuditLogRepository stores entries in the audit_logs table using BINARY(16) ids
// and an AUTO_INCREMENT sequence.
type MySQLAuditLogRepository struct {
	db *sql.DB
}

// NewMySQLAuditLogRepository creates a new MySQL audit log repository.
func NewMySQLAuditLogRepository(db *sql.DB) *MySQLAuditLogRepository {
	return &MySQLAuditLogRepository{db: db}
}

// Create inserts the entry and sets its Sequence from the generated id.
func (m *MySQLAuditLogRepository) Create(ctx context.Context, log *auditDomain.AuditLog) error {
	querier := database.GetTx(ctx, m.db)

	id, err := log.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal audit log id")
	}

	var recordID []byte
	if log.RecordID != nil {
		recordID, err = log.RecordID.MarshalBinary()
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal audit log record_id")
		}
	}

	query := `INSERT INTO audit_logs (id, created_at, secret_type, principal, message, successful, record_id,
			  target_id, ip_address, query, key_version, signature)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := querier.ExecContext(
		ctx,
		query,
		id,
		log.CreatedAt,
		log.SecretType,
		log.Principal,
		log.Message,
		log.Successful,
		recordID,
		log.TargetID,
		log.IPAddress,
		log.Query,
		int64(log.KeyVersion),
		log.Signature,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit log")
	}

	sequence, err := result.LastInsertId()
	if err != nil {
		return apperrors.Wrap(err, "failed to read audit log sequence")
	}
	log.Sequence = sequence
	return nil
}

// Get returns the entry with id.
func (m *MySQLAuditLogRepository) Get(ctx context.Context, id uuid.UUID) (*auditDomain.AuditLog, error) {
	querier := database.GetTx(ctx, m.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal audit log id")
	}

	query := `SELECT ` + auditLogColumns + ` FROM audit_logs WHERE id = ?`

	log, err := scanMySQLAuditLog(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auditDomain.ErrAuditLogNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get audit log")
	}
	return log, nil
}

// List returns a page of entries for one secret type ordered by pagination key
// descending, starting strictly before criteria.Before when set.
func (m *MySQLAuditLogRepository) List(
	ctx context.Context,
	criteria auditDomain.ListCriteria,
) ([]*auditDomain.AuditLog, error) {
	querier := database.GetTx(ctx, m.db)

	conditions := []string{"secret_type = ?"}
	args := []any{criteria.SecretType}
	if criteria.OnlyErrors {
		conditions = append(conditions, "successful = FALSE")
	}
	if criteria.Before != nil {
		conditions = append(conditions, "(created_at < ? OR (created_at = ? AND sequence < ?))")
		args = append(args, criteria.Before.CreatedAt, criteria.Before.CreatedAt, criteria.Before.Sequence)
	}
	args = append(args, criteria.Limit)

	query := `SELECT ` + auditLogColumns + ` FROM audit_logs
			  WHERE ` + strings.Join(conditions, " AND ") + `
			  ORDER BY created_at DESC, sequence DESC
			  LIMIT ?`

	return m.query(ctx, querier, query, args...)
}

// ListRange returns up to limit entries created in [start, end) with a sequence
// greater than afterSequence, ordered by sequence.
func (m *MySQLAuditLogRepository) ListRange(
	ctx context.Context,
	start, end time.Time,
	afterSequence int64,
	limit int,
) ([]*auditDomain.AuditLog, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + auditLogColumns + ` FROM audit_logs
			  WHERE created_at >= ? AND created_at < ? AND sequence > ?
			  ORDER BY sequence ASC
			  LIMIT ?`

	return m.query(ctx, querier, query, start, end, afterSequence, limit)
}

func (m *MySQLAuditLogRepository) query(
	ctx context.Context,
	querier database.Querier,
	query string,
	args ...any,
) ([]*auditDomain.AuditLog, error) {
	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list audit logs")
	}
	defer func() {
		_ = rows.Close()
	}()

	logs := make([]*auditDomain.AuditLog, 0)
	for rows.Next() {
		log, err := scanMySQLAuditLog(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan audit log")
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate audit logs")
	}
	return logs, nil
}

func scanMySQLAuditLog(row rowScanner) (*auditDomain.AuditLog, error) {
	var log auditDomain.AuditLog
	var id, recordID []byte
	var keyVersion int64

	err := row.Scan(
		&log.Sequence,
		&id,
		&log.CreatedAt,
		&log.SecretType,
		&log.Principal,
		&log.Message,
		&log.Successful,
		&recordID,
		&log.TargetID,
		&log.IPAddress,
		&log.Query,
		&keyVersion,
		&log.Signature,
	)
	if err != nil {
		return nil, err
	}

	if err := log.ID.UnmarshalBinary(id); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal audit log id")
	}
	if recordID != nil {
		var rid uuid.UUID
		if err := rid.UnmarshalBinary(recordID); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal audit log record_id")
		}
		log.RecordID = &rid
	}
	log.KeyVersion = uint32(keyVersion) //nolint:gosec
	log.CreatedAt = log.CreatedAt.UTC()
	return &log, nil
}
