// Package repository persists audit log entries in PostgreSQL and MySQL.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/escrow/internal/audit/domain"
	"github.com/allisson/escrow/internal/database"
	apperrors "github.com/allisson/escrow/internal/errors"
)

const auditLogColumns = `sequence, id, created_at, secret_type, principal, message, successful, record_id,
	target_id, ip_address, query, key_version, signature`

// PostgreSQLAuditLogRepository stores entries in the audit_logs table. The BIGSERIAL
// sequence column provides the pagination tie breaker.
type PostgreSQLAuditLogRepository struct {
	db *sql.DB
}

// NewPostgreSQLAuditLogRepository creates a new PostgreSQL audit log repository.
func NewPostgreSQLAuditLogRepository(db *sql.DB) *PostgreSQLAuditLogRepository {
	return &PostgreSQLAuditLogRepository{db: db}
}

// Create inserts the entry and sets its Sequence.
func (p *PostgreSQLAuditLogRepository) Create(ctx context.Context, log *auditDomain.AuditLog) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO audit_logs (id, created_at, secret_type, principal, message, successful, record_id,
			  target_id, ip_address, query, key_version, signature)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			  RETURNING sequence`

	err := querier.QueryRowContext(
		ctx,
		query,
		log.ID,
		log.CreatedAt,
		log.SecretType,
		log.Principal,
		log.Message,
		log.Successful,
		log.RecordID,
		log.TargetID,
		log.IPAddress,
		log.Query,
		int64(log.KeyVersion),
		log.Signature,
	).Scan(&log.Sequence)
	if err != nil {
		return apperrors.Wrap(err, "failed to create audit log")
	}
	return nil
}

// Get returns the entry with id.
func (p *PostgreSQLAuditLogRepository) Get(ctx context.Context, id uuid.UUID) (*auditDomain.AuditLog, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + auditLogColumns + ` FROM audit_logs WHERE id = $1`

	log, err := scanPostgreSQLAuditLog(querier.QueryRowContext(ctx, query, id))
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
func (p *PostgreSQLAuditLogRepository) List(
	ctx context.Context,
	criteria auditDomain.ListCriteria,
) ([]*auditDomain.AuditLog, error) {
	querier := database.GetTx(ctx, p.db)

	conditions := []string{"secret_type = $1"}
	args := []any{criteria.SecretType}
	if criteria.OnlyErrors {
		conditions = append(conditions, "successful = FALSE")
	}
	if criteria.Before != nil {
		conditions = append(conditions, fmt.Sprintf("(created_at, sequence) < ($%d, $%d)", len(args)+1, len(args)+2))
		args = append(args, criteria.Before.CreatedAt, criteria.Before.Sequence)
	}
	args = append(args, criteria.Limit)

	query := `SELECT ` + auditLogColumns + ` FROM audit_logs
			  WHERE ` + strings.Join(conditions, " AND ") + `
			  ORDER BY created_at DESC, sequence DESC
			  LIMIT $` + fmt.Sprint(len(args))

	return p.query(ctx, querier, query, args...)
}

// ListRange returns up to limit entries created in [start, end) with a sequence
// greater than afterSequence, ordered by sequence.
func (p *PostgreSQLAuditLogRepository) ListRange(
	ctx context.Context,
	start, end time.Time,
	afterSequence int64,
	limit int,
) ([]*auditDomain.AuditLog, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + auditLogColumns + ` FROM audit_logs
			  WHERE created_at >= $1 AND created_at < $2 AND sequence > $3
			  ORDER BY sequence ASC
			  LIMIT $4`

	return p.query(ctx, querier, query, start, end, afterSequence, limit)
}

func (p *PostgreSQLAuditLogRepository) query(
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
		log, err := scanPostgreSQLAuditLog(rows)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgreSQLAuditLog(row rowScanner) (*auditDomain.AuditLog, error) {
	var log auditDomain.AuditLog
	var recordID uuid.NullUUID
	var keyVersion int64

	err := row.Scan(
		&log.Sequence,
		&log.ID,
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

	if recordID.Valid {
		log.RecordID = &recordID.UUID
	}
	log.KeyVersion = uint32(keyVersion) //nolint:gosec
	log.CreatedAt = log.CreatedAt.UTC()
	return &log, nil
}
