package integration

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/escrow/internal/app"
	auditDomain "github.com/allisson/escrow/internal/audit/domain"
	auditService "github.com/allisson/escrow/internal/audit/service"
	auditUseCase "github.com/allisson/escrow/internal/audit/usecase"
	cryptoDomain "github.com/allisson/escrow/internal/crypto/domain"
	"github.com/allisson/escrow/internal/testutil"
)

// TestAuditLogSignature_EndToEnd verifies signing, tamper detection and keyset rotation
// of audit log entries against real databases.
func TestAuditLogSignature_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	dbConfigs := []struct {
		name   string
		driver string
		dsn    string
	}{
		{
			name:   "PostgreSQL",
			driver: "postgres",
			dsn:    testutil.GetPostgresTestDSN(),
		},
		{
			name:   "MySQL",
			driver: "mysql",
			dsn:    testutil.GetMySQLTestDSN(),
		},
	}

	for _, dbConfig := range dbConfigs {
		t.Run(dbConfig.name, func(t *testing.T) {
			ctx := context.Background()
			driver := dbConfig.driver

			testCtx := setupAuditLogTestContext(t, driver, dbConfig.dsn)
			defer cleanupAuditLogTestContext(t, testCtx)

			auditLogUseCase, err := testCtx.container.AuditLogUseCase()
			require.NoError(t, err, "failed to get audit log use case")

			newEntry := func(message string) *auditDomain.AuditLog {
				return &auditDomain.AuditLog{
					SecretType: "filevault",
					Principal:  "root@example.com",
					Message:    message,
					Successful: true,
					TargetID:   "VOLUME-1",
					IPAddress:  "127.0.0.1",
				}
			}

			tamper := func(t *testing.T, id uuid.UUID) {
				t.Helper()

				var result sql.Result
				var execErr error
				if driver == "postgres" {
					result, execErr = testCtx.db.Exec(
						"UPDATE audit_logs SET principal = 'mallory@example.com' WHERE id = $1", id)
				} else {
					idBinary, marshalErr := id.MarshalBinary()
					require.NoError(t, marshalErr, "failed to marshal UUID")
					result, execErr = testCtx.db.Exec(
						"UPDATE audit_logs SET principal = 'mallory@example.com' WHERE id = ?", idBinary)
				}
				require.NoError(t, execErr, "failed to tamper with audit log")
				rowsAffected, _ := result.RowsAffected()
				require.Equal(t, int64(1), rowsAffected, "UPDATE should affect exactly 1 row")
			}

			t.Run("AppendSignsEntry", func(t *testing.T) {
				entry := newEntry(auditDomain.MessageGet)
				require.NoError(t, auditLogUseCase.Append(ctx, entry))

				assert.NotEqual(t, uuid.Nil, entry.ID)
				assert.NotZero(t, entry.Sequence)
				assert.Equal(t, testCtx.keyset.Primary().Version, entry.KeyVersion)
				assert.NotEmpty(t, entry.Signature)

				assert.NoError(t, auditLogUseCase.VerifyIntegrity(ctx, entry.ID))
			})

			t.Run("TamperDetection", func(t *testing.T) {
				entry := newEntry(auditDomain.MessageGet)
				require.NoError(t, auditLogUseCase.Append(ctx, entry))

				tamper(t, entry.ID)

				err := auditLogUseCase.VerifyIntegrity(ctx, entry.ID)
				assert.ErrorIs(t, err, auditDomain.ErrSignatureInvalid)
			})

			t.Run("VerifyBatch_WithInvalid", func(t *testing.T) {
				startTime := time.Now().UTC()

				var ids []uuid.UUID
				for i := 0; i < 3; i++ {
					entry := newEntry(auditDomain.MessageSearch)
					require.NoError(t, auditLogUseCase.Append(ctx, entry))
					ids = append(ids, entry.ID)
				}
				endTime := time.Now().UTC().Add(time.Second)

				tamper(t, ids[1])

				report, err := auditLogUseCase.VerifyBatch(ctx, startTime, endTime)
				require.NoError(t, err, "batch verification should not error")

				assert.Equal(t, int64(3), report.TotalChecked)
				assert.Equal(t, int64(2), report.ValidCount)
				assert.Equal(t, int64(1), report.InvalidCount)
				assert.Equal(t, []uuid.UUID{ids[1]}, report.InvalidLogs)
			})

			t.Run("RotatedKeysetStillVerifies", func(t *testing.T) {
				startTime := time.Now().UTC()

				entry := newEntry(auditDomain.MessageGet)
				require.NoError(t, auditLogUseCase.Append(ctx, entry))

				rotated, err := testCtx.keyset.Rotate()
				require.NoError(t, err)

				repo, err := testCtx.container.AuditLogRepository()
				require.NoError(t, err)
				evaluator, err := testCtx.container.PermissionEvaluator()
				require.NoError(t, err)
				logger := slog.New(slog.NewTextHandler(io.Discard, nil))

				rotatedUseCase := auditUseCase.NewAuditLogUseCase(
					repo, auditService.NewAuditSigner(), rotated, evaluator, logger)

				newer := newEntry(auditDomain.MessageGet)
				require.NoError(t, rotatedUseCase.Append(ctx, newer))
				assert.Equal(t, rotated.Primary().Version, newer.KeyVersion)

				report, err := rotatedUseCase.VerifyBatch(ctx, startTime, time.Now().UTC().Add(time.Second))
				require.NoError(t, err)
				assert.Equal(t, int64(2), report.TotalChecked)
				assert.Equal(t, int64(2), report.ValidCount)

				// The original keyset never saw the rotated version.
				err = auditLogUseCase.VerifyIntegrity(ctx, newer.ID)
				assert.ErrorIs(t, err, auditDomain.ErrSigningKeyNotFound)
			})
		})
	}
}

// auditLogTestContext holds test dependencies for audit log signature tests.
type auditLogTestContext struct {
	container *app.Container
	db        *sql.DB
	keyset    *cryptoDomain.Keyset
}

// setupAuditLogTestContext creates a migrated database and a container with a fresh keyset.
func setupAuditLogTestContext(t *testing.T, driver, dsn string) *auditLogTestContext {
	t.Helper()

	var db *sql.DB
	if driver == "postgres" {
		db = testutil.SetupPostgresDB(t)
	} else {
		db = testutil.SetupMySQLDB(t)
	}

	container := app.NewContainer(newTestConfig(t, driver, dsn))

	keyset, err := container.Keyset()
	require.NoError(t, err, "failed to load keyset")

	return &auditLogTestContext{
		container: container,
		db:        db,
		keyset:    keyset,
	}
}

// cleanupAuditLogTestContext closes database and container resources.
func cleanupAuditLogTestContext(t *testing.T, testCtx *auditLogTestContext) {
	t.Helper()

	if err := testCtx.container.Shutdown(context.Background()); err != nil {
		t.Logf("Warning: failed to shutdown container: %v", err)
	}

	if err := testCtx.db.Close(); err != nil {
		t.Logf("Warning: failed to close database: %v", err)
	}
}
