package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlavorDSN(t *testing.T) {
	for _, f := range []flavor{postgresFlavor, mysqlFlavor} {
		t.Run(f.driver, func(t *testing.T) {
			t.Setenv(f.envVar, "")
			assert.Equal(t, f.defaultDSN, f.dsn())

			t.Setenv(f.envVar, "custom-dsn")
			assert.Equal(t, "custom-dsn", f.dsn())
		})
	}

	t.Setenv("TEST_POSTGRES_DSN", "pg")
	t.Setenv("TEST_MYSQL_DSN", "my")
	assert.Equal(t, "pg", GetPostgresTestDSN())
	assert.Equal(t, "my", GetMySQLTestDSN())
}

func TestGetMigrationsPath(t *testing.T) {
	for _, dbType := range []string{postgresFlavor.migrationsDir, mysqlFlavor.migrationsDir} {
		path, err := getMigrationsPath(dbType)
		require.NoError(t, err)
		assert.Equal(t, dbType, filepath.Base(path))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	_, err := getMigrationsPath("oracle")
	assert.ErrorContains(t, err, "migrations directory not found for oracle")
}

func TestGetMigrationsPath_FromNestedDir(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	nested := filepath.Join(wd, "testdata", "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o750))
	t.Cleanup(func() { _ = os.RemoveAll(filepath.Join(wd, "testdata")) })

	t.Chdir(nested)

	path, err := getMigrationsPath("postgresql")
	require.NoError(t, err)
	assert.Equal(t, "postgresql", filepath.Base(path))
}

func TestUUIDToDriverValue(t *testing.T) {
	id := uuid.Must(uuid.NewV7())

	pg, err := uuidToDriverValue(id, "postgres")
	require.NoError(t, err)
	assert.Equal(t, id, pg)

	for _, driver := range []string{"mysql", "sqlite"} {
		value, err := uuidToDriverValue(id, driver)
		require.NoError(t, err)
		raw, ok := value.([]byte)
		require.True(t, ok, "%s should get []byte", driver)
		assert.Equal(t, id[:], raw)
	}
}

func TestRebind(t *testing.T) {
	query := "SELECT 1 FROM t WHERE a = ? AND b = ?"
	assert.Equal(t, "SELECT 1 FROM t WHERE a = $1 AND b = $2", rebind("postgres", query))
	assert.Equal(t, query, rebind("mysql", query))
	assert.Equal(t, "SELECT 1", rebind("postgres", "SELECT 1"))
}

func TestTeardownDB_Nil(t *testing.T) {
	assert.NotPanics(t, func() { TeardownDB(t, nil) })
}

// databaseCases runs fn once per reachable database.
func databaseCases(t *testing.T, fn func(t *testing.T, f flavor, db *sql.DB)) {
	t.Helper()
	for _, f := range []flavor{postgresFlavor, mysqlFlavor} {
		t.Run(f.driver, func(t *testing.T) {
			f.skipIfUnavailable(t)
			db := f.setup(t)
			defer TeardownDB(t, db)
			fn(t, f, db)
		})
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestSetupStartsEmpty(t *testing.T) {
	databaseCases(t, func(t *testing.T, _ flavor, db *sql.DB) {
		require.NoError(t, db.Ping())
		for _, table := range cleanupTables {
			assert.Zero(t, countRows(t, db, table), table)
		}
	})
}

func TestCleanupRemovesFixtures(t *testing.T) {
	databaseCases(t, func(t *testing.T, f flavor, db *sql.DB) {
		clientID := CreateTestClient(t, db, f.driver, "cleanup@example.com")
		assert.True(t, ValidateTestClient(t, db, f.driver, clientID))
		CreateTestSecretRecord(t, db, f.driver, "filevault", "SERIAL1", true)

		f.cleanup(t, db)

		assert.Zero(t, countRows(t, db, "clients"))
		assert.Zero(t, countRows(t, db, "secret_records"))
		assert.False(t, ValidateTestClient(t, db, f.driver, clientID))
	})
}

func TestTeardownClosesConnection(t *testing.T) {
	postgresFlavor.skipIfUnavailable(t)

	db := SetupPostgresDB(t)
	TeardownDB(t, db)
	assert.Error(t, db.Ping())
}

func TestCreateTestSecretRecord(t *testing.T) {
	databaseCases(t, func(t *testing.T, f flavor, db *sql.DB) {
		oldID := CreateTestSecretRecord(t, db, f.driver, "filevault", "SERIAL1", false)
		newID := CreateTestSecretRecord(t, db, f.driver, "filevault", "SERIAL1", true)
		assert.NotEqual(t, oldID, newID)

		assert.Equal(t, 1, CountActiveRecords(t, db, f.driver, "filevault", "SERIAL1"))
		assert.Zero(t, CountActiveRecords(t, db, f.driver, "filevault", "SERIAL2"))
	})
}

// The schema itself rejects a second active record for a target, independent of the
// repository code.
func TestActiveRecordUniqueness(t *testing.T) {
	databaseCases(t, func(t *testing.T, f flavor, db *sql.DB) {
		CreateTestSecretRecord(t, db, f.driver, "filevault", "SERIAL1", true)

		idValue, err := uuidToDriverValue(uuid.Must(uuid.NewV7()), f.driver)
		require.NoError(t, err)

		_, err = db.Exec(rebind(f.driver,
			`INSERT INTO secret_records (id, secret_type, target_id, tag, owners, created, created_by,
			 active, force_rekeying, hostname, metadata, encrypted_secret)
			 VALUES (?, 'filevault', 'SERIAL1', 'default', '[]', CURRENT_TIMESTAMP(6), 'bob@example.com',
			 TRUE, FALSE, '', '{}', 'x')`), idValue)
		assert.Error(t, err)

		// Inactive versions are unrestricted.
		CreateTestSecretRecord(t, db, f.driver, "filevault", "SERIAL1", false)
		assert.Equal(t, 1, CountActiveRecords(t, db, f.driver, "filevault", "SERIAL1"))
	})
}
