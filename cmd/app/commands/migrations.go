package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// migrationTarget maps a DB_DRIVER value to the migration source directory and a
// database URL golang-migrate understands.
func migrationTarget(driver, connectionString string) (source, databaseURL string, err error) {
	switch driver {
	case "postgres":
		return "file://migrations/postgresql", connectionString, nil
	case "mysql":
		// go-sql-driver/mysql takes a bare DSN but golang-migrate dispatches on the scheme.
		if !strings.HasPrefix(connectionString, "mysql://") {
			connectionString = "mysql://" + connectionString
		}
		return "file://migrations/mysql", connectionString, nil
	default:
		return "", "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

// RunMigrations brings the schema up to date and logs the version it moved from and to.
// An already current schema is not an error.
func RunMigrations(logger *slog.Logger, driver, connectionString string) error {
	source, databaseURL, err := migrationTarget(driver, connectionString)
	if err != nil {
		return err
	}

	m, err := migrate.New(source, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open migrations for %s: %w", driver, err)
	}
	defer closeMigrate(m, logger)

	from := schemaVersion(m)
	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("schema already up to date", slog.Uint64("version", uint64(from)))
		return nil
	case err != nil:
		return fmt.Errorf("failed to apply migrations from version %d: %w", from, err)
	}

	logger.Info("schema migrated",
		slog.String("driver", driver),
		slog.Uint64("from_version", uint64(from)),
		slog.Uint64("to_version", uint64(schemaVersion(m))),
	)
	return nil
}

// schemaVersion is zero for a database that has never been migrated.
func schemaVersion(m *migrate.Migrate) uint {
	version, _, err := m.Version()
	if err != nil {
		return 0
	}
	return version
}
