// Package commands implements the escrow CLI subcommands. Each Run function takes its
// dependencies explicitly so it can be tested with mocks and in-memory writers.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/golang-migrate/migrate/v4"

	"github.com/allisson/escrow/internal/app"
)

// IOTuple is the terminal a command talks to. Interactive prompts read from Reader.
type IOTuple struct {
	Reader io.Reader
	Writer io.Writer
}

// DefaultIO binds commands to stdin and stdout.
func DefaultIO() IOTuple {
	return IOTuple{Reader: os.Stdin, Writer: os.Stdout}
}

// writeJSON prints v as indented JSON. Encoding failures go to stderr so stdout only
// ever carries a complete document.
func writeJSON(writer io.Writer, v any) {
	enc := json.NewEncoder(writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "failed to encode JSON: %v\n", err)
	}
}

func closeContainer(container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(context.Background()); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

func closeMigrate(m *migrate.Migrate, logger *slog.Logger) {
	if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
		logger.Error("failed to close migrate",
			slog.Any("source_error", sourceErr),
			slog.Any("database_error", dbErr),
		)
	}
}
