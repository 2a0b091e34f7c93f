package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	authUseCase "github.com/allisson/escrow/internal/auth/usecase"
)

type cleanupResult struct {
	Count  int64     `json:"count"`
	Days   int       `json:"days"`
	Cutoff time.Time `json:"cutoff"`
	DryRun bool      `json:"dry_run"`
}

// RunCleanExpiredTokens deletes bearer tokens whose expiry is more than days in the
// past. With dryRun set the tokens are only counted. Negative retention is rejected by
// the use case.
func RunCleanExpiredTokens(
	ctx context.Context,
	tokenUseCase authUseCase.TokenUseCase,
	logger *slog.Logger,
	writer io.Writer,
	days int,
	dryRun bool,
	format string,
) error {
	count, err := tokenUseCase.CleanupExpired(ctx, days, dryRun)
	if err != nil {
		return fmt.Errorf("failed to clean expired tokens: %w", err)
	}

	result := cleanupResult{
		Count:  count,
		Days:   days,
		Cutoff: time.Now().UTC().AddDate(0, 0, -days).Truncate(time.Second),
		DryRun: dryRun,
	}

	switch {
	case format == "json":
		writeJSON(writer, result)
	case dryRun:
		_, _ = fmt.Fprintf(writer, "%d token(s) expired before %s would be deleted\n",
			count, result.Cutoff.Format(time.RFC3339))
	default:
		_, _ = fmt.Fprintf(writer, "Deleted %d token(s) expired before %s\n",
			count, result.Cutoff.Format(time.RFC3339))
	}

	logger.Info("expired tokens cleaned",
		slog.Int64("count", count),
		slog.Int("days", days),
		slog.Bool("dry_run", dryRun),
	)
	return nil
}
