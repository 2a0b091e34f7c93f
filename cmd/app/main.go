// Package main provides the entry point for the escrow server and its admin CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/escrow/internal/app"
	"github.com/allisson/escrow/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func getCommands(version string) []*cli.Command {
	var cmds []*cli.Command
	cmds = append(cmds, getSystemCommands(version)...)
	cmds = append(cmds, getKeyCommands()...)
	cmds = append(cmds, getAuthCommands()...)
	return cmds
}

// containerAction loads and validates configuration, builds a container for the
// duration of a single command and shuts it down afterwards.
func containerAction(
	fn func(ctx context.Context, cmd *cli.Command, container *app.Container) error,
) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		container := app.NewContainer(cfg)
		defer func() {
			if err := container.Shutdown(ctx); err != nil {
				container.Logger().Warn("container shutdown failed", slog.Any("error", err))
			}
		}()
		return fn(ctx, cmd, container)
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

func main() {
	cmd := &cli.Command{
		Name:     "escrow",
		Usage:    "Escrow store for disk encryption recovery secrets",
		Version:  version,
		Commands: getCommands(version),
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.Any("error", err))
		os.Exit(1)
	}
}
