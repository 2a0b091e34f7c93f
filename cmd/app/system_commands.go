package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/escrow/cmd/app/commands"
	"github.com/allisson/escrow/internal/app"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server and the notification worker",
			Action: func(ctx context.Context, _ *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Apply pending database migrations",
			Action: containerAction(func(_ context.Context, _ *cli.Command, c *app.Container) error {
				cfg := c.Config()
				return commands.RunMigrations(c.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			}),
		},
		{
			Name:  "process-outbox",
			Usage: "Deliver one batch of pending notifications and exit",
			Action: containerAction(func(ctx context.Context, _ *cli.Command, c *app.Container) error {
				outboxUseCase, err := c.OutboxUseCase()
				if err != nil {
					return err
				}
				return outboxUseCase.ProcessEvents(ctx)
			}),
		},
		{
			Name:  "verify-audit-logs",
			Usage: "Check the HMAC signatures of audit entries inside a time window",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "start-date",
					Aliases:  []string{"s"},
					Required: true,
					Usage:    "Window start: YYYY-MM-DD, YYYY-MM-DD HH:MM:SS or RFC 3339 (UTC unless zoned)",
				},
				&cli.StringFlag{
					Name:    "end-date",
					Aliases: []string{"e"},
					Usage:   "Window end in the same formats; defaults to now",
				},
				formatFlag(),
			},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container) error {
				auditLogUseCase, err := c.AuditLogUseCase()
				if err != nil {
					return err
				}
				return commands.RunVerifyAuditLogs(
					ctx,
					auditLogUseCase,
					c.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("start-date"),
					cmd.String("end-date"),
					cmd.String("format"),
				)
			}),
		},
	}
}
