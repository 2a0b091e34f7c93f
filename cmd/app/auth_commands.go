package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/escrow/cmd/app/commands"
	"github.com/allisson/escrow/internal/app"
)

const grantsUsage = `JSON object of secret type to permissions, e.g. {"filevault":["RETRIEVE"]} (omit for interactive mode)`

func clientIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "id",
		Aliases:  []string{"i"},
		Required: true,
		Usage:    "Client ID (UUID)",
	}
}

// clientFlags are shared by create-client and update-client.
func clientFlags(activeUsage string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "name",
			Aliases:  []string{"n"},
			Required: true,
			Usage:    "Client principal, e.g. alice@example.com",
		},
		&cli.BoolFlag{
			Name:    "active",
			Aliases: []string{"a"},
			Value:   true,
			Usage:   activeUsage,
		},
		&cli.StringFlag{
			Name:    "grants",
			Aliases: []string{"g"},
			Usage:   grantsUsage,
		},
		formatFlag(),
	}
}

func getAuthCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "clean-expired-tokens",
			Usage: "Delete tokens that expired more than the given number of days ago",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:     "days",
					Aliases:  []string{"d"},
					Required: true,
					Usage:    "Minimum age in days since expiry",
				},
				&cli.BoolFlag{
					Name:    "dry-run",
					Aliases: []string{"n"},
					Usage:   "Only count matching tokens",
				},
				formatFlag(),
			},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container) error {
				tokenUseCase, err := c.TokenUseCase()
				if err != nil {
					return err
				}
				return commands.RunCleanExpiredTokens(
					ctx,
					tokenUseCase,
					c.Logger(),
					commands.DefaultIO().Writer,
					int(cmd.Int("days")),
					cmd.Bool("dry-run"),
					cmd.String("format"),
				)
			}),
		},
		{
			Name:  "create-client",
			Usage: "Create a new client with per-type grants",
			Flags: clientFlags("Whether the client can authenticate immediately"),
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container) error {
				clientUseCase, err := c.ClientUseCase()
				if err != nil {
					return err
				}
				return commands.RunCreateClient(
					ctx,
					clientUseCase,
					c.Logger(),
					cmd.String("name"),
					cmd.Bool("active"),
					cmd.String("grants"),
					cmd.String("format"),
					commands.DefaultIO(),
				)
			}),
		},
		{
			Name:  "update-client",
			Usage: "Replace the name, status and grants of an existing client",
			Flags: append([]cli.Flag{clientIDFlag()}, clientFlags("Whether the client can authenticate")...),
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container) error {
				clientUseCase, err := c.ClientUseCase()
				if err != nil {
					return err
				}
				return commands.RunUpdateClient(
					ctx,
					clientUseCase,
					c.Logger(),
					commands.DefaultIO(),
					cmd.String("id"),
					cmd.String("name"),
					cmd.Bool("active"),
					cmd.String("grants"),
					cmd.String("format"),
				)
			}),
		},
		{
			Name:  "list-clients",
			Usage: "List clients with their grants and lockout state",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "offset", Usage: "Number of clients to skip"},
				&cli.IntFlag{Name: "limit", Value: 50, Usage: "Maximum number of clients to list"},
				formatFlag(),
			},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container) error {
				clientUseCase, err := c.ClientUseCase()
				if err != nil {
					return err
				}
				return commands.RunListClients(
					ctx,
					clientUseCase,
					commands.DefaultIO().Writer,
					int(cmd.Int("offset")),
					int(cmd.Int("limit")),
					cmd.String("format"),
				)
			}),
		},
		{
			Name:  "deactivate-client",
			Usage: "Deactivate a client so it can no longer request tokens",
			Flags: []cli.Flag{clientIDFlag()},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container) error {
				clientUseCase, err := c.ClientUseCase()
				if err != nil {
					return err
				}
				return commands.RunDeactivateClient(ctx, clientUseCase, c.Logger(), commands.DefaultIO().Writer, cmd.String("id"))
			}),
		},
		{
			Name:  "unlock-client",
			Usage: "Clear the lockout of a client after failed token requests",
			Flags: []cli.Flag{clientIDFlag()},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container) error {
				clientUseCase, err := c.ClientUseCase()
				if err != nil {
					return err
				}
				return commands.RunUnlockClient(ctx, clientUseCase, c.Logger(), commands.DefaultIO().Writer, cmd.String("id"))
			}),
		},
	}
}
