package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/escrow/cmd/app/commands"
	"github.com/allisson/escrow/internal/app"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-keyset",
			Usage: "Generate a new keyset for the keyczar backend",
			Action: containerAction(func(_ context.Context, _ *cli.Command, c *app.Container) error {
				return commands.RunCreateKeyset(c.Logger(), commands.DefaultIO().Writer)
			}),
		},
		{
			Name:  "rotate-keyset",
			Usage: "Add a new primary version to the configured keyset",
			Action: containerAction(func(_ context.Context, _ *cli.Command, c *app.Container) error {
				existing, err := c.Config().KeysetData()
				if err != nil {
					return err
				}
				return commands.RunRotateKeyset(c.Logger(), commands.DefaultIO().Writer, existing)
			}),
		},
		{
			Name:  "check-kms",
			Usage: "Verify that the KMS key for a key name can wrap and unwrap data",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "key-name",
					Aliases:  []string{"k"},
					Required: true,
					Usage:    "Key name substituted into KMS_KEY_URI_TEMPLATE (e.g. filevault)",
				},
			},
			Action: containerAction(func(ctx context.Context, cmd *cli.Command, c *app.Container) error {
				return commands.RunCheckKMS(
					ctx,
					c.KMSService(),
					c.Logger(),
					commands.DefaultIO().Writer,
					c.Config().KMSKeyURITemplate,
					cmd.String("key-name"),
				)
			}),
		},
	}
}
