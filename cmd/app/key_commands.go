package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/legalvault/cmd/app/commands"
	"github.com/allisson/legalvault/internal/app"
	"github.com/allisson/legalvault/internal/config"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-master-key",
			Usage: "Generate a new KMS-wrapped master key for the key hierarchy",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "id", Aliases: []string{"i"}, Usage: "Master key ID (e.g., prod-master-key-2026)"},
				&cli.StringFlag{Name: "kms-provider", Required: true, Usage: "KMS provider (gcpkms, awskms, azurekeyvault, hashivault, localsecrets)"},
				&cli.StringFlag{Name: "kms-key-uri", Required: true, Usage: "KMS key URI"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunCreateMasterKey(
					ctx,
					container.KMSService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("kms-provider"),
					cmd.String("kms-key-uri"),
				)
			},
		},
		{
			Name:  "list-due-for-rotation",
			Usage: "List keys due or overdue for rotation",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				store, err := container.KMSStore()
				if err != nil {
					return err
				}
				return commands.RunListDueForRotation(ctx, store, commands.DefaultIO().Writer)
			},
		},
		{
			Name:  "rotate-client-matter-key",
			Usage: "Rotate the ACTIVE key for a client/matter tenant",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "client-id", Required: true},
				&cli.StringFlag{Name: "matter-id", Required: true},
				&cli.BoolFlag{Name: "force", Usage: "Rotate even if not yet due"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				facade, err := container.Facade()
				if err != nil {
					return err
				}
				return commands.RunRotateClientMatterKey(
					ctx, facade, container.Logger(), commands.DefaultIO().Writer,
					cmd.String("client-id"), cmd.String("matter-id"), cmd.Bool("force"),
				)
			},
		},
		{
			Name:  "revoke-key",
			Usage: "Revoke a key, immediately making it unusable for encryption or decryption",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "key-id", Required: true},
				&cli.StringFlag{Name: "reason", Required: true},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				store, err := container.KMSStore()
				if err != nil {
					return err
				}
				return commands.RunRevokeKey(ctx, store, container.Logger(), cmd.String("key-id"), cmd.String("reason"))
			},
		},
	}
}
