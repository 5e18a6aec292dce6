package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/legalvault/cmd/app/commands"
	"github.com/allisson/legalvault/internal/app"
	"github.com/allisson/legalvault/internal/config"
)

func getBackupCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-backup",
			Usage: "Create an encrypted backup and run its restoration self-test",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "type",
					Required: true,
					Usage:    "Backup type: database, documents, or full-system",
				},
				&cli.StringFlag{
					Name:     "source",
					Required: true,
					Usage:    "Source locator (file:// path, or DB connection string for database backups)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				facade, err := container.Facade()
				if err != nil {
					return err
				}
				return commands.RunCreateBackup(
					ctx, facade, container.Logger(), commands.DefaultIO().Writer,
					cmd.String("type"), cmd.String("source"),
				)
			},
		},
	}
}
