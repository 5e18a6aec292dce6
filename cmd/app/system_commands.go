package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/legalvault/cmd/app/commands"
	"github.com/allisson/legalvault/internal/app"
	"github.com/allisson/legalvault/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "run",
			Usage: "Start the Audit Ledger flush loop and the Verification Monitor sweep scheduler",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(context.Background()) }()

				return commands.RunWorker(ctx, container, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database migrations for the audit ledger's indexed store",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(container.Logger(), cfg.DBDriver, cfg.DBConnectionString)
			},
		},
		{
			Name:  "system-status",
			Usage: "Report key rotation backlog, recent audit volume, and verification health",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				facade, err := container.Facade()
				if err != nil {
					return err
				}
				return commands.RunSystemStatus(ctx, facade, commands.DefaultIO().Writer)
			},
		},
	}
}
