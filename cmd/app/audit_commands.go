package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/legalvault/cmd/app/commands"
	"github.com/allisson/legalvault/internal/app"
	"github.com/allisson/legalvault/internal/config"
)

func getAuditCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "search-audit-events",
			Usage: "Search the audit ledger by any subset of criteria",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "event-types", Usage: "Comma-separated event types, e.g. DOCUMENT_ENCRYPTED,KEY_ROTATED"},
				&cli.StringFlag{Name: "client-id"},
				&cli.StringFlag{Name: "matter-id"},
				&cli.StringFlag{Name: "document-id"},
				&cli.StringFlag{Name: "key-id"},
				&cli.StringFlag{Name: "start-date", Required: true},
				&cli.StringFlag{Name: "end-date", Required: true},
				&cli.IntFlag{Name: "limit", Value: 500},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				start, err := commands.ParseDate(cmd.String("start-date"))
				if err != nil {
					return err
				}
				end, err := commands.ParseDate(cmd.String("end-date"))
				if err != nil {
					return err
				}

				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				ledger, err := container.Ledger()
				if err != nil {
					return err
				}
				return commands.RunSearchAuditEvents(
					ctx, ledger, commands.DefaultIO().Writer,
					cmd.String("event-types"), cmd.String("client-id"), cmd.String("matter-id"),
					cmd.String("document-id"), cmd.String("key-id"), start, end, int(cmd.Int("limit")),
				)
			},
		},
		{
			Name:  "compliance-report",
			Usage: "Generate a compliance report over a date range",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "report-type", Value: "status"},
				&cli.StringFlag{Name: "start-date", Required: true},
				&cli.StringFlag{Name: "end-date", Required: true},
				&cli.StringFlag{Name: "client-id"},
				&cli.StringFlag{Name: "matter-id"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				start, err := commands.ParseDate(cmd.String("start-date"))
				if err != nil {
					return err
				}
				end, err := commands.ParseDate(cmd.String("end-date"))
				if err != nil {
					return err
				}

				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				ledger, err := container.Ledger()
				if err != nil {
					return err
				}
				return commands.RunComplianceReport(
					ctx, ledger, commands.DefaultIO().Writer,
					cmd.String("report-type"), start, end, cmd.String("client-id"), cmd.String("matter-id"),
				)
			},
		},
		{
			Name:  "comprehensive-audit",
			Usage: "Run an immediate COMPREHENSIVE verification sweep plus a compliance report",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "start-date", Required: true},
				&cli.StringFlag{Name: "end-date", Required: true},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				start, err := commands.ParseDate(cmd.String("start-date"))
				if err != nil {
					return err
				}
				end, err := commands.ParseDate(cmd.String("end-date"))
				if err != nil {
					return err
				}

				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				facade, err := container.Facade()
				if err != nil {
					return err
				}
				return commands.RunComprehensiveAudit(ctx, facade, commands.DefaultIO().Writer, start, end)
			},
		},
	}
}
