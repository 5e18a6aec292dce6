package main

import (
	"context"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/allisson/legalvault/cmd/app/commands"
	"github.com/allisson/legalvault/internal/app"
	"github.com/allisson/legalvault/internal/config"
)

func getDocumentCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "encrypt-document",
			Usage: "Encrypt a single document for a client/matter tenant",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "path", Required: true},
				&cli.StringFlag{Name: "client-id", Required: true},
				&cli.StringFlag{Name: "matter-id", Required: true},
				&cli.StringFlag{Name: "compliance-level", Value: "standard"},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				facade, err := container.Facade()
				if err != nil {
					return err
				}
				return commands.RunEncryptDocument(
					ctx, facade, container.Logger(), commands.DefaultIO().Writer,
					cmd.String("path"), cmd.String("client-id"), cmd.String("matter-id"), cmd.String("compliance-level"),
				)
			},
		},
		{
			Name:  "decrypt-document",
			Usage: "Decrypt a document and write the plaintext to an output path",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "document-id", Required: true},
				&cli.StringFlag{Name: "client-id", Required: true},
				&cli.StringFlag{Name: "matter-id", Required: true},
				&cli.StringFlag{Name: "user-id"},
				&cli.StringFlag{Name: "out", Required: true},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				facade, err := container.Facade()
				if err != nil {
					return err
				}
				return commands.RunDecryptDocument(
					ctx, facade, container.Logger(),
					cmd.String("document-id"), cmd.String("client-id"), cmd.String("matter-id"),
					cmd.String("user-id"), cmd.String("out"),
				)
			},
		},
		{
			Name:  "batch-encrypt",
			Usage: "Encrypt every allowed file under a directory for one client/matter tenant",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "source-dir", Required: true},
				&cli.StringFlag{Name: "client-id", Required: true},
				&cli.StringFlag{Name: "matter-id", Required: true},
				&cli.StringFlag{Name: "compliance-level", Value: "standard"},
				&cli.StringFlag{Name: "extensions", Usage: "Comma-separated allowed extensions, e.g. .pdf,.docx (default: all)"},
				&cli.IntFlag{Name: "workers", Value: 8},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				facade, err := container.Facade()
				if err != nil {
					return err
				}

				var extensions []string
				if raw := cmd.String("extensions"); raw != "" {
					extensions = strings.Split(raw, ",")
				}

				return commands.RunBatchEncrypt(
					ctx, facade, container.Logger(), commands.DefaultIO().Writer,
					cmd.String("source-dir"), cmd.String("client-id"), cmd.String("matter-id"), cmd.String("compliance-level"),
					extensions, int(cmd.Int("workers")),
				)
			},
		},
	}
}
