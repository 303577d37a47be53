package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mlprobe/internal/app/exportget"
	"github.com/slok/mlprobe/internal/app/harness"
	"github.com/slok/mlprobe/internal/model"
	"github.com/slok/mlprobe/internal/storage/sqlite"
)

type ExportGetCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	requesterID string
	origin      string
	format      string
}

// NewExportGetCommand returns the export get command.
func NewExportGetCommand(rootCmd *RootCommand, exportCmd *kingpin.CmdClause) *ExportGetCommand {
	c := &ExportGetCommand{rootCmd: rootCmd}

	c.Cmd = exportCmd.Command("get", "Get the results exported by a requester.")
	c.Cmd.Arg("requester-id", "Requester identity the results were exported under.").Required().StringVar(&c.requesterID)
	c.Cmd.Flag("origin", "Origin the results were exported to.").Default(harness.DefaultOrigin).StringVar(&c.origin)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c ExportGetCommand) Name() string { return c.Cmd.FullCommand() }

func (c ExportGetCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	svc, err := exportget.NewService(exportget.ServiceConfig{
		Store:  repo,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	export, err := svc.Run(ctx, exportget.Request{
		Origin:      c.origin,
		RequesterID: c.requesterID,
	})
	if err != nil {
		return fmt.Errorf("could not get export: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintExports([]model.Export{*export}); err != nil {
		return fmt.Errorf("could not print export: %w", err)
	}

	return nil
}
