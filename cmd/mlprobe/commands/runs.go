package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mlprobe/internal/app/runlist"
	"github.com/slok/mlprobe/internal/model"
	"github.com/slok/mlprobe/internal/storage/sqlite"
)

type RunsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskFilter    string
	outcomeFilter string
	limit         int
	format        string
}

// NewRunsCommand returns the runs command.
func NewRunsCommand(rootCmd *RootCommand, app *kingpin.Application) *RunsCommand {
	c := &RunsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("runs", "List the recorded task runs, most recent first.")
	c.Cmd.Flag("task", "Filter by requested task.").StringVar(&c.taskFilter)
	c.Cmd.Flag("outcome", "Filter by outcome (success, error).").EnumVar(&c.outcomeFilter, string(model.OutcomeSuccess), string(model.OutcomeError))
	c.Cmd.Flag("limit", "Maximum number of runs shown, 0 shows all.").Default("0").IntVar(&c.limit)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c RunsCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunsCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	var outcomeFilter *model.Outcome
	if c.outcomeFilter != "" {
		o := model.Outcome(c.outcomeFilter)
		outcomeFilter = &o
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	svc, err := runlist.NewService(runlist.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	runs, err := svc.Run(ctx, runlist.Request{
		TaskFilter:    c.taskFilter,
		OutcomeFilter: outcomeFilter,
		Limit:         c.limit,
	})
	if err != nil {
		return fmt.Errorf("could not list runs: %w", err)
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintRuns(runs); err != nil {
		return fmt.Errorf("could not print runs: %w", err)
	}

	return nil
}
