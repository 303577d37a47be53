package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mlprobe/internal/app/harness"
	"github.com/slok/mlprobe/internal/storage/sqlite"
)

type HarnessCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	worker  workerFlags

	tasks        []string
	origin       string
	timeout      time.Duration
	pollInterval time.Duration
	format       string
}

// NewHarnessCommand returns the harness command.
func NewHarnessCommand(rootCmd *RootCommand, app *kingpin.Application) *HarnessCommand {
	c := &HarnessCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("harness", "Run a batch of tasks, each one on its own worker, and collect the exported results.")
	c.Cmd.Flag("task", "Task to run, repeatable.").Default(harness.DefaultTasks...).StringsVar(&c.tasks)
	c.Cmd.Flag("origin", "Origin the workers export their results to.").Default(harness.DefaultOrigin).StringVar(&c.origin)
	c.Cmd.Flag("timeout", "Maximum time to wait for all the workers.").Default(harness.DefaultTimeout.String()).DurationVar(&c.timeout)
	c.Cmd.Flag("poll-interval", "Interval between export checks.").Default(harness.DefaultPollInterval.String()).DurationVar(&c.pollInterval)
	formatFlag(c.Cmd, &c.format)
	c.worker.register(c.Cmd)

	return c
}

func (c HarnessCommand) Name() string { return c.Cmd.FullCommand() }

func (c HarnessCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// The export store is the SQLite database so exports can be read later with `export get`.
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	eng, err := c.worker.newEngine(logger)
	if err != nil {
		return fmt.Errorf("could not create engine: %w", err)
	}

	resolver, err := c.worker.newResolver(ctx)
	if err != nil {
		return err
	}

	tp, err := c.worker.newTracing(c.rootCmd)
	if err != nil {
		return fmt.Errorf("could not setup tracing: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.WithoutCancel(ctx)) }()

	svc, err := harness.NewService(harness.ServiceConfig{
		Engine:        eng,
		Resolver:      resolver,
		ExportStore:   repo,
		RunRepository: repo,
		Origin:        c.origin,
		Tracer:        tp.Tracer(),
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	exports, err := svc.Run(ctx, harness.Request{
		Tasks:        c.tasks,
		Timeout:      c.timeout,
		PollInterval: c.pollInterval,
	})
	if err != nil {
		return fmt.Errorf("could not run harness: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	if err := p.PrintExports(exports); err != nil {
		return fmt.Errorf("could not print exports: %w", err)
	}

	return nil
}
