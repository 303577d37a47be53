package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mlprobe/internal/app/run"
	"github.com/slok/mlprobe/internal/model"
	"github.com/slok/mlprobe/internal/orchestrator"
	"github.com/slok/mlprobe/internal/requester"
	"github.com/slok/mlprobe/internal/storage/sqlite"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	worker  workerFlags

	taskName       string
	tasks          []string
	loadMode       string
	maxConcurrency int
	format         string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run a task through an in-process worker and wait for its results.")
	c.Cmd.Arg("task", "Task name to run (e.g. image-to-text).").Required().StringVar(&c.taskName)
	c.Cmd.Flag("load-task", "Task engine loaded on the first run, repeatable (defaults to the requested task).").StringsVar(&c.tasks)
	c.Cmd.Flag("load-mode", "How the task engines are loaded (sequential, concurrent).").Default(string(orchestrator.LoadModeSequential)).EnumVar(&c.loadMode, string(orchestrator.LoadModeSequential), string(orchestrator.LoadModeConcurrent))
	c.Cmd.Flag("max-concurrency", "Maximum task engines loaded at the same time in concurrent mode.").Default("4").IntVar(&c.maxConcurrency)
	formatFlag(c.Cmd, &c.format)
	c.worker.register(c.Cmd)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Initialize storage (SQLite).
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

	o, err := orchestrator.New(orchestrator.Config{
		Engine:         eng,
		Resolver:       resolver,
		RunRepository:  repo,
		Tasks:          c.tasks,
		LoadMode:       orchestrator.LoadMode(c.loadMode),
		MaxConcurrency: c.maxConcurrency,
		Tracer:         tp.Tracer(),
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("could not create orchestrator: %w", err)
	}

	p := newPrinter(c.format, c.rootCmd.Stdout)
	progressPrinter := newPrinter(c.format, c.rootCmd.Stderr)
	client, err := requester.NewClient(requester.ClientConfig{
		OnProgress: func(ev model.ProgressEvent) { _ = progressPrinter.PrintProgress(ev) },
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create requester: %w", err)
	}

	svc, err := run.NewService(run.ServiceConfig{
		Worker:    o,
		Requester: client,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	report, err := svc.Run(ctx, run.Request{TaskName: c.taskName})
	if err != nil {
		return fmt.Errorf("could not run task: %w", err)
	}

	if report.Results == nil && report.Errors != nil {
		if err := p.PrintErrors(report.Envelope.What, report.Errors); err != nil {
			return fmt.Errorf("could not print errors: %w", err)
		}
	} else if err := p.PrintResults(report.Envelope.What, report.Results); err != nil {
		return fmt.Errorf("could not print results: %w", err)
	}

	if report.Envelope.What != model.OutcomeSuccess {
		return fmt.Errorf("run finished with %s outcome", report.Envelope.What)
	}

	return nil
}
