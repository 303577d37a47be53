package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mlprobe/internal/channel"
	"github.com/slok/mlprobe/internal/orchestrator"
	"github.com/slok/mlprobe/internal/storage/sqlite"
)

type ServeCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
	worker  workerFlags

	portName       string
	tasks          []string
	loadMode       string
	maxConcurrency int
}

// NewServeCommand returns the serve command.
func NewServeCommand(rootCmd *RootCommand, app *kingpin.Application) *ServeCommand {
	c := &ServeCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("serve", "Serve run requests as a worker, one JSON message per line on stdin and stdout.")
	c.Cmd.Flag("port-name", "Channel name, progressChannel.<task> serves a single task.").Default(orchestrator.PortNamePrefix).StringVar(&c.portName)
	c.Cmd.Flag("load-task", "Task engine loaded on the first run, repeatable (defaults to the requested task).").StringsVar(&c.tasks)
	c.Cmd.Flag("load-mode", "How the task engines are loaded (sequential, concurrent).").Default(string(orchestrator.LoadModeSequential)).EnumVar(&c.loadMode, string(orchestrator.LoadModeSequential), string(orchestrator.LoadModeConcurrent))
	c.Cmd.Flag("max-concurrency", "Maximum task engines loaded at the same time in concurrent mode.").Default("4").IntVar(&c.maxConcurrency)
	c.worker.register(c.Cmd)

	return c
}

func (c ServeCommand) Name() string { return c.Cmd.FullCommand() }

func (c ServeCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

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

	port, err := channel.NewStreamPort(channel.StreamPortConfig{
		Name:   c.portName,
		Reader: c.rootCmd.Stdin,
		Writer: c.rootCmd.Stdout,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create channel: %w", err)
	}
	defer port.Close()

	logger.Infof("Serving requests on %s", c.portName)
	if err := o.Serve(ctx, port); err != nil {
		return fmt.Errorf("could not serve requests: %w", err)
	}

	return nil
}
