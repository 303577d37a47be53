package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mlprobe/internal/model"
)

type ResolveCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	tasks     []string
	tasksFile string
	format    string
}

// NewResolveCommand returns the resolve command.
func NewResolveCommand(rootCmd *RootCommand, app *kingpin.Application) *ResolveCommand {
	c := &ResolveCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("resolve", "Show the engine options the tasks are loaded with.")
	c.Cmd.Arg("tasks", "Task names to resolve.").Required().StringsVar(&c.tasks)
	c.Cmd.Flag("tasks-file", "YAML file with the task engine options overrides.").StringVar(&c.tasksFile)
	formatFlag(c.Cmd, &c.format)

	return c
}

func (c ResolveCommand) Name() string { return c.Cmd.FullCommand() }

func (c ResolveCommand) Run(ctx context.Context) error {
	resolver, err := loadResolver(ctx, c.tasksFile)
	if err != nil {
		return err
	}

	opts := make([]model.EngineOptions, 0, len(c.tasks))
	for _, t := range c.tasks {
		opts = append(opts, resolver.ResolveOptions(t))
	}

	if err := newPrinter(c.format, c.rootCmd.Stdout).PrintOptions(opts); err != nil {
		return fmt.Errorf("could not print options: %w", err)
	}

	return nil
}
