package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/mlengine"
	"github.com/slok/mlprobe/internal/mlengine/docker"
	"github.com/slok/mlprobe/internal/mlengine/fake"
	"github.com/slok/mlprobe/internal/taskconfig"
	"github.com/slok/mlprobe/internal/tracing"
)

const (
	engineFake   = "fake"
	engineDocker = "docker"
)

// workerFlags are the flags of the commands that run workers.
type workerFlags struct {
	engine         string
	dockerImage    string
	dockerPlatform string
	tasksFile      string
	trace          bool
}

func (w *workerFlags) register(cmd *kingpin.CmdClause) {
	cmd.Flag("engine", "Engine host type (fake, docker).").Default(engineDocker).EnumVar(&w.engine, engineFake, engineDocker)
	cmd.Flag("docker-image", "Inference runtime image used by the docker engine host.").Default(docker.DefaultImage).StringVar(&w.dockerImage)
	cmd.Flag("docker-platform", "Platform of the runtime containers (os/arch[/variant]).").StringVar(&w.dockerPlatform)
	cmd.Flag("tasks-file", "YAML file with the task engine options overrides.").StringVar(&w.tasksFile)
	cmd.Flag("trace", "Print the task engine load traces on stderr.").BoolVar(&w.trace)
}

func (w workerFlags) newEngine(logger log.Logger) (mlengine.Engine, error) {
	switch w.engine {
	case engineFake:
		return fake.NewEngine(fake.EngineConfig{EmitProgress: true, Logger: logger})
	case engineDocker:
		platform, err := docker.ParsePlatform(w.dockerPlatform)
		if err != nil {
			return nil, fmt.Errorf("invalid docker platform: %w", err)
		}
		return docker.NewEngine(docker.EngineConfig{
			Image:    w.dockerImage,
			Platform: platform,
			Logger:   logger,
		})
	}

	return nil, fmt.Errorf("unknown engine %q", w.engine)
}

func (w workerFlags) newResolver(ctx context.Context) (*taskconfig.Resolver, error) {
	return loadResolver(ctx, w.tasksFile)
}

func (w workerFlags) newTracing(rootCmd *RootCommand) (*tracing.Provider, error) {
	return tracing.NewProvider(tracing.Config{
		Enabled:  w.trace,
		Exporter: tracing.ExporterStdout,
		Writer:   rootCmd.Stderr,
	})
}

// loadResolver returns the resolver with the overrides of the tasks file, or the builtin ones
// when there is no file.
func loadResolver(ctx context.Context, path string) (*taskconfig.Resolver, error) {
	if path == "" {
		return taskconfig.NewResolver(nil), nil
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("could not get tasks file path: %w", err)
	}

	overrides, err := taskconfig.LoadYAML(ctx, os.DirFS(filepath.Dir(abs)), filepath.Base(abs))
	if err != nil {
		return nil, fmt.Errorf("could not load tasks file: %w", err)
	}

	return taskconfig.NewResolver(overrides), nil
}
