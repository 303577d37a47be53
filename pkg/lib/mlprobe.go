package lib

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/slok/mlprobe/internal/app/exportget"
	"github.com/slok/mlprobe/internal/app/harness"
	"github.com/slok/mlprobe/internal/app/run"
	"github.com/slok/mlprobe/internal/app/runlist"
	"github.com/slok/mlprobe/internal/conventions"
	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/mlengine"
	"github.com/slok/mlprobe/internal/mlengine/docker"
	"github.com/slok/mlprobe/internal/mlengine/fake"
	"github.com/slok/mlprobe/internal/model"
	"github.com/slok/mlprobe/internal/orchestrator"
	"github.com/slok/mlprobe/internal/requester"
	"github.com/slok/mlprobe/internal/storage/sqlite"
	"github.com/slok/mlprobe/internal/taskconfig"
)

// Config configures the SDK client.
//
// All fields are optional. An empty Config{} uses ~/.mlprobe/mlprobe.db for storage
// and the docker engine host.
type Config struct {
	// DBPath is the SQLite database path, it keeps the run history and the harness exports.
	// Default: ~/.mlprobe/mlprobe.db.
	DBPath string

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger

	// Engine is the engine host used to load the task engines.
	// Default: [EngineDocker].
	Engine EngineType

	// DockerImage is the inference runtime image, only used by [EngineDocker].
	DockerImage string

	// TasksFile is an optional YAML file with task engine options overrides.
	TasksFile string
}

func (c *Config) defaults() error {
	if c.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DBPath = conventions.DBPath(home)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	if c.Engine == "" {
		c.Engine = EngineDocker
	}

	return nil
}

// Client is the main SDK entry point.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use, every run gets its own worker.
type Client struct {
	repo     *sqlite.Repository
	engine   mlengine.Engine
	resolver *taskconfig.Resolver
	logger   log.Logger
}

// New creates a new SDK client backed by a SQLite database.
//
// The caller must call [Client.Close] when done to release the database connection.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	engine, err := newEngine(cfg)
	if err != nil {
		return nil, mapError(fmt.Errorf("could not create engine: %w", err))
	}

	resolver, err := newResolver(ctx, cfg.TasksFile)
	if err != nil {
		return nil, mapError(err)
	}

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: cfg.DBPath,
		Logger: cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create repository: %w", err)
	}

	return &Client{
		repo:     repo,
		engine:   engine,
		resolver: resolver,
		logger:   cfg.Logger,
	}, nil
}

// Close releases resources held by the client, including the database connection.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	return c.repo.Close()
}

// RunOpts are the optional settings of [Client.Run].
type RunOpts struct {
	// LoadTasks is the batch of task engines loaded, defaults to the requested task.
	LoadTasks []string
	// LoadMode defaults to [LoadModeSequential].
	LoadMode LoadMode
	// MaxConcurrency bounds the concurrent loads of [LoadModeConcurrent].
	MaxConcurrency int
	// OnProgress is called with every progress message, in order.
	OnProgress func(progress string)
}

// Run requests a task run to a new worker and waits for its terminal report.
//
// The run is recorded in the run history. A run that finished with an error outcome
// is not an error, check [Report.Outcome].
func (c *Client) Run(ctx context.Context, taskName string, opts *RunOpts) (*Report, error) {
	if opts == nil {
		opts = &RunOpts{}
	}

	o, err := orchestrator.New(orchestrator.Config{
		Engine:         c.engine,
		Resolver:       c.resolver,
		RunRepository:  c.repo,
		Tasks:          opts.LoadTasks,
		LoadMode:       orchestrator.LoadMode(opts.LoadMode),
		MaxConcurrency: opts.MaxConcurrency,
		Logger:         c.logger,
	})
	if err != nil {
		return nil, mapError(fmt.Errorf("could not create worker: %w: %w", err, model.ErrNotValid))
	}

	client, err := requester.NewClient(requester.ClientConfig{
		OnProgress: func(ev model.ProgressEvent) {
			if opts.OnProgress != nil {
				opts.OnProgress(ev.Progress)
			}
		},
		Logger: c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create requester: %w", err)
	}

	svc, err := run.NewService(run.ServiceConfig{
		Worker:    o,
		Requester: client,
		Logger:    c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	report, err := svc.Run(ctx, run.Request{TaskName: taskName})
	if err != nil {
		return nil, mapError(err)
	}

	rep := fromInternalReport(*report)
	return &rep, nil
}

// HarnessOpts are the settings of [Client.Harness].
type HarnessOpts struct {
	// Tasks run, one worker each. Defaults to the builtin harness tasks.
	Tasks []string
	// Origin is the storage origin of the exports.
	Origin string
	// Timeout bounds the wait for the exports.
	Timeout time.Duration
}

// Harness runs every task on its own worker and returns the exports, in task order.
func (c *Client) Harness(ctx context.Context, opts HarnessOpts) ([]Export, error) {
	svc, err := harness.NewService(harness.ServiceConfig{
		Engine:        c.engine,
		Resolver:      c.resolver,
		ExportStore:   c.repo,
		RunRepository: c.repo,
		Origin:        opts.Origin,
		Logger:        c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	exports, err := svc.Run(ctx, harness.Request{
		Tasks:   opts.Tasks,
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, mapError(err)
	}

	res := make([]Export, 0, len(exports))
	for _, e := range exports {
		res = append(res, fromInternalExport(e))
	}

	return res, nil
}

// ListRunsOpts are the optional filters of [Client.ListRuns].
type ListRunsOpts struct {
	TaskName string
	Outcome  *Outcome
	Limit    int
}

// ListRuns returns the run history, most recent first.
func (c *Client) ListRuns(ctx context.Context, opts *ListRunsOpts) ([]Run, error) {
	req := runlist.Request{}
	if opts != nil {
		req.TaskFilter = opts.TaskName
		req.Limit = opts.Limit
		if opts.Outcome != nil {
			o := model.Outcome(*opts.Outcome)
			req.OutcomeFilter = &o
		}
	}

	svc, err := runlist.NewService(runlist.ServiceConfig{Repository: c.repo, Logger: c.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	runs, err := svc.Run(ctx, req)
	if err != nil {
		return nil, mapError(err)
	}

	res := make([]Run, 0, len(runs))
	for _, r := range runs {
		res = append(res, fromInternalRun(r))
	}

	return res, nil
}

// GetExport returns the export of a harness requester. If origin is empty the default
// harness origin is used.
func (c *Client) GetExport(ctx context.Context, origin, requesterID string) (*Export, error) {
	if origin == "" {
		origin = harness.DefaultOrigin
	}

	svc, err := exportget.NewService(exportget.ServiceConfig{Store: c.repo, Logger: c.logger})
	if err != nil {
		return nil, fmt.Errorf("could not create service: %w", err)
	}

	e, err := svc.Run(ctx, exportget.Request{Origin: origin, RequesterID: requesterID})
	if err != nil {
		return nil, mapError(err)
	}

	exp := fromInternalExport(*e)
	return &exp, nil
}

func newEngine(cfg Config) (mlengine.Engine, error) {
	switch cfg.Engine {
	case EngineFake:
		return fake.NewEngine(fake.EngineConfig{Logger: cfg.Logger})
	case EngineDocker:
		return docker.NewEngine(docker.EngineConfig{
			Image:  cfg.DockerImage,
			Logger: cfg.Logger,
		})
	default:
		return nil, fmt.Errorf("unsupported engine type: %s: %w", cfg.Engine, model.ErrNotValid)
	}
}

func newResolver(ctx context.Context, path string) (*taskconfig.Resolver, error) {
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
