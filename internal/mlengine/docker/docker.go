package docker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/mlengine"
	"github.com/slok/mlprobe/internal/model"
)

const (
	// DefaultImage is the inference runtime image used when none is configured.
	DefaultImage = "ghcr.io/slok/mlprobe-runtime:latest"

	labelTask = "mlprobe.task"
)

// DockerClient is the interface for Docker operations that we use.
// This allows us to mock the Docker client for testing.
type DockerClient interface {
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
}

// EngineConfig is the configuration for the Docker engine host.
type EngineConfig struct {
	Client DockerClient
	// Image is the inference runtime image, it receives the engine options as environment.
	Image string
	// Platform forces the platform of the runtime container.
	Platform *ocispec.Platform
	Logger   log.Logger
}

func (c *EngineConfig) defaults() error {
	if c.Client == nil {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			return fmt.Errorf("could not create Docker client: %w", err)
		}
		c.Client = cli
	}
	if c.Image == "" {
		c.Image = DefaultImage
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "mlengine.Docker"})
	return nil
}

// Engine is the Docker implementation of the mlengine.Engine interface.
// Every task engine is a runtime container, created once and reused while it's running.
type Engine struct {
	*mlengine.ProgressBroker

	client   DockerClient
	image    string
	platform *ocispec.Platform
	logger   log.Logger
}

// NewEngine creates a new Docker engine host.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		ProgressBroker: mlengine.NewProgressBroker(),
		client:         cfg.Client,
		image:          cfg.Image,
		platform:       cfg.Platform,
		logger:         cfg.Logger,
	}, nil
}

// CreateEngine pulls the runtime image and starts the task runtime container.
func (e *Engine) CreateEngine(ctx context.Context, opts model.EngineOptions) error {
	if opts.TaskName == "" {
		return fmt.Errorf("task name is required: %w", model.ErrNotValid)
	}

	containerName := ContainerName(opts.TaskName)
	logger := e.logger.WithValues(log.Kv{"task": opts.TaskName, "container": containerName})

	running, err := e.isRunning(ctx, containerName)
	if err != nil {
		return err
	}
	if running {
		logger.Debugf("Engine container already running")
		return nil
	}

	logger.Infof("[1/3] Pulling image: %s", e.image)
	if err := e.pullImage(ctx, opts.TaskName); err != nil {
		return err
	}

	logger.Infof("[2/3] Creating container")
	containerConfig := &container.Config{
		Image:  e.image,
		Env:    optionsEnv(opts),
		Labels: map[string]string{labelTask: opts.TaskName},
	}
	resp, err := e.client.ContainerCreate(ctx, containerConfig, &container.HostConfig{}, nil, e.platform, containerName)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	logger.Infof("[3/3] Starting container: %s", resp.ID)
	if err := e.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("failed to start container %s: %w", containerName, err)
	}

	e.Publish(model.EngineProgress{TaskName: opts.TaskName, Status: "ready"})
	logger.Infof("Engine container started")

	return nil
}

func (e *Engine) isRunning(ctx context.Context, containerName string) (bool, error) {
	info, err := e.client.ContainerInspect(ctx, containerName)
	if err != nil {
		if strings.Contains(err.Error(), "No such container") {
			return false, nil
		}
		return false, fmt.Errorf("failed to inspect container %s: %w", containerName, err)
	}

	if info.ContainerJSONBase == nil || info.State == nil {
		return false, nil
	}

	if !info.State.Running {
		return false, fmt.Errorf("container %s exists but is %s: %w", containerName, info.State.Status, model.ErrAlreadyExists)
	}

	return true, nil
}

// pullImage pulls the runtime image relaying the pull stream as engine progress.
func (e *Engine) pullImage(ctx context.Context, taskName string) error {
	rc, err := e.client.ImagePull(ctx, e.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", e.image, err)
	}
	defer rc.Close()

	dec := json.NewDecoder(rc)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("could not decode pull progress: %w", err)
		}

		if msg.Error != nil {
			return fmt.Errorf("failed to pull image %s: %s", e.image, msg.Error.Message)
		}

		p := model.EngineProgress{
			TaskName: taskName,
			Status:   msg.Status,
			Message:  msg.ID,
		}
		if msg.Progress != nil {
			p.Current = msg.Progress.Current
			p.Total = msg.Progress.Total
		}
		e.Publish(p)
	}
}

// ContainerName returns the runtime container name of a task.
func ContainerName(taskName string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, taskName)

	return "mlprobe-" + name
}

// ParsePlatform parses an `os/arch[/variant]` platform.
func ParsePlatform(s string) (*ocispec.Platform, error) {
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid platform %q, expected os/arch[/variant]: %w", s, model.ErrNotValid)
	}

	p := &ocispec.Platform{OS: parts[0], Architecture: parts[1]}
	if len(parts) == 3 {
		p.Variant = parts[2]
	}

	return p, nil
}

func optionsEnv(opts model.EngineOptions) []string {
	env := []string{
		"MLPROBE_TASK=" + opts.TaskName,
		"MLPROBE_MODEL_REVISION=" + opts.ModelRevision,
	}
	if opts.ModelID != "" {
		env = append(env, "MLPROBE_MODEL_ID="+opts.ModelID)
	}
	if opts.ModelHub != "" {
		env = append(env, "MLPROBE_MODEL_HUB="+opts.ModelHub)
	}
	if opts.DType != "" {
		env = append(env, "MLPROBE_DTYPE="+opts.DType)
	}

	return env
}
