// Package requester is the front-end side of the harness: it asks a worker to run a task over a
// channel and follows the run until its terminal message.
package requester

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/slok/mlprobe/internal/channel"
	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/model"
)

// ClientConfig is the configuration of the requester client.
type ClientConfig struct {
	// OnProgress is called for every progress event, in arrival order.
	OnProgress func(model.ProgressEvent)
	Logger     log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.OnProgress == nil {
		c.OnProgress = func(model.ProgressEvent) {}
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "requester.Client"})
	return nil
}

// Report is what the requester observed during a run.
type Report struct {
	TaskName string
	// Progress is the ordered progress log of the run.
	Progress []model.ProgressEvent
	Envelope model.CompletionEnvelope
	// Results are the decoded task results, nil when the run ended before loading anything.
	Results []model.TaskResult
	// Errors are the decoded error messages when the request was rejected by the worker.
	Errors []string
}

// Client sends run requests to a worker.
type Client struct {
	onProgress func(model.ProgressEvent)
	logger     log.Logger
}

// NewClient returns a new requester client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Client{
		onProgress: cfg.OnProgress,
		logger:     cfg.Logger,
	}, nil
}

// Run requests a task run on the port and waits for its terminal message.
// If the worker is busy with another run, model.ErrAlreadyRunning is returned.
func (c *Client) Run(ctx context.Context, port channel.Port, taskName string) (*Report, error) {
	logger := c.logger.WithValues(log.Kv{"port": port.Name(), "task": taskName})

	req := model.TaskRequest{Action: model.ActionRunAsyncTask, TaskName: taskName}
	if err := port.Post(ctx, model.NewRequestMessage(req)); err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	logger.Debugf("Run requested")

	report := &Report{TaskName: taskName}
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("could not wait for run: %w", ctx.Err())
		case msg, ok := <-port.Messages():
			if !ok {
				return nil, fmt.Errorf("channel closed before the run finished: %w", channel.ErrClosed)
			}

			switch msg.Type {
			case model.MessageTypeProgressComplete:
				if msg.Results == nil {
					return nil, fmt.Errorf("terminal message without results: %w", model.ErrNotValid)
				}
				report.Envelope = *msg.Results
				decodeData(report)
				logger.Debugf("Run finished: %s", report.Envelope.What)
				return report, nil

			case model.MessageTypeProgressUpdate:
				ev := msg.ProgressEvent()
				if ev.Status == model.ProgressStatusBusy {
					c.onProgress(ev)
					return nil, fmt.Errorf("worker rejected the request: %w", model.ErrAlreadyRunning)
				}
				report.Progress = append(report.Progress, ev)
				c.onProgress(ev)

			default:
				logger.Debugf("Ignoring message of type %q", msg.Type)
			}
		}
	}
}

// decodeData decodes the envelope data, it's a list of task results or a list of error messages.
func decodeData(r *Report) {
	if results, err := r.Envelope.DecodeResults(); err == nil {
		r.Results = results
		return
	}

	var errs []string
	if err := json.Unmarshal([]byte(r.Envelope.Data), &errs); err == nil {
		r.Errors = errs
	}
}
