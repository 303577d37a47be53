package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/slok/mlprobe/internal/channel"
	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/model"
)

// PortNamePrefix is the name prefix of the channels the orchestrator serves.
// A `progressChannel.<task>` channel encodes the task it runs.
const PortNamePrefix = "progressChannel"

const (
	errImproperPortName = "Improper port name"
	errUnknownAction    = "Unknown action"
	errMissingTaskName  = "Missing task name"
)

// PortName returns the channel name that encodes a task.
func PortName(taskName string) string {
	return PortNamePrefix + "." + taskName
}

// ParsePortName returns the task encoded in a channel name, the inverse of PortName. encoded is
// false for a bare `progressChannel` name, in that case requests need to carry the task name.
func ParsePortName(name string) (taskName string, encoded bool, err error) {
	if !strings.HasPrefix(name, PortNamePrefix) {
		return "", false, fmt.Errorf("channel %q is not a progress channel: %w", name, model.ErrNotValid)
	}

	rest := strings.TrimPrefix(name, PortNamePrefix)
	if rest == "" {
		return "", false, nil
	}

	if !strings.HasPrefix(rest, ".") {
		return "", false, fmt.Errorf("channel %q is not a progress channel: %w", name, model.ErrNotValid)
	}

	// Task names may have dots, the task is everything after the separator.
	return strings.TrimPrefix(rest, "."), true, nil
}

// Serve handles the requests received on a port until the port is closed or ctx is done.
// Runs are started in the background so a request arriving while a run is in flight gets the
// busy notice. Serve waits for its in-flight runs before returning.
func (o *Orchestrator) Serve(ctx context.Context, port channel.Port) error {
	logger := o.logger.WithValues(log.Kv{"port": port.Name()})

	encodedTask, encoded, err := ParsePortName(port.Name())
	if err != nil {
		// Other channels are not ours, only progress channels get the terminal error.
		if strings.HasPrefix(port.Name(), PortNamePrefix) {
			o.finalize(ctx, port, model.OutcomeError, []string{errImproperPortName}, logger)
		}
		return err
	}

	if encoded && encodedTask == "" {
		o.finalize(ctx, port, model.OutcomeError, []string{errImproperPortName}, logger)
		return fmt.Errorf("channel %q has an empty task: %w", port.Name(), model.ErrNotValid)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	logger.Debugf("Serving channel")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-port.Messages():
			if !ok {
				logger.Debugf("Channel closed by the requester")
				return nil
			}

			o.handleMessage(ctx, port, msg, encodedTask, encoded, &wg, logger)
		}
	}
}

func (o *Orchestrator) handleMessage(ctx context.Context, port channel.Port, msg model.Message, encodedTask string, encoded bool, wg *sync.WaitGroup, logger log.Logger) {
	if encoded && msg.TaskName != "" && msg.TaskName != encodedTask {
		logger.Debugf("Ignoring request for task %q", msg.TaskName)
		return
	}

	if msg.Action != model.ActionRunAsyncTask {
		logger.Warningf("Unknown action %q", msg.Action)
		o.finalize(ctx, port, model.OutcomeError, []string{errUnknownAction}, logger)
		return
	}

	taskName := msg.TaskName
	if encoded {
		taskName = encodedTask
	}
	if taskName == "" {
		o.finalize(ctx, port, model.OutcomeError, []string{errMissingTaskName}, logger)
		return
	}

	if err := o.begin(ctx, port); err != nil {
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		o.execute(ctx, port, taskName)
	}()
}
