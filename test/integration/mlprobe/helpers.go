package mlprobe

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/slok/mlprobe/test/integration/testutils"
)

// Config holds integration test configuration loaded from environment variables.
type Config struct {
	Binary string
}

func (c *Config) defaults() error {
	if c.Binary == "" {
		c.Binary = "mlprobe"
	}

	// go test changes the CWD to the test package directory, relative paths are ambiguous.
	if !filepath.IsAbs(c.Binary) {
		return fmt.Errorf("MLPROBE_INTEGRATION_BINARY must be an absolute path, got %q", c.Binary)
	}
	if _, err := os.Stat(c.Binary); err != nil {
		return fmt.Errorf("mlprobe binary not found at %q: %w", c.Binary, err)
	}

	return nil
}

// NewConfig loads integration test configuration from environment variables.
// If the config is invalid or the activation env var is not set, the test is skipped.
func NewConfig(t *testing.T) Config {
	t.Helper()

	const (
		envActivation = "MLPROBE_INTEGRATION"
		envBinary     = "MLPROBE_INTEGRATION_BINARY"
	)

	if os.Getenv(envActivation) != "true" {
		t.Skipf("Skipping integration test: %s is not set to 'true'", envActivation)
	}

	c := Config{Binary: os.Getenv(envBinary)}
	if err := c.defaults(); err != nil {
		t.Skipf("Skipping due to invalid config: %s", err)
	}

	return c
}

// RunCmd runs an mlprobe command with a specific db path and no logging.
func RunCmd(ctx context.Context, config Config, dbPath, cmdArgs string) (stdout, stderr []byte, err error) {
	args := fmt.Sprintf("--no-log --db-path %s %s", dbPath, cmdArgs)
	return testutils.RunMLProbe(ctx, nil, config.Binary, args, true)
}

// RunTask runs a task with the fake engine host, printing the results in JSON format.
func RunTask(ctx context.Context, config Config, dbPath, task string) (stdout, stderr []byte, err error) {
	return RunCmd(ctx, config, dbPath, fmt.Sprintf("run %s --engine fake --format json", task))
}

// RunServe serves a channel over the process stdio with the fake engine host.
func RunServe(ctx context.Context, config Config, dbPath, portName string, stdin io.Reader) (stdout, stderr []byte, err error) {
	args := []string{"--no-log", "--db-path", dbPath, "serve", "--engine", "fake", "--port-name", portName}
	return testutils.RunMLProbeArgs(ctx, nil, config.Binary, args, stdin, true)
}
