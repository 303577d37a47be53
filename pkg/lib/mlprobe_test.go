package lib_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mlprobe/pkg/lib"
)

// newTestClient creates a client with a temp SQLite DB for test isolation.
func newTestClient(t *testing.T) *lib.Client {
	t.Helper()

	client, err := lib.New(context.Background(), lib.Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Engine: lib.EngineFake,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client
}

func TestNew(t *testing.T) {
	tests := map[string]struct {
		cfg    func(t *testing.T) lib.Config
		expErr error
	}{
		"A fake engine client should be created.": {
			cfg: func(t *testing.T) lib.Config {
				return lib.Config{DBPath: filepath.Join(t.TempDir(), "a.db"), Engine: lib.EngineFake}
			},
		},

		"A client with a tasks file should be created.": {
			cfg: func(t *testing.T) lib.Config {
				dir := t.TempDir()
				path := filepath.Join(dir, "tasks.yaml")
				err := os.WriteFile(path, []byte("image-to-text:\n  modelId: Xenova/vit-gpt2-image-captioning\n"), 0o644)
				require.NoError(t, err)
				return lib.Config{DBPath: filepath.Join(dir, "a.db"), Engine: lib.EngineFake, TasksFile: path}
			},
		},

		"An unknown engine should fail.": {
			cfg: func(t *testing.T) lib.Config {
				return lib.Config{DBPath: filepath.Join(t.TempDir(), "a.db"), Engine: "wasm"}
			},
			expErr: lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)

			client, err := lib.New(context.Background(), test.cfg(t))

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				return
			}
			require.NoError(t, err)
			assert.NoError(client.Close())
		})
	}
}

func TestClientRun(t *testing.T) {
	tests := map[string]struct {
		task        string
		opts        *lib.RunOpts
		expErr      error
		expOutcome  lib.Outcome
		expProgress []string
		expResults  []string
	}{
		"Running a task should load its engine.": {
			task:        "image-to-text",
			expOutcome:  lib.OutcomeSuccess,
			expProgress: []string{"Starting image-to-text", "Loading image-to-text", "Model loading done!"},
			expResults:  []string{"image-to-text"},
		},

		"Running a task with a batch should load every engine of the batch.": {
			task: "image-to-text",
			opts: &lib.RunOpts{
				LoadTasks:      []string{"a", "b"},
				LoadMode:       lib.LoadModeConcurrent,
				MaxConcurrency: 2,
			},
			expOutcome: lib.OutcomeSuccess,
			expResults: []string{"a", "b"},
		},

		"Running without a task name should fail.": {
			expErr: lib.ErrNotValid,
		},

		"Running with an unknown load mode should fail.": {
			task:   "image-to-text",
			opts:   &lib.RunOpts{LoadMode: "random"},
			expErr: lib.ErrNotValid,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			client := newTestClient(t)

			var progress []string
			opts := test.opts
			if opts == nil {
				opts = &lib.RunOpts{}
			}
			opts.OnProgress = func(p string) { progress = append(progress, p) }

			report, err := client.Run(context.Background(), test.task, opts)

			if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
				return
			}
			require.NoError(t, err)

			assert.Equal(test.expOutcome, report.Outcome)
			assert.Equal(report.Progress, progress)
			if test.expProgress != nil {
				assert.Equal(test.expProgress, report.Progress)
			}

			var names []string
			for _, r := range report.Results {
				assert.False(r.Failed())
				names = append(names, r.Name)
			}
			assert.ElementsMatch(test.expResults, names)
		})
	}
}

func TestClientListRuns(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Run(ctx, "image-to-text", nil)
	require.NoError(err)
	_, err = client.Run(ctx, "text-generation", nil)
	require.NoError(err)

	runs, err := client.ListRuns(ctx, nil)
	require.NoError(err)
	assert.Len(runs, 2)

	runs, err = client.ListRuns(ctx, &lib.ListRunsOpts{TaskName: "text-generation"})
	require.NoError(err)
	require.Len(runs, 1)
	assert.Equal("text-generation", runs[0].TaskName)
	assert.Equal(lib.OutcomeSuccess, runs[0].Outcome)

	failed := lib.OutcomeError
	runs, err = client.ListRuns(ctx, &lib.ListRunsOpts{Outcome: &failed})
	require.NoError(err)
	assert.Empty(runs)

	_, err = client.ListRuns(ctx, &lib.ListRunsOpts{Limit: -1})
	assert.ErrorIs(err, lib.ErrNotValid)
}

func TestClientHarness(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	client := newTestClient(t)
	ctx := context.Background()

	exports, err := client.Harness(ctx, lib.HarnessOpts{
		Tasks:   []string{"text-generation", "zero-shot-object-detection"},
		Timeout: 10 * time.Second,
	})
	require.NoError(err)
	require.Len(exports, 2)

	for i, task := range []string{"text-generation", "zero-shot-object-detection"} {
		exp := exports[i]
		assert.Equal(task, exp.TaskName)
		require.Len(exp.Results, 1)
		assert.Equal(task, exp.Results[0].Name)

		got, err := client.GetExport(ctx, "", exp.RequesterID)
		require.NoError(err)
		assert.Equal(exp.Value, got.Value)
	}

	_, err = client.GetExport(ctx, "", "missing")
	assert.ErrorIs(err, lib.ErrNotFound)
}
