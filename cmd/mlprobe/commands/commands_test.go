package commands

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/mlengine/docker"
	"github.com/slok/mlprobe/internal/mlengine/fake"
	"github.com/slok/mlprobe/internal/model"
)

func TestLoadResolver(t *testing.T) {
	dir := t.TempDir()
	tasksFile := filepath.Join(dir, "tasks.yaml")
	require.NoError(t, os.WriteFile(tasksFile, []byte(`
image-to-text:
  modelHub: huggingface
  modelId: Xenova/vit-gpt2-image-captioning
`), 0o600))

	tests := map[string]struct {
		path    string
		task    string
		expOpts model.EngineOptions
		expErr  bool
	}{
		"Without tasks file the builtin overrides should be used": {
			task: "image-classification",
			expOpts: model.EngineOptions{
				TaskName:      "image-classification",
				ModelHub:      "huggingface",
				ModelRevision: "main",
				ModelID:       "aaraki/vit-base-patch16-224-in21k-finetuned-cifar10",
				DType:         "fp32",
			},
		},
		"A tasks file should replace the overrides": {
			path: tasksFile,
			task: "image-to-text",
			expOpts: model.EngineOptions{
				TaskName:      "image-to-text",
				ModelHub:      "huggingface",
				ModelRevision: "main",
				ModelID:       "Xenova/vit-gpt2-image-captioning",
			},
		},
		"A task missing from the tasks file should use the default options": {
			path:    tasksFile,
			task:    "image-classification",
			expOpts: model.EngineOptions{TaskName: "image-classification", ModelRevision: "main"},
		},
		"A missing tasks file should fail": {
			path:   filepath.Join(dir, "missing.yaml"),
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			r, err := loadResolver(context.Background(), test.path)
			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expOpts, r.ResolveOptions(test.task))
		})
	}
}

func TestWorkerFlagsNewEngine(t *testing.T) {
	tests := map[string]struct {
		flags     workerFlags
		expEngine any
		expErr    bool
	}{
		"The fake engine should be created": {
			flags:     workerFlags{engine: engineFake},
			expEngine: &fake.Engine{},
		},
		"The docker engine should be created": {
			flags:     workerFlags{engine: engineDocker, dockerImage: docker.DefaultImage, dockerPlatform: "linux/arm64/v8"},
			expEngine: &docker.Engine{},
		},
		"An invalid docker platform should fail": {
			flags:  workerFlags{engine: engineDocker, dockerPlatform: "linux"},
			expErr: true,
		},
		"An unknown engine should fail": {
			flags:  workerFlags{engine: "wasm"},
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			eng, err := test.flags.newEngine(log.Noop)
			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, test.expEngine, eng)
		})
	}
}
