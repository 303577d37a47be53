package taskconfig_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mlprobe/internal/model"
	"github.com/slok/mlprobe/internal/taskconfig"
)

func TestLoadYAML(t *testing.T) {
	tests := map[string]struct {
		fs           fstest.MapFS
		path         string
		expOverrides map[string]model.EngineOptions
		expErr       bool
	}{
		"A valid file should load with defaults applied": {
			fs: fstest.MapFS{
				"tasks.yaml": &fstest.MapFile{Data: []byte(`
image-classification:
  modelHub: huggingface
  modelId: aaraki/vit-base-patch16-224-in21k-finetuned-cifar10
  dtype: fp32
summarization:
  taskName: summarization
  modelRevision: v2
`)},
			},
			path: "tasks.yaml",
			expOverrides: map[string]model.EngineOptions{
				"image-classification": {
					TaskName:      "image-classification",
					ModelHub:      "huggingface",
					ModelID:       "aaraki/vit-base-patch16-224-in21k-finetuned-cifar10",
					ModelRevision: "main",
					DType:         "fp32",
				},
				"summarization": {TaskName: "summarization", ModelRevision: "v2"},
			},
		},

		"An empty file should load an empty table": {
			fs: fstest.MapFS{
				"tasks.yaml": &fstest.MapFile{Data: []byte("---\n")},
			},
			path:         "tasks.yaml",
			expOverrides: map[string]model.EngineOptions{},
		},

		"A missing file should fail": {
			fs:     fstest.MapFS{},
			path:   "tasks.yaml",
			expErr: true,
		},

		"Invalid YAML should fail": {
			fs: fstest.MapFS{
				"tasks.yaml": &fstest.MapFile{Data: []byte("- a\n- b\n")},
			},
			path:   "tasks.yaml",
			expErr: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			overrides, err := taskconfig.LoadYAML(context.Background(), test.fs, test.path)

			if test.expErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expOverrides, overrides)
		})
	}
}
