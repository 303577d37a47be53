package taskconfig_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/slok/mlprobe/internal/model"
	"github.com/slok/mlprobe/internal/taskconfig"
)

func TestResolverResolveOptions(t *testing.T) {
	tests := map[string]struct {
		overrides map[string]model.EngineOptions
		taskName  string
		expOpts   model.EngineOptions
	}{
		"A task without override should get the default options": {
			taskName: "image-to-text",
			expOpts:  model.EngineOptions{TaskName: "image-to-text", ModelRevision: "main"},
		},

		"A task with a builtin override should get the fine-tuned model": {
			taskName: "image-classification",
			expOpts: model.EngineOptions{
				TaskName:      "image-classification",
				ModelHub:      "huggingface",
				ModelRevision: "main",
				ModelID:       "aaraki/vit-base-patch16-224-in21k-finetuned-cifar10",
				DType:         "fp32",
			},
		},

		"Custom overrides should replace the builtin ones": {
			overrides: map[string]model.EngineOptions{
				"summarization": {TaskName: "summarization", ModelID: "Xenova/t5-small", ModelRevision: "v1"},
			},
			taskName: "image-classification",
			expOpts:  model.EngineOptions{TaskName: "image-classification", ModelRevision: "main"},
		},

		"A task with a custom override should get it": {
			overrides: map[string]model.EngineOptions{
				"summarization": {TaskName: "summarization", ModelID: "Xenova/t5-small", ModelRevision: "v1"},
			},
			taskName: "summarization",
			expOpts:  model.EngineOptions{TaskName: "summarization", ModelID: "Xenova/t5-small", ModelRevision: "v1"},
		},

		"An empty task name should still resolve": {
			taskName: "",
			expOpts:  model.EngineOptions{TaskName: "", ModelRevision: "main"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			r := taskconfig.NewResolver(test.overrides)
			assert.Equal(t, test.expOpts, r.ResolveOptions(test.taskName))
		})
	}
}

func TestResolverDefaultsForUnknownTasks(t *testing.T) {
	r := taskconfig.NewResolver(nil)
	overrides := taskconfig.DefaultOverrides()

	rapid.Check(t, func(t *rapid.T) {
		name := rapid.String().Draw(t, "taskName")
		if _, ok := overrides[name]; ok {
			t.Skip("overridden task")
		}

		got := r.ResolveOptions(name)
		if got != (model.EngineOptions{TaskName: name, ModelRevision: "main"}) {
			t.Fatalf("unexpected options for %q: %+v", name, got)
		}
	})
}

func TestDefaultOverridesIsACopy(t *testing.T) {
	o := taskconfig.DefaultOverrides()
	delete(o, "image-classification")

	assert.Contains(t, taskconfig.DefaultOverrides(), "image-classification")
}
