// Package taskconfig maps task names to the engine options needed to load them.
package taskconfig

import (
	"maps"

	"github.com/slok/mlprobe/internal/model"
)

// Some tasks can't use the base model of the hub, base feature models don't have the
// task specific output heads (e.g. no logits for classification), so they need a fine-tuned model.
var defaultOverrides = map[string]model.EngineOptions{
	"image-classification": {
		TaskName:      "image-classification",
		ModelHub:      "huggingface",
		ModelRevision: model.DefaultModelRevision,
		ModelID:       "aaraki/vit-base-patch16-224-in21k-finetuned-cifar10",
		DType:         "fp32",
	},
	"image-segmentation": {
		TaskName:      "image-segmentation",
		ModelHub:      "huggingface",
		ModelRevision: model.DefaultModelRevision,
		ModelID:       "facebook/mask2former-swin-large-cityscapes-panoptic",
		DType:         "fp32",
	},
}

// DefaultOverrides returns a copy of the builtin override table.
func DefaultOverrides() map[string]model.EngineOptions {
	return maps.Clone(defaultOverrides)
}

// Resolver resolves engine options from task names.
type Resolver struct {
	overrides map[string]model.EngineOptions
}

// NewResolver returns a resolver using the override table. A nil table uses the builtin overrides.
func NewResolver(overrides map[string]model.EngineOptions) *Resolver {
	if overrides == nil {
		overrides = DefaultOverrides()
	}

	return &Resolver{overrides: maps.Clone(overrides)}
}

// ResolveOptions returns the engine options of a task, it never fails.
//
// Without a model revision the hub falls back to a "default" revision path that doesn't exist,
// that's why options without override always set "main".
func (r *Resolver) ResolveOptions(taskName string) model.EngineOptions {
	if opts, ok := r.overrides[taskName]; ok {
		return opts
	}

	return model.EngineOptions{
		TaskName:      taskName,
		ModelRevision: model.DefaultModelRevision,
	}
}
