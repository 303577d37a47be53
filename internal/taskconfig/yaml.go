package taskconfig

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/slok/mlprobe/internal/model"
)

// overridesFile is the YAML structure of a task overrides file:
//
//	image-classification:
//	  modelHub: huggingface
//	  modelId: aaraki/vit-base-patch16-224-in21k-finetuned-cifar10
//	  dtype: fp32
type overridesFile map[string]model.EngineOptions

// LoadYAML loads a task override table from a YAML file.
func LoadYAML(ctx context.Context, filesystem fs.FS, path string) (map[string]model.EngineOptions, error) {
	data, err := fs.ReadFile(filesystem, path)
	if err != nil {
		return nil, fmt.Errorf("could not read overrides file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var file overridesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("could not parse YAML: %w", err)
	}

	overrides := make(map[string]model.EngineOptions, len(file))
	for name, opts := range file {
		if name == "" {
			return nil, fmt.Errorf("task name can't be empty: %w", model.ErrNotValid)
		}

		if opts.TaskName == "" {
			opts.TaskName = name
		}
		if opts.ModelRevision == "" {
			opts.ModelRevision = model.DefaultModelRevision
		}
		overrides[name] = opts
	}

	return overrides, nil
}
