package fake_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/mlengine/fake"
	"github.com/slok/mlprobe/internal/model"
)

func TestEngineCreateEngine(t *testing.T) {
	tests := map[string]struct {
		cfg     fake.EngineConfig
		actions func(ctx context.Context, t *testing.T, eng *fake.Engine)
	}{
		"Loading a task should register its engine": {
			actions: func(ctx context.Context, t *testing.T, eng *fake.Engine) {
				opts := model.EngineOptions{TaskName: "image-to-text", ModelRevision: "main"}
				require.NoError(t, eng.CreateEngine(ctx, opts))

				got, ok := eng.Loaded("image-to-text")
				assert.True(t, ok)
				assert.Equal(t, opts, got)
			},
		},

		"Loading a failing task should return its error": {
			cfg: fake.EngineConfig{
				Failures: map[string]error{"text-generation": errors.New("could not locate file")},
			},
			actions: func(ctx context.Context, t *testing.T, eng *fake.Engine) {
				err := eng.CreateEngine(ctx, model.EngineOptions{TaskName: "text-generation"})
				assert.EqualError(t, err, "could not locate file")

				_, ok := eng.Loaded("text-generation")
				assert.False(t, ok)
			},
		},

		"Loading the same task twice should reuse the engine": {
			cfg: fake.EngineConfig{
				OnCreate: func(ctx context.Context, opts model.EngineOptions) error {
					return nil
				},
			},
			actions: func(ctx context.Context, t *testing.T, eng *fake.Engine) {
				opts := model.EngineOptions{TaskName: "a"}
				require.NoError(t, eng.CreateEngine(ctx, opts))
				require.NoError(t, eng.CreateEngine(ctx, opts))
				assert.Equal(t, []string{"a", "a"}, eng.Calls())
			},
		},

		"A hook error should fail the load": {
			cfg: fake.EngineConfig{
				OnCreate: func(ctx context.Context, opts model.EngineOptions) error {
					return errors.New("hook")
				},
			},
			actions: func(ctx context.Context, t *testing.T, eng *fake.Engine) {
				assert.Error(t, eng.CreateEngine(ctx, model.EngineOptions{TaskName: "a"}))
			},
		},

		"A cancelled context should stop a slow load": {
			cfg: fake.EngineConfig{LoadDelay: time.Hour},
			actions: func(ctx context.Context, t *testing.T, eng *fake.Engine) {
				ctx, cancel := context.WithCancel(ctx)
				cancel()
				err := eng.CreateEngine(ctx, model.EngineOptions{TaskName: "a"})
				assert.ErrorIs(t, err, context.Canceled)
			},
		},

		"Progress should be published when enabled": {
			cfg: fake.EngineConfig{EmitProgress: true},
			actions: func(ctx context.Context, t *testing.T, eng *fake.Engine) {
				sub := eng.SubscribeProgress(ctx)
				require.NoError(t, eng.CreateEngine(ctx, model.EngineOptions{TaskName: "a"}))

				assert.Equal(t, model.EngineProgress{TaskName: "a", Status: "initiate"}, <-sub)
				assert.Equal(t, model.EngineProgress{TaskName: "a", Status: "done"}, <-sub)
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			test.cfg.Logger = log.Noop
			eng, err := fake.NewEngine(test.cfg)
			require.NoError(t, err)

			test.actions(ctx, t, eng)
		})
	}
}

func TestNewEngineInvalidConfig(t *testing.T) {
	_, err := fake.NewEngine(fake.EngineConfig{LoadDelay: -time.Second})
	assert.Error(t, err)
}
