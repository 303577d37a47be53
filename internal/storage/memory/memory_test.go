package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/model"
	"github.com/slok/mlprobe/internal/storage/memory"
)

func runFixture(id string, startedAt time.Time) model.Run {
	return model.Run{
		ID:         id,
		TaskName:   "image-to-text",
		Outcome:    model.OutcomeSuccess,
		Results:    []model.TaskResult{model.NewTookResult("image-to-text", 42)},
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(time.Second),
	}
}

func TestRepositoryRuns(t *testing.T) {
	t0 := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		actions func(ctx context.Context, t *testing.T, repo *memory.Repository)
	}{
		"Creating a run should allow getting it": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) {
				require.NoError(t, repo.CreateRun(ctx, runFixture("r1", t0)))

				got, err := repo.GetRun(ctx, "r1")
				require.NoError(t, err)
				assert.Equal(t, runFixture("r1", t0), *got)
			},
		},

		"Creating a duplicated run should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) {
				require.NoError(t, repo.CreateRun(ctx, runFixture("r1", t0)))
				err := repo.CreateRun(ctx, runFixture("r1", t0))
				assert.True(t, errors.Is(err, model.ErrAlreadyExists))
			},
		},

		"Creating a run without ID should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) {
				err := repo.CreateRun(ctx, runFixture("", t0))
				assert.True(t, errors.Is(err, model.ErrNotValid))
			},
		},

		"Getting a missing run should fail": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) {
				_, err := repo.GetRun(ctx, "missing")
				assert.True(t, errors.Is(err, model.ErrNotFound))
			},
		},

		"Listing runs should return the most recent first": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) {
				require.NoError(t, repo.CreateRun(ctx, runFixture("r1", t0)))
				require.NoError(t, repo.CreateRun(ctx, runFixture("r3", t0.Add(2*time.Minute))))
				require.NoError(t, repo.CreateRun(ctx, runFixture("r2", t0.Add(time.Minute))))

				runs, err := repo.ListRuns(ctx)
				require.NoError(t, err)
				ids := []string{}
				for _, r := range runs {
					ids = append(ids, r.ID)
				}
				assert.Equal(t, []string{"r3", "r2", "r1"}, ids)
			},
		},

		"Returned runs should be copies": {
			actions: func(ctx context.Context, t *testing.T, repo *memory.Repository) {
				require.NoError(t, repo.CreateRun(ctx, runFixture("r1", t0)))

				got, err := repo.GetRun(ctx, "r1")
				require.NoError(t, err)
				got.Results[0].Name = "changed"

				got, err = repo.GetRun(ctx, "r1")
				require.NoError(t, err)
				assert.Equal(t, "image-to-text", got.Results[0].Name)
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo, err := memory.NewRepository(memory.RepositoryConfig{Logger: log.Noop})
			require.NoError(t, err)

			test.actions(context.Background(), t, repo)
		})
	}
}

func TestRepositoryItems(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(err)

	_, err = repo.GetItem(ctx, "https://www.example.org", "k1")
	assert.True(errors.Is(err, model.ErrNotFound))

	require.NoError(repo.SetItem(ctx, "https://www.example.org", "k1", "v1"))
	require.NoError(repo.SetItem(ctx, "https://www.example.org", "k1", "v2"))
	require.NoError(repo.SetItem(ctx, "https://other.example.org", "k1", "other"))

	v, err := repo.GetItem(ctx, "https://www.example.org", "k1")
	require.NoError(err)
	assert.Equal("v2", v)

	v, err = repo.GetItem(ctx, "https://other.example.org", "k1")
	require.NoError(err)
	assert.Equal("other", v)

	assert.True(errors.Is(repo.SetItem(ctx, "", "k1", "v"), model.ErrNotValid))
}
