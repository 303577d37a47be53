package migrations_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/slok/mlprobe/internal/log"
	"github.com/slok/mlprobe/internal/storage/sqlite/migrations"
)

func TestMigrations(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	ctx := context.Background()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "mlprobe.db"))
	require.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	version, _, err := migrations.Version(ctx, db, log.Noop)
	require.NoError(err)
	assert.Equal(uint(0), version)

	// Applying twice is a no-op.
	require.NoError(migrations.Up(ctx, db, log.Noop))
	require.NoError(migrations.Up(ctx, db, log.Noop))

	version, dirty, err := migrations.Version(ctx, db, log.Noop)
	require.NoError(err)
	assert.Equal(uint(1), version)
	assert.False(dirty)

	var tables int
	require.NoError(db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('runs', 'export_items')`).Scan(&tables))
	assert.Equal(2, tables)

	require.NoError(migrations.Down(ctx, db, log.Noop))
	require.NoError(db.QueryRowContext(ctx, `SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('runs', 'export_items')`).Scan(&tables))
	assert.Equal(0, tables)
}

func TestMigrationsRequireDB(t *testing.T) {
	err := migrations.Up(context.Background(), nil, log.Noop)
	assert.Error(t, err)
}
