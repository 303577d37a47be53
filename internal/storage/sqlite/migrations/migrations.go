// Package migrations has the SQLite schema of the run history and the export store.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/slok/mlprobe/internal/log"
)

//go:embed sql/*.sql
var schema embed.FS

// Up applies the pending schema migrations. Cancelling ctx stops the migration after the
// current step.
func Up(ctx context.Context, db *sql.DB, logger log.Logger) error {
	return withMigrate(ctx, db, logger, func(m *migrate.Migrate) error {
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debugf("Schema up to date")
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not apply migrations: %w", err)
		}

		logger.Debugf("Schema migrations applied")
		return nil
	})
}

// Down reverts all the schema migrations.
func Down(ctx context.Context, db *sql.DB, logger log.Logger) error {
	return withMigrate(ctx, db, logger, func(m *migrate.Migrate) error {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("could not revert migrations: %w", err)
		}
		return nil
	})
}

// Version returns the applied schema version, 0 when no migration has been applied.
func Version(ctx context.Context, db *sql.DB, logger log.Logger) (version uint, dirty bool, err error) {
	err = withMigrate(ctx, db, logger, func(m *migrate.Migrate) error {
		version, dirty, err = m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			version, dirty, err = 0, false, nil
		}
		return err
	})
	return version, dirty, err
}

func withMigrate(ctx context.Context, db *sql.DB, logger log.Logger, fn func(m *migrate.Migrate) error) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = log.Noop
	}

	// The driver is not closed, it would close the db.
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(schema, "sql")
	if err != nil {
		return fmt.Errorf("could not load embedded migrations: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Errorf("Could not close migrations source: %s", err)
		}
	}()

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	return fn(m)
}
