// Package migrations manages the schema of the run history database.
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

	"github.com/slok/prun/internal/log"
)

// MigrationsTable is the table where the applied schema version is tracked.
const MigrationsTable = "prun_schema_migrations"

//go:embed sql/*.sql
var migrationFiles embed.FS

// MigratorConfig is the configuration of the migrator.
type MigratorConfig struct {
	DB     *sql.DB
	Logger log.Logger
}

func (c *MigratorConfig) defaults() error {
	if c.DB == nil {
		return fmt.Errorf("db is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "migrations.Migrator"})

	return nil
}

// Migrator applies the embedded run history schema.
type Migrator struct {
	db     *sql.DB
	logger log.Logger
}

// NewMigrator returns a new migrator.
func NewMigrator(cfg MigratorConfig) (*Migrator, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Migrator{
		db:     cfg.DB,
		logger: cfg.Logger,
	}, nil
}

// Up applies the pending migrations, being on the latest version is not an error.
func (m *Migrator) Up(ctx context.Context) error {
	err := m.with(func(inst *migrate.Migrate) error { return inst.Up() })
	if err != nil {
		return fmt.Errorf("could not apply migrations: %w", err)
	}

	version, _, err := m.Version(ctx)
	if err != nil {
		return err
	}
	m.logger.Debugf("Run history schema on version %d", version)

	return nil
}

// Down reverts every migration, dropping the run history.
func (m *Migrator) Down(ctx context.Context) error {
	err := m.with(func(inst *migrate.Migrate) error { return inst.Down() })
	if err != nil {
		return fmt.Errorf("could not revert migrations: %w", err)
	}

	m.logger.Debugf("Run history schema reverted")
	return nil
}

// Version returns the applied schema version, 0 when no migration has been applied.
// Dirty means a migration failed half way and the schema needs manual fixing.
func (m *Migrator) Version(ctx context.Context) (version uint, dirty bool, err error) {
	err = m.with(func(inst *migrate.Migrate) error {
		v, d, err := inst.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		version, dirty = v, d
		return err
	})
	if err != nil {
		return 0, false, fmt.Errorf("could not get schema version: %w", err)
	}

	return version, dirty, nil
}

// with runs fn on a migrate instance backed by the embedded files. Only the source is
// closed afterwards, closing the instance would close the shared db.
func (m *Migrator) with(fn func(inst *migrate.Migrate) error) error {
	driver, err := sqlite3.WithInstance(m.db, &sqlite3.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		return fmt.Errorf("could not create driver: %w", err)
	}

	src, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		return fmt.Errorf("could not load embedded migrations: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			m.logger.Warningf("Could not close migrations source: %s", err)
		}
	}()

	inst, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	if err := fn(inst); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
