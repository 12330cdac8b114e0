package postgres

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Migrator applies the calculation_runs and fixture_models schema.
type Migrator struct {
	dbURL  string
	source string
}

// NewMigrator targets dbURL. An empty source uses the migrations compiled
// into the binary; otherwise source is a golang-migrate URL such as
// "file:///etc/lumigrid/migrations".
func NewMigrator(dbURL, source string) *Migrator {
	return &Migrator{dbURL: dbURL, source: source}
}

func (m *Migrator) open() (*migrate.Migrate, error) {
	if m.source != "" {
		mg, err := migrate.New(m.source, m.dbURL)
		if err != nil {
			return nil, fmt.Errorf("migrate: open %s: %w", m.source, err)
		}
		return mg, nil
	}
	src, err := iofs.New(embeddedMigrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrate: embedded source: %w", err)
	}
	mg, err := migrate.NewWithSourceInstance("iofs", src, m.dbURL)
	if err != nil {
		return nil, fmt.Errorf("migrate: open embedded: %w", err)
	}
	return mg, nil
}

// Up applies every pending migration. No pending work is not an error.
func (m *Migrator) Up() error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate: up: %w", err)
	}
	return nil
}

// Down rolls back steps migrations.
func (m *Migrator) Down(steps int) error {
	if steps <= 0 {
		return fmt.Errorf("migrate: steps must be positive, got %d", steps)
	}
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate: nothing to roll back")
		}
		return fmt.Errorf("migrate: down %d: %w", steps, err)
	}
	return nil
}

// Version reports the applied version; 0 when nothing has run yet.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	mg, err := m.open()
	if err != nil {
		return 0, false, err
	}
	defer mg.Close()

	version, dirty, err = mg.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migrate: version: %w", err)
	}
	return version, dirty, nil
}

// Force marks version as applied without running it, clearing a dirty flag
// left by a failed migration.
func (m *Migrator) Force(version int) error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Force(version); err != nil {
		return fmt.Errorf("migrate: force %d: %w", version, err)
	}
	return nil
}
