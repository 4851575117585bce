package store

import (
	"embed"
	"errors"
	"fmt"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"log/slog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrateUp runs all pending migrations up to the latest version
func (db *DB) MigrateUp() error {

	m, err := db.newMigrate()

	if err != nil {
		return err
	}

	// m is not closed as that would close the underlying connection
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}

	return nil
}

// MigrateVersion returns the current schema version and dirty state, zero
// when no migration has been applied
func (db *DB) MigrateVersion() (version uint, dirty bool, err error) {

	m, err := db.newMigrate()

	if err != nil {
		return 0, false, err
	}

	version, dirty, err = m.Version()

	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}

	return version, dirty, err
}

// newMigrate creates a migrate instance reading the embedded migrations
func (db *DB) newMigrate() (*migrate.Migrate, error) {

	src, err := iofs.New(migrationsFS, "migrations")

	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})

	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)

	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	m.Log = &migrateLogger{log: db.log}

	return m, nil
}

// migrateLogger implements the migrate.Logger interface
type migrateLogger struct {
	log *slog.Logger
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf("store: migrate: "+format, v...))
}

func (l *migrateLogger) Verbose() bool {
	return false
}
