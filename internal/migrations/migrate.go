package migrations

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

type Migrator struct {
	migrate *migrate.Migrate
	logger  *slog.Logger
}

// NewMigrator reads migrations from dir, resolved against the working
// directory when relative.
func NewMigrator(dbConnString, dir string, logger *slog.Logger) (*Migrator, error) {
	sourceURL, err := SourceURL(dir)
	if err != nil {
		return nil, err
	}

	m, err := migrate.New(sourceURL, dbConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return &Migrator{
		migrate: m,
		logger:  logger,
	}, nil
}

func SourceURL(dir string) (string, error) {
	if dir == "" {
		dir = "migrations"
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve migrations directory: %w", err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

func (m *Migrator) Up() error {
	m.logger.Info("running database migrations")

	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.logger.Info("database migrations completed successfully")
	return nil
}

func (m *Migrator) Down() error {
	m.logger.Info("rolling back database migrations")

	if err := m.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}

	m.logger.Info("database migrations rolled back successfully")
	return nil
}

func (m *Migrator) Steps(n int) error {
	m.logger.Info("running database migrations", "steps", n)

	if err := m.migrate.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migration steps: %w", err)
	}

	m.logger.Info("database migrations completed successfully", "steps", n)
	return nil
}

// Version reports version 0 when no migration has been applied yet.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.migrate.Close()
	return errors.Join(srcErr, dbErr)
}
