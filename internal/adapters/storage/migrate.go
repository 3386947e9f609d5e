package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tuyosu/pprating/internal/config"
	"github.com/tuyosu/pprating/pkg/logger"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies the embedded schema for the store's backend up to the
// latest version. It is a no-op when the schema is current.
func (s *Store) Migrate(ctx context.Context) error {
	var (
		driver database.Driver
		err    error
	)
	switch s.backend {
	case config.BackendMySQL:
		driver, err = mysql.WithInstance(s.db, &mysql.Config{})
	case config.BackendPostgres:
		driver, err = pgxmigrate.WithInstance(s.db, &pgxmigrate.Config{})
	case config.BackendSQLite:
		driver, err = sqlite.WithInstance(s.db, &sqlite.Config{})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedBackend, s.backend)
	}
	if err != nil {
		return fail("migrate driver", err)
	}

	sub, err := fs.Sub(migrationsFS, "migrations/"+s.backend)
	if err != nil {
		return fail("migrate source", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fail("migrate source", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, s.backend, driver)
	if err != nil {
		return fail("migrate init", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fail("migrate version", err)
	}
	if dirty {
		return fmt.Errorf("%w: schema is dirty at version %d", ErrStorage, version)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			s.log.Debug(ctx, "schema up to date", logger.Int("version", int(version)))
			return nil
		}
		return fail("migrate up", err)
	}
	newVersion, _, _ := m.Version()
	s.log.Info(ctx, "schema migrated",
		logger.Int("from", int(version)),
		logger.Int("to", int(newVersion)))
	return nil
}
