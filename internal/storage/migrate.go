package storage

import (
	"errors"
	"fmt"

	"mowakeb/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// Migrate applies (up=true) or rolls back (up=false) the embedded schema
// migrations against the pool's database.
func Migrate(db *DB, up bool, log zerolog.Logger) error {
	if db == nil || db.Pool == nil {
		return errors.New("migrate: database not initialized")
	}
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	sqlDB := stdlib.OpenDBFromPool(db.Pool)
	defer sqlDB.Close()

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: "schema_migrations"})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if up {
		log.Info().Msg("applying migrations")
		err = m.Up()
	} else {
		log.Warn().Msg("rolling back migrations")
		err = m.Down()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Msg("no migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	version, dirty, verr := m.Version()
	if verr == nil {
		log.Info().Uint("version", version).Bool("dirty", dirty).Msg("migrations complete")
	}
	return nil
}
