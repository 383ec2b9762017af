package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/iliyamo/seminar-hall-booking/internal/config"
)

//go:embed migrations/mysql/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate applies the embedded migrations for the configured driver.  It
// opens its own connection so that closing the migrator never touches the
// application pool.
func Migrate(cfg config.Config) error {
	src, err := iofs.New(migrationsFS, "migrations/"+dialect(cfg))
	if err != nil {
		return fmt.Errorf("migrations source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrationURL(cfg))
	if err != nil {
		return fmt.Errorf("migrate init: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func dialect(cfg config.Config) string {
	if cfg.DBDriver == "sqlite" {
		return "sqlite"
	}
	return "mysql"
}

func migrationURL(cfg config.Config) string {
	if cfg.DBDriver == "sqlite" {
		return "sqlite://" + cfg.DBPath
	}
	return "mysql://" + mysqlDSN(cfg, true)
}
