package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jjudge-oj/practice/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

// NewMigrator returns a migrator for cfg. An empty sourceURL uses the
// migrations compiled into the binary; otherwise it names a migrate source
// such as file://internal/db/migrations.
func NewMigrator(cfg config.DatabaseConfig, sourceURL string) (*migrate.Migrate, error) {
	dsn := PostgresURL(cfg)
	if sourceURL != "" {
		return migrate.New(sourceURL, dsn)
	}
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", source, dsn)
}

// IgnoreNoChange treats migrate.ErrNoChange as success.
func IgnoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
