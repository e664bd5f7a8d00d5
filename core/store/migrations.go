package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"nearmiss-dashboard/core/utils"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func newMigrationProvider(db *sql.DB) (*goose.Provider, error) {
	fsys, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return nil, err
	}
	dialect := database.DialectSQLite3
	if DialectOf(db) == DialectPostgres {
		dialect = database.DialectPostgres
	}
	return goose.NewProvider(dialect, db, fsys)
}

// ApplyMigrations brings the schema up to the latest embedded version.
func ApplyMigrations(ctx context.Context, db *sql.DB, logger *utils.Logger) error {
	provider, err := newMigrationProvider(db)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migrations up: %w", err)
	}
	if logger != nil {
		for _, res := range results {
			if res == nil || res.Source == nil {
				continue
			}
			logger.Debugf("migration %d applied in %s", res.Source.Version, res.Duration)
		}
		logger.Printf("migrations applied (%s, %d new)", DialectOf(db), len(results))
	}
	return nil
}

// MigrationVersion reports the current schema version.
func MigrationVersion(ctx context.Context, db *sql.DB) (int64, error) {
	provider, err := newMigrationProvider(db)
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}
