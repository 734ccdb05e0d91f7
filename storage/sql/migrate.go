package sql

import (
	"context"
	dbsql "database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

// NewMigrator creates a goose migration provider over the embedded schema
func NewMigrator(db *dbsql.DB) (*goose.Provider, error) {
	fsys, err := fs.Sub(SchemaFS, "schema")
	if err != nil {
		return nil, fmt.Errorf("unable to open schema: %w", err)
	}

	return goose.NewProvider(goose.DialectPostgres, db, fsys)
}

// Migrate applies every pending migration
func Migrate(ctx context.Context, db *dbsql.DB) ([]*goose.MigrationResult, error) {
	migrator, err := NewMigrator(db)
	if err != nil {
		return nil, fmt.Errorf("unable to create migrator: %w", err)
	}

	results, err := migrator.Up(ctx)
	if err != nil {
		return results, fmt.Errorf("unable to apply migrations: %w", err)
	}

	return results, nil
}
