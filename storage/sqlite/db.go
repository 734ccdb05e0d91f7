// Package sqlite is a single file price history, for deployments without
// a Postgres server
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // pure Go driver
)

// Memory opens a private in-memory database
const Memory = ":memory:"

// SchemaFS contains all goose migration files under schema/
//
//go:embed schema/*.sql
var SchemaFS embed.FS

// Open opens the database at path and applies the pending migrations
func Open(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}

	if path == Memory {
		// Every connection would get its own empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetConnMaxIdleTime(10 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("unable to ping sqlite database: %w", err)
	}

	fsys, err := fs.Sub(SchemaFS, "schema")
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("unable to open schema: %w", err)
	}

	migrator, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("unable to create migrator: %w", err)
	}

	if _, err := migrator.Up(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("unable to apply migrations: %w", err)
	}

	return db, nil
}

func dsn(path string) string {
	if path == Memory {
		return path
	}

	return path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"
}
