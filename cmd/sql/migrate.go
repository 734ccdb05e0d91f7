package sql

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/cardprice/cmd/env"
	dbpkg "github.com/sig-0/cardprice/storage/sql"
)

// migrateCfg wraps the migrate configuration
type migrateCfg struct {
	rootCfg *sqlCfg

	status bool
}

// newMigrateCmd creates the migrate command
func newMigrateCmd(rootCfg *sqlCfg) *ffcli.Command {
	cfg := &migrateCfg{
		rootCfg: rootCfg,
	}

	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	rootCfg.RegisterFlags(fs)

	fs.BoolVar(
		&cfg.status,
		"status",
		false,
		"only print the migration status",
	)

	return &ffcli.Command{
		Name:       "migrate",
		ShortUsage: "sql migrate [flags]",
		LongHelp:   "Applies the pending price history migrations",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *migrateCfg) exec(ctx context.Context, _ []string) error {
	// Load .env
	if err := godotenv.Load(); err != nil {
		fmt.Println("Unable to load .env file")
	}

	dsn := os.Getenv(env.Prefix + env.DBURLSuffix)
	if dsn == "" {
		return fmt.Errorf("missing %s", env.Prefix+env.DBURLSuffix)
	}

	// Open the DB
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}

	defer func() {
		if err = db.Close(); err != nil {
			fmt.Printf("Unable to gracefully close DB: %s\n", err.Error())
		}
	}()

	// Ping the DB
	if err = db.PingContext(ctx); err != nil {
		return fmt.Errorf("unable to ping DB: %w", err)
	}

	if c.status {
		migrator, err := dbpkg.NewMigrator(db)
		if err != nil {
			return err
		}

		statuses, err := migrator.Status(ctx)
		if err != nil {
			return fmt.Errorf("unable to fetch migration status: %w", err)
		}

		for _, s := range statuses {
			fmt.Printf("Migration %d (%s): %s\n", s.Source.Version, s.Source.Path, s.State)
		}

		return nil
	}

	fmt.Println("Running migrations...")

	results, err := dbpkg.Migrate(ctx, db)
	for _, r := range results {
		fmt.Printf("Migration %d (%s) applied in %s\n", r.Source.Version, r.Source.Path, r.Duration)
	}

	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("No pending migrations")

		return nil
	}

	fmt.Println("All migrations complete!")

	return nil
}
