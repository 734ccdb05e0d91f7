package serve

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/cardprice/cmd/env"
	"github.com/sig-0/cardprice/storage/sql"
)

type serveSQLCfg struct {
	rootCfg *serveCfg
	fs      *flag.FlagSet

	migrate bool
}

// newServeSQLCmd creates the serve sql command
func newServeSQLCmd(rootCfg *serveCfg) *ffcli.Command {
	cfg := &serveSQLCfg{
		rootCfg: rootCfg,
		fs:      flag.NewFlagSet("sql", flag.ExitOnError),
	}

	cfg.rootCfg.registerFlags(cfg.fs)

	cfg.fs.BoolVar(
		&cfg.migrate,
		"migrate",
		false,
		"apply the pending schema migrations on boot",
	)

	return &ffcli.Command{
		Name:       "sql",
		ShortUsage: "serve sql [flags]",
		LongHelp:   "Serves the cardprice backend, using a Postgres price history",
		FlagSet:    cfg.fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

// exec executes the server serve command
func (c *serveSQLCfg) exec(ctx context.Context, _ []string) error {
	// Create a new logger
	logger := newLogger()

	// Load .env
	if err := godotenv.Load(); err != nil {
		logger.Warn("unable to load .env file")
	}

	if err := c.rootCfg.loadConfig(c.fs); err != nil {
		return err
	}

	// DB
	dsn := os.Getenv(env.Prefix + env.DBURLSuffix)
	if dsn == "" {
		return fmt.Errorf("missing %s", env.Prefix+env.DBURLSuffix)
	}

	// Open the DB connection pool
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("unable to open DB connection: %w", err)
	}

	defer pool.Close()

	// Check DB reachability
	pingCtx, cancelPing := context.WithTimeout(ctx, time.Second*5)
	defer cancelPing()

	if err = pool.Ping(pingCtx); err != nil {
		return fmt.Errorf("unable to reach DB (ping): %w", err)
	}

	logger.Info("DB ping success")

	if c.migrate {
		db := stdlib.OpenDBFromPool(pool)

		results, err := sql.Migrate(ctx, db)
		if err != nil {
			return err
		}

		logger.Info(
			"DB migrations applied",
			"count", len(results),
		)

		if err = db.Close(); err != nil {
			logger.Warn(
				"unable to close migration DB handle",
				"err", err,
			)
		}
	}

	// Create an SQL store
	return c.rootCfg.run(ctx, logger, sql.NewStorage(pool))
}
