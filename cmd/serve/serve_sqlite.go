package serve

import (
	"context"
	"flag"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/cardprice/cmd/env"
	"github.com/sig-0/cardprice/storage/sqlite"
)

type serveSQLiteCfg struct {
	rootCfg *serveCfg
	fs      *flag.FlagSet

	path string
}

// newServeSQLiteCmd creates the serve sqlite command
func newServeSQLiteCmd(rootCfg *serveCfg) *ffcli.Command {
	cfg := &serveSQLiteCfg{
		rootCfg: rootCfg,
		fs:      flag.NewFlagSet("sqlite", flag.ExitOnError),
	}

	cfg.rootCfg.registerFlags(cfg.fs)

	cfg.fs.StringVar(
		&cfg.path,
		"sqlite-path",
		"cardprice.db",
		"the path to the SQLite price history",
	)

	return &ffcli.Command{
		Name:       "sqlite",
		ShortUsage: "serve sqlite [flags]",
		LongHelp:   "Serves the cardprice backend, using a single file SQLite price history",
		FlagSet:    cfg.fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *serveSQLiteCfg) exec(ctx context.Context, _ []string) error {
	logger := newLogger()

	// Load .env
	if err := godotenv.Load(); err != nil {
		logger.Warn("unable to load .env file")
	}

	if err := c.rootCfg.loadConfig(c.fs); err != nil {
		return err
	}

	// Open the DB, applying the schema
	db, err := sqlite.Open(ctx, c.path)
	if err != nil {
		return err
	}

	defer func() {
		if err := db.Close(); err != nil {
			logger.Error(
				"unable to gracefully close DB",
				"err", err,
			)
		}
	}()

	logger.Info(
		"opened SQLite price history",
		"path", c.path,
	)

	return c.rootCfg.run(ctx, logger, sqlite.NewStorage(db))
}
