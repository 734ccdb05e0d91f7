package serve

import (
	"context"
	"flag"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/cardprice/cmd/env"
	"github.com/sig-0/cardprice/storage/memory"
)

type serveMemoryCfg struct {
	rootCfg *serveCfg
	fs      *flag.FlagSet
}

// newServeMemoryCmd creates the serve memory command.
func newServeMemoryCmd(rootCfg *serveCfg) *ffcli.Command {
	cfg := &serveMemoryCfg{
		rootCfg: rootCfg,
		fs:      flag.NewFlagSet("memory", flag.ExitOnError),
	}

	cfg.rootCfg.registerFlags(cfg.fs)

	return &ffcli.Command{
		Name:       "memory",
		ShortUsage: "serve memory [flags]",
		LongHelp:   "Serves the cardprice backend, using an in-memory price history",
		FlagSet:    cfg.fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *serveMemoryCfg) exec(ctx context.Context, _ []string) error {
	logger := newLogger()

	// Load .env
	if err := godotenv.Load(); err != nil {
		logger.Warn("unable to load .env file")
	}

	if err := c.rootCfg.loadConfig(c.fs); err != nil {
		return err
	}

	return c.rootCfg.run(ctx, logger, memory.NewStorage())
}
