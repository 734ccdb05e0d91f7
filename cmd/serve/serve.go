package serve

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/cardprice/cmd/env"
	"github.com/sig-0/cardprice/cmd/pricing"
	"github.com/sig-0/cardprice/config"
	"github.com/sig-0/cardprice/ingest"
	"github.com/sig-0/cardprice/server"
	"github.com/sig-0/cardprice/storage"
	"github.com/sig-0/cardprice/storage/types"
)

// serveCfg wraps the serve configuration
type serveCfg struct {
	config *config.Config

	configPath string
}

// NewServeCmd creates the serve subcommand
func NewServeCmd() *ffcli.Command {
	cfg := &serveCfg{
		config: config.DefaultConfig(),
	}

	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg.registerFlags(fs)

	cmd := &ffcli.Command{
		Name:       "serve",
		ShortUsage: "serve <subcommand> [flags]",
		LongHelp:   "Serves the cardprice backend",
		FlagSet:    fs,
		Exec: func(_ context.Context, _ []string) error {
			return flag.ErrHelp
		},
		Options: []ff.Option{
			// Allow using ENV variables
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}

	cmd.Subcommands = []*ffcli.Command{
		newServeSQLCmd(cfg),
		newServeSQLiteCmd(cfg),
		newServeMemoryCmd(cfg),
	}

	return cmd
}

func (c *serveCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(
		&c.config.ListenAddress,
		"listen",
		config.DefaultListenAddress,
		"the IP:PORT URL for the server",
	)

	fs.StringVar(
		&c.configPath,
		"config",
		"",
		"the path to the server TOML configuration, if any",
	)

	fs.StringVar(
		&c.config.CatalogPath,
		"catalog",
		"",
		"the path to the TOML card catalog, if any",
	)

	fs.StringVar(
		&c.config.Pricing.Currency,
		"currency",
		c.config.Pricing.Currency,
		"the default target currency",
	)

	fs.DurationVar(
		&c.config.Pricing.RequestTimeout,
		"request-timeout",
		config.DefaultRequestTimeout,
		"the deadline of a single aggregation",
	)

	fs.DurationVar(
		&c.config.Pricing.SourceTimeout,
		"source-timeout",
		config.DefaultSourceTimeout,
		"the deadline of a single marketplace search",
	)

	fs.IntVar(
		&c.config.Pricing.MaxListings,
		"max-listings",
		config.DefaultMaxListings,
		"the maximum number of listings reported per aggregation",
	)
}

// loadConfig reads the TOML configuration, if any. Values given as
// flags or ENV variables take precedence over the file
func (c *serveCfg) loadConfig(fs *flag.FlagSet) error {
	if c.configPath == "" {
		return nil
	}

	explicit := make(map[string]string)

	fs.Visit(func(f *flag.Flag) {
		explicit[f.Name] = f.Value.String()
	})

	if err := config.ReadInto(c.configPath, c.config); err != nil {
		return fmt.Errorf("unable to read server config, %w", err)
	}

	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("unable to apply flag %q, %w", name, err)
		}
	}

	return nil
}

// run serves the HTTP API over the given storage, along with the
// watched card refresh jobs, until the process is signaled
func (c *serveCfg) run(ctx context.Context, logger *slog.Logger, store storage.Storage) error {
	cfg := c.config

	if err := config.ValidateConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration, %w", err)
	}

	stack, err := pricing.New(cfg, logger, store)
	if err != nil {
		return fmt.Errorf("unable to create pricing stack, %w", err)
	}

	// Create the refresh service for the watched cards
	orchestrator := ingest.New(
		store,
		ingest.WithLogger(logger),
		ingest.WithJobTimeout(cfg.Pricing.RequestTimeout),
	)

	for _, cardID := range cfg.Watch.Cards {
		if _, err = stack.Catalog.Card(ctx, cardID); err != nil {
			return fmt.Errorf("unable to watch card %q, %w", cardID, err)
		}

		job := ingest.NewCardJob(
			stack.Aggregator,
			stack.Catalog,
			cardID,
			types.Currency(cfg.Pricing.Currency).Normalize(),
			cfg.Watch.Interval,
			cfg.Pricing.SourceMinimums,
		)

		if err = orchestrator.Register(job); err != nil {
			return fmt.Errorf("unable to register job: %w", err)
		}
	}

	// Create the server instance
	s, err := server.New(
		stack.Aggregator,
		store,
		server.WithLogger(logger),
		server.WithConfig(cfg),
		server.WithCatalog(stack.Catalog),
		server.WithRates(stack.Converter),
	)
	if err != nil {
		return fmt.Errorf("unable to create server, %w", err)
	}

	runCtx, cancelFn := signal.NotifyContext(
		ctx,
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	defer cancelFn()

	group, gCtx := errgroup.WithContext(runCtx)

	// Start the HTTP server
	group.Go(func() error {
		return s.Serve(gCtx)
	})

	// Start the refresh service
	if len(cfg.Watch.Cards) > 0 {
		group.Go(func() error {
			return orchestrator.Start(gCtx)
		})
	}

	return group.Wait()
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
