// Package quote is the one-shot price lookup command
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/sig-0/cardprice/aggregate"
	"github.com/sig-0/cardprice/cmd/env"
	"github.com/sig-0/cardprice/cmd/pricing"
	"github.com/sig-0/cardprice/config"
	"github.com/sig-0/cardprice/storage/types"
)

var errMissingCard = errors.New("either -card or -name is required")

// quoteCfg wraps the quote configuration
type quoteCfg struct {
	config *config.Config
	output io.Writer

	configPath string
	cardID     string
	name       string
	nameLocal  string
	set        string
	setLocal   string
	number     string
	currency   string
	sources    string
	verbose    bool
}

// NewQuoteCmd creates the quote subcommand
func NewQuoteCmd() *ffcli.Command {
	cfg := &quoteCfg{
		config: config.DefaultConfig(),
		output: os.Stdout,
	}

	fs := flag.NewFlagSet("quote", flag.ExitOnError)
	cfg.registerFlags(fs)

	return &ffcli.Command{
		Name:       "quote",
		ShortUsage: "quote [flags]",
		LongHelp:   "Prints the fair price of a single card, as JSON",
		FlagSet:    fs,
		Exec:       cfg.exec,
		Options: []ff.Option{
			ff.WithEnvVars(),
			ff.WithEnvVarPrefix(env.Prefix),
		},
	}
}

func (c *quoteCfg) registerFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "the path to the TOML configuration, if any")
	fs.StringVar(&c.config.CatalogPath, "catalog", "", "the path to the TOML card catalog, if any")
	fs.StringVar(&c.cardID, "card", "", "the catalog id of the card")
	fs.StringVar(&c.name, "name", "", "the English card name")
	fs.StringVar(&c.nameLocal, "name-local", "", "the localized card name")
	fs.StringVar(&c.set, "set", "", "the English set name")
	fs.StringVar(&c.setLocal, "set-local", "", "the localized set name")
	fs.StringVar(&c.number, "number", "", "the printed collector number (X/Y or X)")
	fs.StringVar(&c.currency, "currency", "", "the target currency (defaults to the configured one)")
	fs.StringVar(&c.sources, "sources", "", "comma separated marketplaces to search (all when empty)")
	fs.BoolVar(&c.verbose, "verbose", false, "log the search progress to stderr")
}

func (c *quoteCfg) exec(ctx context.Context, _ []string) error {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if c.verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	// Load .env
	if err := godotenv.Load(); err != nil {
		logger.Debug("unable to load .env file")
	}

	if c.configPath != "" {
		catalogPath := c.config.CatalogPath

		if err := config.ReadInto(c.configPath, c.config); err != nil {
			return fmt.Errorf("unable to read config, %w", err)
		}

		if catalogPath != "" {
			c.config.CatalogPath = catalogPath
		}
	}

	if err := config.ValidateConfig(c.config); err != nil {
		return fmt.Errorf("invalid configuration, %w", err)
	}

	req, err := c.request()
	if err != nil {
		return err
	}

	stack, err := pricing.New(c.config, logger, nil)
	if err != nil {
		return err
	}

	if req.CardID != "" {
		card, err := stack.Catalog.Card(ctx, req.CardID)
		if err != nil {
			return fmt.Errorf("unable to fetch card %q, %w", req.CardID, err)
		}

		req.Card = *card
	}

	runCtx, cancelFn := context.WithTimeout(ctx, c.config.Pricing.RequestTimeout)
	defer cancelFn()

	res := stack.Aggregator.Aggregate(runCtx, req)

	encoder := json.NewEncoder(c.output)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(res); err != nil {
		return fmt.Errorf("unable to write result, %w", err)
	}

	if !res.Resolved() {
		return fmt.Errorf("price unresolved: %s", res.Reason)
	}

	return nil
}

// request builds the aggregation request from the flags
func (c *quoteCfg) request() (*aggregate.Request, error) {
	req := &aggregate.Request{
		CardID: strings.TrimSpace(c.cardID),
	}

	if req.CardID == "" {
		if strings.TrimSpace(c.name) == "" && strings.TrimSpace(c.nameLocal) == "" {
			return nil, errMissingCard
		}

		number, err := types.ParsePrintedNumber(c.number)
		if err != nil {
			return nil, err
		}

		req.Card = types.CardIdentity{
			Name:          strings.TrimSpace(c.name),
			LocalizedName: strings.TrimSpace(c.nameLocal),
			Set:           strings.TrimSpace(c.set),
			LocalizedSet:  strings.TrimSpace(c.setLocal),
			Number:        number,
		}
	}

	if c.currency != "" {
		req.Currency = types.Currency(c.currency).Normalize()
	}

	for _, s := range strings.Split(c.sources, ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			req.Sources = append(req.Sources, types.Source(s))
		}
	}

	return req, nil
}
