// Package pricing assembles the pricing stack (adapters, converter,
// aggregator) from the service configuration
package pricing

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/sig-0/cardprice/aggregate"
	"github.com/sig-0/cardprice/catalog"
	"github.com/sig-0/cardprice/config"
	"github.com/sig-0/cardprice/fx"
	"github.com/sig-0/cardprice/provider"
	"github.com/sig-0/cardprice/provider/cardmarket"
	"github.com/sig-0/cardprice/provider/ebay"
	"github.com/sig-0/cardprice/provider/httpx"
	"github.com/sig-0/cardprice/provider/ligapokemon"
	"github.com/sig-0/cardprice/provider/mercadolivre"
	"github.com/sig-0/cardprice/provider/pricecharting"
	"github.com/sig-0/cardprice/provider/shopee"
	"github.com/sig-0/cardprice/relevance"
	"github.com/sig-0/cardprice/storage"
	"github.com/sig-0/cardprice/storage/types"
)

// Stack is the assembled pricing service
type Stack struct {
	Aggregator *aggregate.Aggregator
	Converter  *fx.Converter
	Catalog    *catalog.Memory
}

// New assembles the pricing stack. The storage is optional, and when nil
// aggregations are never persisted
func New(cfg *config.Config, logger *slog.Logger, store storage.Storage) (*Stack, error) {
	cat := catalog.NewMemory()

	if cfg.CatalogPath != "" {
		loaded, err := catalog.ReadFile(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read catalog, %w", err)
		}

		cat = loaded

		logger.Info(
			"loaded card catalog",
			"path", cfg.CatalogPath,
			"cards", cat.Len(),
		)
	}

	converter, err := newConverter(cfg, logger)
	if err != nil {
		return nil, err
	}

	sources, err := newSources(cfg)
	if err != nil {
		return nil, err
	}

	registry, err := provider.NewRegistry(sources...)
	if err != nil {
		return nil, fmt.Errorf("unable to create source registry, %w", err)
	}

	thresholds := relevance.DefaultThresholds()
	thresholds.RequireName = cfg.Pricing.RequireName

	opts := []aggregate.Option{
		aggregate.WithLogger(logger),
		aggregate.WithValidator(relevance.New(relevance.WithThresholds(thresholds))),
		aggregate.WithCurrency(types.Currency(cfg.Pricing.Currency).Normalize()),
		aggregate.WithSourceTimeout(cfg.Pricing.SourceTimeout),
		aggregate.WithMaxListings(cfg.Pricing.MaxListings),
		aggregate.WithMaxConcurrency(cfg.Pricing.MaxConcurrency),
		aggregate.WithSourceMinimums(cfg.Pricing.SourceMinimums),
	}

	if store != nil {
		opts = append(opts, aggregate.WithStorage(store))
	}

	return &Stack{
		Aggregator: aggregate.New(registry, converter, opts...),
		Converter:  converter,
		Catalog:    cat,
	}, nil
}

// newConverter creates the exchange rate converter, with
// exchangerate.host as the primary provider when a key is configured
func newConverter(cfg *config.Config, logger *slog.Logger) (*fx.Converter, error) {
	overrides, err := cfg.FX.ParsedOverrides()
	if err != nil {
		return nil, err
	}

	fxCfg := fx.DefaultConfig()
	fxCfg.Overrides = overrides
	fxCfg.CacheTTL = cfg.FX.CacheTTL
	fxCfg.Timeout = cfg.FX.Timeout

	client := httpx.New(
		httpx.WithTimeout(cfg.FX.Timeout),
		httpx.WithRetries(retries(cfg)),
	)

	providers := make([]fx.Provider, 0, 2)

	if cfg.FX.ExchangerateHostKey != "" {
		providers = append(providers, fx.NewExchangerateHost(
			client,
			cfg.FX.ExchangerateHostURL,
			cfg.FX.ExchangerateHostKey,
		))
	}

	providers = append(providers, fx.NewOpenERAPI(client, cfg.FX.OpenERAPIURL))

	return fx.New(fxCfg, providers, fx.WithLogger(logger)), nil
}

// newSources creates the enabled marketplace adapters, each with its own
// rate limited client
func newSources(cfg *config.Config) ([]provider.Source, error) {
	var (
		src     = cfg.Sources
		sources = make([]provider.Source, 0, 6)
	)

	newClient := func() *httpx.Client {
		return httpx.New(
			httpx.WithTimeout(cfg.Pricing.SourceTimeout),
			httpx.WithRetries(retries(cfg)),
			httpx.WithMinInterval(src.MinInterval),
		)
	}

	liga, err := ligapokemon.New(newClient(), src.LigaPokemonURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create ligapokemon source, %w", err)
	}

	cm, err := cardmarket.New(newClient(), src.CardmarketURL, src.CardmarketLang)
	if err != nil {
		return nil, fmt.Errorf("unable to create cardmarket source, %w", err)
	}

	pc, err := pricecharting.New(newClient(), src.PriceChartingURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create pricecharting source, %w", err)
	}

	sources = append(
		sources,
		mercadolivre.New(newClient(), src.MercadoLivreURL, src.MercadoLivreSite, src.MercadoLivreToken),
		liga,
		ebay.New(newClient(), src.EbayURL, src.EbayMarketplace, ebay.Credentials{
			ClientID:     src.EbayClientID,
			ClientSecret: src.EbayClientSecret,
		}),
		cm,
		pc,
		shopee.New(newClient(), src.ShopeeURL),
	)

	if len(cfg.Pricing.Enabled) == 0 {
		return sources, nil
	}

	enabled := make([]string, 0, len(cfg.Pricing.Enabled))
	for _, id := range cfg.Pricing.Enabled {
		enabled = append(enabled, strings.ToLower(strings.TrimSpace(id)))
	}

	slices.Sort(enabled)
	enabled = slices.Compact(enabled)

	filtered := slices.DeleteFunc(sources, func(s provider.Source) bool {
		return !slices.Contains(enabled, s.ID().String())
	})

	if len(filtered) != len(enabled) {
		return nil, fmt.Errorf("%w: %s", provider.ErrUnknownSource, strings.Join(cfg.Pricing.Enabled, ","))
	}

	return filtered, nil
}

// retries maps the configured retry count, where negative disables retries
func retries(cfg *config.Config) int {
	return max(cfg.Sources.Retries, 0)
}
