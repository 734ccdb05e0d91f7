// Package config defines the service configuration, read from TOML
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/pelletier/go-toml"

	"github.com/sig-0/cardprice/fx"
	"github.com/sig-0/cardprice/provider/cardmarket"
	"github.com/sig-0/cardprice/provider/currencies"
	"github.com/sig-0/cardprice/provider/ebay"
	"github.com/sig-0/cardprice/provider/ligapokemon"
	"github.com/sig-0/cardprice/provider/mercadolivre"
	"github.com/sig-0/cardprice/provider/pricecharting"
	"github.com/sig-0/cardprice/provider/shopee"
	"github.com/sig-0/cardprice/storage/types"
)

const (
	DefaultListenAddress = "0.0.0.0:8080"

	DefaultRequestTimeout = 60 * time.Second
	DefaultSourceTimeout  = 30 * time.Second
	DefaultMaxListings    = 40
	DefaultWatchInterval  = 6 * time.Hour
	DefaultMinInterval    = 250 * time.Millisecond

	// minWatchInterval keeps watch jobs from hammering the marketplaces
	minWatchInterval = time.Minute
)

var (
	ErrInvalidListenAddress = errors.New("invalid listen address")
	ErrUnknownCurrency      = errors.New("unknown currency")
	ErrInvalidTimeout       = errors.New("invalid timeout")
	ErrInvalidMaxListings   = errors.New("invalid max listings")
	ErrInvalidWatchInterval = errors.New("invalid watch interval")
	ErrMissingCatalog       = errors.New("watched cards require a catalog")
)

var listenAddressRegex = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}:\d+$`)

// Config defines the base-level service configuration
type Config struct {
	// The associated CORS config, if any
	CORSConfig *CORS `toml:"cors_config"`

	// The address at which the server will be served.
	// Format should be: <IP>:<PORT>
	ListenAddress string `toml:"listen_address"`

	// The path to the TOML card catalog, if any
	CatalogPath string `toml:"catalog_path"`

	Pricing Pricing `toml:"pricing"`
	FX      FX      `toml:"fx"`
	Sources Sources `toml:"sources"`
	Watch   Watch   `toml:"watch"`
}

// CORS is the HTTP server CORS configuration
type CORS struct {
	AllowedOrigins []string `toml:"allowed_origins"`
	AllowedMethods []string `toml:"allowed_methods"`
	AllowedHeaders []string `toml:"allowed_headers"`
}

// Pricing configures the aggregation
type Pricing struct {
	// Currency is the default target currency
	Currency string `toml:"currency"`

	// Enabled lists the marketplaces searched by default (all when empty)
	Enabled []string `toml:"enabled"`

	// RequestTimeout bounds a whole aggregation
	RequestTimeout time.Duration `toml:"request_timeout"`

	// SourceTimeout bounds a single marketplace
	SourceTimeout time.Duration `toml:"source_timeout"`

	MaxListings    int  `toml:"max_listings"`
	MaxConcurrency int  `toml:"max_concurrency"`
	SourceMinimums bool `toml:"source_minimums"`
	RequireName    bool `toml:"require_name"`
}

// FX configures the currency converter
type FX struct {
	// Overrides are manual rates keyed by pair ("USD_BRL" = 5.25)
	Overrides map[string]float64 `toml:"overrides"`

	CacheTTL time.Duration `toml:"cache_ttl"`
	Timeout  time.Duration `toml:"timeout"`

	ExchangerateHostURL string `toml:"exchangerate_host_url"`
	ExchangerateHostKey string `toml:"exchangerate_host_key"`
	OpenERAPIURL        string `toml:"open_er_api_url"`
}

// Sources configures the marketplace adapters
type Sources struct {
	MercadoLivreURL   string `toml:"mercadolivre_url"`
	MercadoLivreSite  string `toml:"mercadolivre_site"`
	MercadoLivreToken string `toml:"mercadolivre_token"`

	EbayURL          string `toml:"ebay_url"`
	EbayMarketplace  string `toml:"ebay_marketplace"`
	EbayClientID     string `toml:"ebay_client_id"`
	EbayClientSecret string `toml:"ebay_client_secret"`

	LigaPokemonURL   string `toml:"ligapokemon_url"`
	CardmarketURL    string `toml:"cardmarket_url"`
	CardmarketLang   string `toml:"cardmarket_lang"`
	PriceChartingURL string `toml:"pricecharting_url"`
	ShopeeURL        string `toml:"shopee_url"`

	// MinInterval spaces out requests to the same marketplace
	MinInterval time.Duration `toml:"min_interval"`

	// Retries is the number of retries on transient failures.
	// Negative disables retries
	Retries int `toml:"retries"`
}

// Watch configures the scheduled price history refresh
type Watch struct {
	// Cards are the catalog ids refreshed periodically
	Cards []string `toml:"cards"`

	Interval time.Duration `toml:"interval"`
}

// DefaultConfig returns the default service configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddress: DefaultListenAddress,
		CORSConfig:    DefaultCORSConfig(),
		Pricing: Pricing{
			Currency:       currencies.BRL.String(),
			RequestTimeout: DefaultRequestTimeout,
			SourceTimeout:  DefaultSourceTimeout,
			MaxListings:    DefaultMaxListings,
		},
		FX: FX{
			Overrides:           make(map[string]float64),
			CacheTTL:            fx.DefaultCacheTTL,
			Timeout:             fx.DefaultTimeout,
			ExchangerateHostURL: fx.ExchangerateHostURL,
			OpenERAPIURL:        fx.OpenERAPIURL,
		},
		Sources: Sources{
			MercadoLivreURL:  mercadolivre.DefaultURL,
			MercadoLivreSite: mercadolivre.DefaultSite,
			EbayURL:          ebay.DefaultURL,
			EbayMarketplace:  ebay.DefaultMarketplace,
			LigaPokemonURL:   ligapokemon.DefaultURL,
			CardmarketURL:    cardmarket.DefaultURL,
			CardmarketLang:   "en",
			PriceChartingURL: pricecharting.DefaultURL,
			ShopeeURL:        shopee.DefaultURL,
			MinInterval:      DefaultMinInterval,
			Retries:          3,
		},
		Watch: Watch{
			Interval: DefaultWatchInterval,
		},
	}
}

// DefaultCORSConfig returns the default CORS configuration
func DefaultCORSConfig() *CORS {
	return &CORS{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}
}

// ValidateConfig validates the service configuration
func ValidateConfig(config *Config) error {
	// Validate the listen address
	if !listenAddressRegex.MatchString(config.ListenAddress) {
		return ErrInvalidListenAddress
	}

	if !currencies.IsKnown(types.Currency(config.Pricing.Currency).Normalize()) {
		return fmt.Errorf("%w: %q", ErrUnknownCurrency, config.Pricing.Currency)
	}

	if config.Pricing.RequestTimeout <= 0 || config.Pricing.SourceTimeout <= 0 {
		return ErrInvalidTimeout
	}

	if config.Pricing.MaxListings <= 0 {
		return ErrInvalidMaxListings
	}

	if _, err := config.FX.ParsedOverrides(); err != nil {
		return err
	}

	if len(config.Watch.Cards) > 0 {
		if config.CatalogPath == "" {
			return ErrMissingCatalog
		}

		if config.Watch.Interval < minWatchInterval {
			return fmt.Errorf("%w: %s", ErrInvalidWatchInterval, config.Watch.Interval)
		}
	}

	return nil
}

// ParsedOverrides returns the manual rates keyed by currency pair
func (f FX) ParsedOverrides() (map[fx.Pair]float64, error) {
	out := make(map[fx.Pair]float64, len(f.Overrides))

	for key, rate := range f.Overrides {
		parsed, err := fx.ParseOverrides(fmt.Sprintf("%s=%g", key, rate))
		if err != nil {
			return nil, err
		}

		for pair, r := range parsed {
			out[pair] = r
		}
	}

	return out, nil
}

// Read reads the configuration from the given path, on top of the defaults
func Read(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := ReadInto(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ReadInto reads the configuration from the given path into cfg.
// Keys missing from the file keep their current value
func ReadInto(path string, cfg *Config) error {
	// Read the config file
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// Parse it
	if err := toml.Unmarshal(content, cfg); err != nil {
		return fmt.Errorf("unable to parse config: %w", err)
	}

	applyDefaults(cfg)

	return nil
}

// applyDefaults fills the unset values with their defaults
func applyDefaults(cfg *Config) {
	def := DefaultConfig()

	setDefault(&cfg.ListenAddress, def.ListenAddress)

	if cfg.CORSConfig == nil {
		cfg.CORSConfig = def.CORSConfig
	}

	setDefault(&cfg.Pricing.Currency, def.Pricing.Currency)
	setDefault(&cfg.Pricing.RequestTimeout, def.Pricing.RequestTimeout)
	setDefault(&cfg.Pricing.SourceTimeout, def.Pricing.SourceTimeout)
	setDefault(&cfg.Pricing.MaxListings, def.Pricing.MaxListings)

	if cfg.FX.Overrides == nil {
		cfg.FX.Overrides = def.FX.Overrides
	}

	setDefault(&cfg.FX.CacheTTL, def.FX.CacheTTL)
	setDefault(&cfg.FX.Timeout, def.FX.Timeout)
	setDefault(&cfg.FX.ExchangerateHostURL, def.FX.ExchangerateHostURL)
	setDefault(&cfg.FX.OpenERAPIURL, def.FX.OpenERAPIURL)

	setDefault(&cfg.Sources.MercadoLivreURL, def.Sources.MercadoLivreURL)
	setDefault(&cfg.Sources.MercadoLivreSite, def.Sources.MercadoLivreSite)
	setDefault(&cfg.Sources.EbayURL, def.Sources.EbayURL)
	setDefault(&cfg.Sources.EbayMarketplace, def.Sources.EbayMarketplace)
	setDefault(&cfg.Sources.LigaPokemonURL, def.Sources.LigaPokemonURL)
	setDefault(&cfg.Sources.CardmarketURL, def.Sources.CardmarketURL)
	setDefault(&cfg.Sources.CardmarketLang, def.Sources.CardmarketLang)
	setDefault(&cfg.Sources.PriceChartingURL, def.Sources.PriceChartingURL)
	setDefault(&cfg.Sources.ShopeeURL, def.Sources.ShopeeURL)
	setDefault(&cfg.Sources.MinInterval, def.Sources.MinInterval)
	setDefault(&cfg.Sources.Retries, def.Sources.Retries)

	setDefault(&cfg.Watch.Interval, def.Watch.Interval)
}

func setDefault[T comparable](v *T, def T) {
	var zero T

	if *v == zero {
		*v = def
	}
}
