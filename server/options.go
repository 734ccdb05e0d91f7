package server

import (
	"log/slog"

	"github.com/sig-0/cardprice/catalog"
	"github.com/sig-0/cardprice/config"
)

type Option func(s *Server)

// WithLogger specifies the logger for the server
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithConfig specifies the config for the server
func WithConfig(c *config.Config) Option {
	return func(s *Server) {
		s.config = c
	}
}

// WithCatalog specifies the card catalog backing the /v1/cards routes
func WithCatalog(c catalog.Catalog) Option {
	return func(s *Server) {
		s.catalog = c
	}
}

// WithRates exposes the currency converter on /v1/rates
func WithRates(r RateQuoter) Option {
	return func(s *Server) {
		s.rates = r
	}
}
