package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/sig-0/cardprice/query"
	"github.com/sig-0/cardprice/storage/types"
)

var (
	errInvalidSource   = errors.New("invalid source")
	errDuplicateSource = errors.New("duplicate source")
	ErrUnknownSource   = errors.New("unknown source")
)

// Source is a single marketplace adapter
type Source interface {
	// ID returns the stable identifier of the marketplace
	ID() types.Source

	// Profile describes how queries for this marketplace are built
	Profile() query.Profile

	// Search runs a single query. On failure it returns the listings parsed
	// so far along with the error; it must not panic
	Search(ctx context.Context, q string) ([]*types.Listing, error)
}

// Registry is the fixed set of adapters, built once at startup
type Registry struct {
	byID    map[types.Source]Source
	sources []Source
}

// NewRegistry creates a registry from the given adapters, in order
func NewRegistry(sources ...Source) (*Registry, error) {
	r := &Registry{
		byID:    make(map[types.Source]Source, len(sources)),
		sources: make([]Source, 0, len(sources)),
	}

	for _, s := range sources {
		if s == nil || s.ID() == "" {
			return nil, errInvalidSource
		}

		if _, ok := r.byID[s.ID()]; ok {
			return nil, fmt.Errorf("%w: %s", errDuplicateSource, s.ID())
		}

		r.byID[s.ID()] = s
		r.sources = append(r.sources, s)
	}

	return r, nil
}

// Sources returns all registered adapters, in registration order
func (r *Registry) Sources() []Source {
	out := make([]Source, len(r.sources))
	copy(out, r.sources)

	return out
}

// IDs returns the registered adapter identifiers
func (r *Registry) IDs() []types.Source {
	out := make([]types.Source, 0, len(r.sources))

	for _, s := range r.sources {
		out = append(out, s.ID())
	}

	return out
}

// Select returns the adapters for the given IDs. No IDs selects all
func (r *Registry) Select(ids ...types.Source) ([]Source, error) {
	if len(ids) == 0 {
		return r.Sources(), nil
	}

	out := make([]Source, 0, len(ids))
	seen := make(map[types.Source]struct{}, len(ids))

	for _, id := range ids {
		s, ok := r.byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSource, id)
		}

		if _, dup := seen[id]; dup {
			continue
		}

		seen[id] = struct{}{}
		out = append(out, s)
	}

	return out, nil
}

// Keep filters out listings that can't enter the pricing pipeline,
// stamping the source on the rest
func Keep(src types.Source, listings []*types.Listing) []*types.Listing {
	out := make([]*types.Listing, 0, len(listings))

	for _, l := range listings {
		if !l.Valid() {
			continue
		}

		l.Source = src
		out = append(out, l)
	}

	return out
}
