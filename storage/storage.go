package storage

import (
	"context"
	"errors"

	"github.com/sig-0/cardprice/storage/types"
)

// ErrNotFound is returned when no snapshot matches a lookup
var ErrNotFound = errors.New("not found")

// Storage is an abstraction over the append-only price history
type Storage interface {
	// AppendSnapshot appends the given price snapshot
	AppendSnapshot(context.Context, *types.PriceSnapshot) error

	// Snapshots lists the snapshots matching the query, newest first
	Snapshots(context.Context, *types.SnapshotQuery) (*types.Page[*types.PriceSnapshot], error)

	// LatestSnapshot fetches the newest snapshot for the card, optionally
	// restricted to a source tag. Returns ErrNotFound when there is none
	LatestSnapshot(ctx context.Context, cardID string, source *string) (*types.PriceSnapshot, error)

	// ListSources lists all snapshot source tags present
	ListSources(context.Context) ([]string, error)
}

const (
	// DefaultLimit is the page size used when a query sets none
	DefaultLimit int32 = 100

	// MaxLimit caps the page size
	MaxLimit int32 = 500
)

// Limit normalizes a requested page size
func Limit(l int32) int32 {
	switch {
	case l <= 0:
		return DefaultLimit
	case l > MaxLimit:
		return MaxLimit
	default:
		return l
	}
}
