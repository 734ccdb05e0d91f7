package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/sig-0/cardprice/storage"
	"github.com/sig-0/cardprice/storage/types"
)

// Storage keeps the price history in process memory
type Storage struct {
	byCard map[string][]types.PriceSnapshot

	mu sync.RWMutex
}

func NewStorage() *Storage {
	return &Storage{
		byCard: make(map[string][]types.PriceSnapshot),
	}
}

func (s *Storage) AppendSnapshot(_ context.Context, snapshot *types.PriceSnapshot) error {
	elem := *snapshot
	elem.CapturedAt = elem.CapturedAt.UTC()

	s.mu.Lock()
	s.byCard[elem.CardID] = append(s.byCard[elem.CardID], elem)
	s.mu.Unlock()

	return nil
}

func (s *Storage) Snapshots(
	_ context.Context,
	query *types.SnapshotQuery,
) (*types.Page[*types.PriceSnapshot], error) {
	s.mu.RLock()

	out := make([]*types.PriceSnapshot, 0)

	for _, v := range s.byCard[query.CardID] {
		if query.Source != nil && v.Source != *query.Source {
			continue
		}

		if query.From != nil && v.CapturedAt.Before(query.From.UTC()) {
			continue
		}

		if query.To != nil && v.CapturedAt.After(query.To.UTC()) {
			continue
		}

		cp := v
		out = append(out, &cp)
	}

	s.mu.RUnlock()

	sortNewestFirst(out)

	total := int64(len(out))
	if query.Offset >= total {
		return &types.Page[*types.PriceSnapshot]{
			Results: nil,
			Total:   total,
		}, nil
	}

	var (
		start = int(query.Offset)
		end   = min(start+int(storage.Limit(query.Limit)), len(out))
	)

	return &types.Page[*types.PriceSnapshot]{
		Results: out[start:end],
		Total:   total,
	}, nil
}

func (s *Storage) LatestSnapshot(
	_ context.Context,
	cardID string,
	source *string,
) (*types.PriceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *types.PriceSnapshot

	for i := range s.byCard[cardID] {
		v := &s.byCard[cardID][i]

		if source != nil && v.Source != *source {
			continue
		}

		// Later appends win ties
		if latest == nil || !v.CapturedAt.Before(latest.CapturedAt) {
			latest = v
		}
	}

	if latest == nil {
		return nil, storage.ErrNotFound
	}

	cp := *latest

	return &cp, nil
}

func (s *Storage) ListSources(_ context.Context) ([]string, error) {
	s.mu.RLock()

	seen := make(map[string]struct{})

	for _, snapshots := range s.byCard {
		for _, v := range snapshots {
			seen[v.Source] = struct{}{}
		}
	}

	s.mu.RUnlock()

	out := make([]string, 0, len(seen))

	for v := range seen {
		out = append(out, v)
	}

	slices.Sort(out)

	return out, nil
}

// sortNewestFirst orders snapshots by capture time, newest first, with the
// id as a stable tiebreaker
func sortNewestFirst(snapshots []*types.PriceSnapshot) {
	slices.SortStableFunc(snapshots, func(a, b *types.PriceSnapshot) int {
		if c := b.CapturedAt.Compare(a.CapturedAt); c != 0 {
			return c
		}

		return strings.Compare(b.ID, a.ID)
	})
}
