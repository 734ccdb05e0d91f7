package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/cardprice/storage"
	"github.com/sig-0/cardprice/storage/types"
)

func seed(t *testing.T, s *Storage, base time.Time) {
	t.Helper()

	snapshots := []*types.PriceSnapshot{
		{ID: "a", CardID: "base1-4", Source: types.SnapshotSourceAggregate, Price: 100, Currency: "BRL", CapturedAt: base},
		{ID: "b", CardID: "base1-4", Source: "ebay:min", Price: 90, Currency: "BRL", CapturedAt: base},
		{ID: "c", CardID: "base1-4", Source: types.SnapshotSourceAggregate, Price: 110, Currency: "BRL", CapturedAt: base.Add(time.Hour)},
		{ID: "d", CardID: "base1-4", Source: types.SnapshotSourceManual, Price: 95, Currency: "BRL", CapturedAt: base.Add(2 * time.Hour)},
		{ID: "e", CardID: "base1-2", Source: types.SnapshotSourceAggregate, Price: 50, Currency: "BRL", CapturedAt: base},
	}

	for _, snapshot := range snapshots {
		require.NoError(t, s.AppendSnapshot(context.Background(), snapshot))
	}
}

func ids(page *types.Page[*types.PriceSnapshot]) []string {
	out := make([]string, 0, len(page.Results))

	for _, r := range page.Results {
		out = append(out, r.ID)
	}

	return out
}

func TestStorage_Snapshots(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	s := NewStorage()
	seed(t, s, base)

	t.Run("newest first", func(t *testing.T) {
		t.Parallel()

		page, err := s.Snapshots(context.Background(), &types.SnapshotQuery{CardID: "base1-4"})
		require.NoError(t, err)

		assert.EqualValues(t, 4, page.Total)
		assert.Equal(t, []string{"d", "c", "b", "a"}, ids(page))
	})

	t.Run("source filter", func(t *testing.T) {
		t.Parallel()

		source := types.SnapshotSourceAggregate

		page, err := s.Snapshots(context.Background(), &types.SnapshotQuery{
			CardID: "base1-4",
			Source: &source,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"c", "a"}, ids(page))
	})

	t.Run("time range is inclusive", func(t *testing.T) {
		t.Parallel()

		var (
			from = base.Add(time.Hour)
			to   = base.Add(2 * time.Hour)
		)

		page, err := s.Snapshots(context.Background(), &types.SnapshotQuery{
			CardID: "base1-4",
			From:   &from,
			To:     &to,
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"d", "c"}, ids(page))
	})

	t.Run("pagination", func(t *testing.T) {
		t.Parallel()

		page, err := s.Snapshots(context.Background(), &types.SnapshotQuery{
			CardID: "base1-4",
			Offset: 1,
			Limit:  2,
		})
		require.NoError(t, err)

		assert.EqualValues(t, 4, page.Total)
		assert.Equal(t, []string{"c", "b"}, ids(page))

		page, err = s.Snapshots(context.Background(), &types.SnapshotQuery{
			CardID: "base1-4",
			Offset: 10,
		})
		require.NoError(t, err)

		assert.EqualValues(t, 4, page.Total)
		assert.Empty(t, page.Results)
	})

	t.Run("unknown card", func(t *testing.T) {
		t.Parallel()

		page, err := s.Snapshots(context.Background(), &types.SnapshotQuery{CardID: "missing"})
		require.NoError(t, err)

		assert.Zero(t, page.Total)
		assert.Empty(t, page.Results)
	})
}

func TestStorage_LatestSnapshot(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	s := NewStorage()
	seed(t, s, base)

	latest, err := s.LatestSnapshot(context.Background(), "base1-4", nil)
	require.NoError(t, err)
	assert.Equal(t, "d", latest.ID)

	source := types.SnapshotSourceAggregate

	latest, err = s.LatestSnapshot(context.Background(), "base1-4", &source)
	require.NoError(t, err)
	assert.Equal(t, 110.0, latest.Price)

	_, err = s.LatestSnapshot(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStorage_ListSources(t *testing.T) {
	t.Parallel()

	s := NewStorage()
	seed(t, s, time.Now())

	sources, err := s.ListSources(context.Background())
	require.NoError(t, err)

	assert.Equal(
		t,
		[]string{types.SnapshotSourceAggregate, "ebay:min", types.SnapshotSourceManual},
		sources,
	)
}
