package mock

import (
	"context"

	"github.com/sig-0/cardprice/storage/types"
)

type (
	AppendSnapshotDelegate func(context.Context, *types.PriceSnapshot) error
	SnapshotsDelegate      func(context.Context, *types.SnapshotQuery) (*types.Page[*types.PriceSnapshot], error)
	LatestSnapshotDelegate func(context.Context, string, *string) (*types.PriceSnapshot, error)
	ListSourcesDelegate    func(context.Context) ([]string, error)
)

type Storage struct {
	AppendSnapshotFn AppendSnapshotDelegate
	SnapshotsFn      SnapshotsDelegate
	LatestSnapshotFn LatestSnapshotDelegate
	ListSourcesFn    ListSourcesDelegate
}

func (m *Storage) AppendSnapshot(ctx context.Context, snapshot *types.PriceSnapshot) error {
	if m.AppendSnapshotFn != nil {
		return m.AppendSnapshotFn(ctx, snapshot)
	}

	return nil
}

func (m *Storage) Snapshots(
	ctx context.Context,
	query *types.SnapshotQuery,
) (*types.Page[*types.PriceSnapshot], error) {
	if m.SnapshotsFn != nil {
		return m.SnapshotsFn(ctx, query)
	}

	return nil, nil
}

func (m *Storage) LatestSnapshot(
	ctx context.Context,
	cardID string,
	source *string,
) (*types.PriceSnapshot, error) {
	if m.LatestSnapshotFn != nil {
		return m.LatestSnapshotFn(ctx, cardID, source)
	}

	return nil, nil
}

func (m *Storage) ListSources(ctx context.Context) ([]string, error) {
	if m.ListSourcesFn != nil {
		return m.ListSourcesFn(ctx)
	}

	return nil, nil
}
