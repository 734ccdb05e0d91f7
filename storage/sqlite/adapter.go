package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sig-0/cardprice/storage"
	"github.com/sig-0/cardprice/storage/types"
)

const snapshotsFilter = `
WHERE card_id = ?1
  AND (?2 IS NULL OR source = ?2)
  AND (?3 IS NULL OR captured_at >= ?3)
  AND (?4 IS NULL OR captured_at <= ?4)
`

// Storage is the sqlite backed price history
type Storage struct {
	db *sql.DB
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		db: db,
	}
}

func (s *Storage) AppendSnapshot(ctx context.Context, snapshot *types.PriceSnapshot) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO price_snapshots (id, card_id, price, currency, source, captured_at)
		VALUES (?1, ?2, ?3, ?4, ?5, ?6)`,
		snapshot.ID,
		snapshot.CardID,
		snapshot.Price,
		snapshot.Currency.String(),
		snapshot.Source,
		snapshot.CapturedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("unable to save price snapshot: %w", err)
	}

	return nil
}

func (s *Storage) Snapshots(
	ctx context.Context,
	query *types.SnapshotQuery,
) (*types.Page[*types.PriceSnapshot], error) {
	args := []any{
		query.CardID,
		nullString(query.Source),
		nullNanos(query.From),
		nullNanos(query.To),
	}

	var total int64

	if err := s.db.QueryRowContext(
		ctx,
		`SELECT count(*) FROM price_snapshots`+snapshotsFilter,
		args...,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("unable to count snapshots: %w", err)
	}

	offset := max(query.Offset, 0)

	if total == 0 || offset >= total {
		return &types.Page[*types.PriceSnapshot]{
			Results: nil,
			Total:   total,
		}, nil
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, card_id, price, currency, source, captured_at
		FROM price_snapshots`+snapshotsFilter+`
		ORDER BY captured_at DESC, id DESC
		LIMIT ?5 OFFSET ?6`,
		append(args, storage.Limit(query.Limit), offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch snapshots: %w", err)
	}

	defer rows.Close()

	items := make([]*types.PriceSnapshot, 0)

	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan snapshot: %w", err)
		}

		items = append(items, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to fetch snapshots: %w", err)
	}

	return &types.Page[*types.PriceSnapshot]{
		Results: items,
		Total:   total,
	}, nil
}

func (s *Storage) LatestSnapshot(
	ctx context.Context,
	cardID string,
	source *string,
) (*types.PriceSnapshot, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, card_id, price, currency, source, captured_at
		FROM price_snapshots
		WHERE card_id = ?1 AND (?2 IS NULL OR source = ?2)
		ORDER BY captured_at DESC, id DESC
		LIMIT 1`,
		cardID,
		nullString(source),
	)

	snapshot, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("unable to fetch latest snapshot: %w", err)
	}

	return snapshot, nil
}

func (s *Storage) ListSources(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT source FROM price_snapshots ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch sources: %w", err)
	}

	defer rows.Close()

	out := make([]string, 0)

	for rows.Next() {
		var src string
		if err := rows.Scan(&src); err != nil {
			return nil, fmt.Errorf("unable to scan source: %w", err)
		}

		out = append(out, src)
	}

	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*types.PriceSnapshot, error) {
	var (
		s        types.PriceSnapshot
		currency string
		nanos    int64
	)

	if err := row.Scan(&s.ID, &s.CardID, &s.Price, &currency, &s.Source, &nanos); err != nil {
		return nil, err
	}

	s.Currency = types.Currency(currency)
	s.CapturedAt = time.Unix(0, nanos).UTC()

	return &s, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}

	return *s
}

func nullNanos(t *time.Time) any {
	if t == nil {
		return nil
	}

	return t.UTC().UnixNano()
}
