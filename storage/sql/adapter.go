package sql

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/sig-0/cardprice/storage"
	"github.com/sig-0/cardprice/storage/types"
)

// Storage is the Postgres backed price history
type Storage struct {
	db DBTX
}

func NewStorage(db DBTX) *Storage {
	return &Storage{
		db: db,
	}
}

func (s *Storage) AppendSnapshot(
	ctx context.Context,
	snapshot *types.PriceSnapshot,
) error {
	_, err := s.db.Exec(
		ctx,
		appendSnapshot,
		snapshot.ID,
		snapshot.CardID,
		floatToNumeric(snapshot.Price),
		snapshot.Currency.String(),
		snapshot.Source,
		timeToTimestampz(snapshot.CapturedAt),
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
	arg := snapshotsParams{
		CardID: query.CardID,
		Source: query.Source,
		From:   utcPtr(query.From),
		To:     utcPtr(query.To),
		Limit:  storage.Limit(query.Limit),
		Offset: max(query.Offset, 0),
	}

	var total int64

	if err := s.db.QueryRow(
		ctx,
		countSnapshots,
		arg.CardID,
		arg.Source,
		arg.From,
		arg.To,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("unable to count snapshots: %w", err)
	}

	if total == 0 || arg.Offset >= total {
		return &types.Page[*types.PriceSnapshot]{
			Results: nil,
			Total:   total,
		}, nil // valid case
	}

	rows, err := s.db.Query(
		ctx,
		listSnapshots,
		arg.CardID,
		arg.Source,
		arg.From,
		arg.To,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch snapshots: %w", err)
	}

	defer rows.Close()

	items := make([]*types.PriceSnapshot, 0, arg.Limit)

	for rows.Next() {
		row, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan snapshot: %w", err)
		}

		items = append(items, parseSnapshot(row))
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
	row, err := scanSnapshot(s.db.QueryRow(ctx, latestSnapshot, cardID, source))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}

		return nil, fmt.Errorf("unable to fetch latest snapshot: %w", err)
	}

	return parseSnapshot(row), nil
}

func (s *Storage) ListSources(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, listSources)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch sources: %w", err)
	}

	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("unable to fetch sources: %w", err)
	}

	return out, nil
}

// parseSnapshot parses the postgres row to the common Go type
func parseSnapshot(row priceSnapshot) *types.PriceSnapshot {
	return &types.PriceSnapshot{
		ID:         row.ID,
		CardID:     row.CardID,
		Price:      numericToFloat(row.Price),
		Currency:   types.Currency(row.Currency),
		Source:     row.Source,
		CapturedAt: timestampzToTime(row.CapturedAt),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	u := t.UTC()

	return &u
}

// floatToNumeric converts the float value to postgres numeric
func floatToNumeric(value float64) pgtype.Numeric {
	// round to 4dp and store as integer with exponent -4
	i := int64(math.Round(value * 1e4))

	return pgtype.Numeric{
		Int:   big.NewInt(i),
		Exp:   -4,
		Valid: true,
	}
}

// numericToFloat converts the postgres value to float
func numericToFloat(value pgtype.Numeric) float64 {
	if !value.Valid || value.Int == nil {
		return 0
	}

	f, _ := new(big.Rat).SetInt(value.Int).Float64()

	if value.Exp > 0 {
		f *= math.Pow10(int(value.Exp))
	} else if value.Exp < 0 {
		f /= math.Pow10(int(-value.Exp))
	}

	return f
}

// timeToTimestampz converts the time value to postgres timestamp
func timeToTimestampz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{
		Time:  t.UTC(),
		Valid: true,
	}
}

// timestampzToTime converts the postgres timestamp value to time
func timestampzToTime(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}

	return ts.Time.UTC()
}
