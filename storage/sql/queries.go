package sql

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by a pgx connection, pool or transaction
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// priceSnapshot is the price_snapshots row
type priceSnapshot struct {
	ID         string
	CardID     string
	Price      pgtype.Numeric
	Currency   string
	Source     string
	CapturedAt pgtype.Timestamptz
}

const snapshotColumns = `id, card_id, price, currency, source, captured_at`

const appendSnapshot = `
INSERT INTO price_snapshots (` + snapshotColumns + `)
VALUES ($1, $2, $3, $4, $5, $6)
`

const snapshotsFilter = `
WHERE card_id = $1
  AND ($2::text IS NULL OR source = $2)
  AND ($3::timestamptz IS NULL OR captured_at >= $3)
  AND ($4::timestamptz IS NULL OR captured_at <= $4)
`

const countSnapshots = `SELECT count(*) FROM price_snapshots` + snapshotsFilter

const listSnapshots = `SELECT ` + snapshotColumns + ` FROM price_snapshots` + snapshotsFilter + `
ORDER BY captured_at DESC, id DESC
LIMIT $5 OFFSET $6
`

const latestSnapshot = `
SELECT ` + snapshotColumns + `
FROM price_snapshots
WHERE card_id = $1
  AND ($2::text IS NULL OR source = $2)
ORDER BY captured_at DESC, id DESC
LIMIT 1
`

const listSources = `SELECT DISTINCT source FROM price_snapshots ORDER BY source`

type snapshotsParams struct {
	Source *string
	From   *time.Time
	To     *time.Time
	CardID string
	Limit  int32
	Offset int64
}

func scanSnapshot(row pgx.Row) (priceSnapshot, error) {
	var s priceSnapshot

	err := row.Scan(
		&s.ID,
		&s.CardID,
		&s.Price,
		&s.Currency,
		&s.Source,
		&s.CapturedAt,
	)

	return s, err
}
