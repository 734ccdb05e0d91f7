package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sig-0/cardprice/aggregate"
	"github.com/sig-0/cardprice/catalog"
	"github.com/sig-0/cardprice/storage/types"
)

var errUnresolved = errors.New("price unresolved")

// Pricer runs a card price aggregation
type Pricer interface {
	Aggregate(ctx context.Context, req *aggregate.Request) *types.AggregationResult
}

// CardJob periodically prices a watched catalog card
type CardJob struct {
	pricer   Pricer
	catalog  catalog.Catalog
	now      func() time.Time
	cardID   string
	currency types.Currency
	interval time.Duration
	minimums bool
}

// NewCardJob creates a refresh job for the given catalog card
func NewCardJob(
	pricer Pricer,
	cat catalog.Catalog,
	cardID string,
	currency types.Currency,
	interval time.Duration,
	minimums bool,
) *CardJob {
	return &CardJob{
		pricer:   pricer,
		catalog:  cat,
		now:      time.Now,
		cardID:   cardID,
		currency: currency,
		interval: interval,
		minimums: minimums,
	}
}

func (j *CardJob) Name() string {
	return "card:" + j.cardID
}

func (j *CardJob) Interval() time.Duration {
	return j.interval
}

func (j *CardJob) Fetch(ctx context.Context) ([]*types.PriceSnapshot, error) {
	card, err := j.catalog.Card(ctx, j.cardID)
	if err != nil {
		return nil, err
	}

	res := j.pricer.Aggregate(ctx, &aggregate.Request{
		CardID:   j.cardID,
		Currency: j.currency,
		Card:     *card,
	})

	if !res.Resolved() {
		return nil, fmt.Errorf("%w: %s", errUnresolved, res.Reason)
	}

	return aggregate.Snapshots(res, j.minimums, j.now().UTC()), nil
}
