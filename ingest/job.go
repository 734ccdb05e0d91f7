package ingest

import (
	"context"
	"time"

	"github.com/sig-0/cardprice/storage/types"
)

// Job is a single recurring price refresh
type Job interface {
	// Name returns the human-readable name of the job
	Name() string

	// Interval returns the interval at which the job should run
	Interval() time.Duration

	// Fetch is the job's main routine, yielding the snapshots to append
	Fetch(context.Context) ([]*types.PriceSnapshot, error)
}
