package ingest

import (
	"context"
	"time"

	"github.com/rs/xid"

	"github.com/sig-0/cardprice/storage/types"
)

// scheduledRefresh is a single scheduled job run
type scheduledRefresh struct {
	at       time.Time
	job      Job
	jobID    xid.ID
	failures int // consecutive failed runs
}

// Less sorts scheduled runs by their due-time (earliest == first)
func (a scheduledRefresh) Less(b scheduledRefresh) bool {
	return a.at.Before(b.at)
}

// workerInfo is the work context for the job routine
type workerInfo struct {
	job      Job
	resCh    chan<- *workerResponse
	jobID    xid.ID
	failures int
	timeout  time.Duration
}

// workerResponse is the job routine response
type workerResponse struct {
	error     error                  // encountered error, if any
	snapshots []*types.PriceSnapshot // the produced snapshots
	jobID     xid.ID
	failures  int
}

// handleJob runs the job, bounded by the worker timeout
func handleJob(
	ctx context.Context,
	info *workerInfo,
) {
	runCtx, cancelFn := context.WithTimeout(ctx, info.timeout)
	defer cancelFn()

	snapshots, err := info.job.Fetch(runCtx)

	response := &workerResponse{
		error:     err,
		snapshots: snapshots,
		jobID:     info.jobID,
		failures:  info.failures,
	}

	select {
	case <-ctx.Done():
	case info.resCh <- response:
	}
}
