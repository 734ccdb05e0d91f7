// Package ingest keeps the price history of watched cards fresh by running
// recurring refresh jobs
package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sig-0/iq"

	"github.com/sig-0/cardprice/storage"
)

const (
	DefaultRetryDelay = 10 * time.Second
	DefaultJobTimeout = 2 * time.Minute

	saveTimeout = 10 * time.Second
)

var (
	errInvalidJob      = errors.New("invalid job")
	errInvalidInterval = errors.New("invalid interval")
)

// Orchestrator is the main scheduler for registered refresh jobs
type Orchestrator struct {
	storage storage.Storage
	logger  *slog.Logger

	registeredJobs sync.Map // xid.ID -> Job

	q             iq.Queue[scheduledRefresh]
	queryInterval time.Duration
	retryDelay    time.Duration
	jobTimeout    time.Duration
	qMux          sync.Mutex
}

// New creates a new Orchestrator instance
func New(storage storage.Storage, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		storage:       storage,
		q:             iq.NewQueue[scheduledRefresh](),
		queryInterval: time.Second,
		retryDelay:    DefaultRetryDelay,
		jobTimeout:    DefaultJobTimeout,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Register registers a new job with the orchestrator.
// The job is immediately queued up for execution
func (o *Orchestrator) Register(j Job) error {
	if j == nil || j.Name() == "" {
		return errInvalidJob
	}

	if j.Interval() <= 0 {
		return errInvalidInterval
	}

	id := xid.New()
	o.registeredJobs.Store(id, j)

	o.logger.Info(
		"registered new job",
		"name", j.Name(),
		"interval", j.Interval().String(),
	)

	o.schedule(scheduledRefresh{
		at:    time.Now().UTC(),
		jobID: id,
		job:   j,
	})

	return nil
}

// Start starts the job orchestration service loop [BLOCKING]
func (o *Orchestrator) Start(ctx context.Context) error {
	collectorCh := make(chan *workerResponse, 100)

	ticker := time.NewTicker(o.queryInterval)
	defer ticker.Stop()

	// dispatch spawns a worker for every due job
	dispatch := func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
				next := o.next()
				if next == nil {
					return
				}

				o.logger.Debug(
					"running job",
					"name", next.job.Name(),
				)

				go handleJob(ctx, &workerInfo{
					job:      next.job,
					jobID:    next.jobID,
					failures: next.failures,
					timeout:  o.jobTimeout,
					resCh:    collectorCh,
				})
			}
		}
	}

	// Run the jobs due on boot
	dispatch()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator service shut down")

			return nil
		case <-ticker.C:
			dispatch()
		case response := <-collectorCh:
			o.handleResponse(ctx, response)
		}
	}
}

// handleResponse saves the job output and reschedules the job
func (o *Orchestrator) handleResponse(ctx context.Context, response *workerResponse) {
	now := time.Now().UTC()

	jRaw, ok := o.registeredJobs.Load(response.jobID)
	if !ok {
		o.logger.Error(
			"unable to load registered job",
			"id", response.jobID.String(),
		)

		return
	}

	j, _ := jRaw.(Job)

	if response.error != nil {
		failures := response.failures + 1
		delay := o.backoff(failures, j.Interval())

		o.logger.Error(
			"job run failed",
			"name", j.Name(),
			"failures", failures,
			"retry_in", delay.String(),
			"err", response.error,
		)

		o.schedule(scheduledRefresh{
			at:       now.Add(delay),
			jobID:    response.jobID,
			job:      j,
			failures: failures,
		})

		return
	}

	for _, snapshot := range response.snapshots {
		saveCtx, cancelFn := context.WithTimeout(ctx, saveTimeout)
		err := o.storage.AppendSnapshot(saveCtx, snapshot)

		cancelFn()

		if err != nil {
			o.logger.Error(
				"unable to save price snapshot",
				"card_id", snapshot.CardID,
				"source", snapshot.Source,
				"err", err,
			)

			continue
		}

		o.logger.Info(
			"saved price snapshot",
			"card_id", snapshot.CardID,
			"source", snapshot.Source,
			"price", snapshot.Price,
			"currency", snapshot.Currency,
		)
	}

	o.schedule(scheduledRefresh{
		at:    now.Add(j.Interval()),
		jobID: response.jobID,
		job:   j,
	})
}

// backoff returns the retry delay after the given consecutive failures
func (o *Orchestrator) backoff(failures int, interval time.Duration) time.Duration {
	delay := o.retryDelay

	for i := 1; i < failures && delay < interval; i++ {
		delay *= 2
	}

	return min(delay, interval)
}

// schedule queues up a job run
func (o *Orchestrator) schedule(sr scheduledRefresh) {
	o.qMux.Lock()
	defer o.qMux.Unlock()

	o.q.Push(sr)
}

// next fetches the next due job run, as of the moment of calling
func (o *Orchestrator) next() *scheduledRefresh {
	o.qMux.Lock()
	defer o.qMux.Unlock()

	if o.q.Len() == 0 {
		return nil // all jobs are running
	}

	if o.q.Index(0).at.After(time.Now().UTC()) {
		return nil // earliest run is in the future
	}

	return o.q.PopFront()
}
