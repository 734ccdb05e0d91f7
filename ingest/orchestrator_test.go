package ingest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sig-0/cardprice/provider/currencies"
	"github.com/sig-0/cardprice/storage/mock"
	"github.com/sig-0/cardprice/storage/types"
)

const testJobName = "card:base1-4"

func snapshotOf(cardID string, price float64) *types.PriceSnapshot {
	return &types.PriceSnapshot{
		ID:         cardID + "-snapshot",
		CardID:     cardID,
		Price:      price,
		Currency:   currencies.BRL,
		Source:     types.SnapshotSourceAggregate,
		CapturedAt: time.Now().UTC(),
	}
}

// runOrchestrator starts the orchestrator, returning its stop function
func runOrchestrator(t *testing.T, o *Orchestrator) func() {
	t.Helper()

	var (
		errCh       = make(chan error, 1)
		ctx, cancel = context.WithCancel(context.Background())
	)

	go func() {
		errCh <- o.Start(ctx)
	}()

	return func() {
		cancel()
		require.NoError(t, <-errCh)
	}
}

func TestOrchestrator_New(t *testing.T) {
	t.Parallel()

	t.Run("default orchestrator", func(t *testing.T) {
		t.Parallel()

		o := New(&mock.Storage{})

		require.NotNil(t, o)

		assert.NotNil(t, o.storage)
		assert.NotNil(t, o.logger)
		assert.Equal(t, time.Second, o.queryInterval)
		assert.Equal(t, DefaultRetryDelay, o.retryDelay)
		assert.Equal(t, DefaultJobTimeout, o.jobTimeout)
	})

	t.Run("options", func(t *testing.T) {
		t.Parallel()

		o := New(
			&mock.Storage{},
			WithQueryInterval(time.Minute),
			WithRetryDelay(time.Second),
			WithJobTimeout(time.Hour),
		)

		assert.Equal(t, time.Minute, o.queryInterval)
		assert.Equal(t, time.Second, o.retryDelay)
		assert.Equal(t, time.Hour, o.jobTimeout)
	})
}

func TestOrchestrator_Register(t *testing.T) {
	t.Parallel()

	testTable := []struct {
		job         Job
		expectedErr error
		name        string
	}{
		{
			name:        "nil job",
			job:         nil,
			expectedErr: errInvalidJob,
		},
		{
			name:        "empty name",
			job:         &mockJob{interval: time.Hour},
			expectedErr: errInvalidJob,
		},
		{
			name:        "zero interval",
			job:         &mockJob{name: testJobName},
			expectedErr: errInvalidInterval,
		},
		{
			name:        "negative interval",
			job:         &mockJob{name: testJobName, interval: -time.Hour},
			expectedErr: errInvalidInterval,
		},
	}

	for _, testCase := range testTable {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			o := New(&mock.Storage{})

			assert.ErrorIs(t, o.Register(testCase.job), testCase.expectedErr)
			assert.Zero(t, o.q.Len())
		})
	}

	t.Run("valid job is scheduled immediately", func(t *testing.T) {
		t.Parallel()

		o := New(&mock.Storage{})

		require.NoError(t, o.Register(&mockJob{name: testJobName, interval: time.Hour}))

		var count int

		o.registeredJobs.Range(func(_, _ any) bool {
			count++

			return true
		})

		assert.Equal(t, 1, count)
		require.Equal(t, 1, o.q.Len())
		assert.False(t, o.q.Index(0).at.After(time.Now().UTC()))
	})
}

func TestOrchestrator_Backoff(t *testing.T) {
	t.Parallel()

	o := New(&mock.Storage{}, WithRetryDelay(10*time.Second))

	assert.Equal(t, 10*time.Second, o.backoff(1, time.Hour))
	assert.Equal(t, 20*time.Second, o.backoff(2, time.Hour))
	assert.Equal(t, 80*time.Second, o.backoff(4, time.Hour))
	assert.Equal(t, time.Hour, o.backoff(100, time.Hour))
	assert.Equal(t, 5*time.Second, o.backoff(1, 5*time.Second))
}

func TestOrchestrator_Start(t *testing.T) {
	t.Parallel()

	t.Run("ctx canceled", func(t *testing.T) {
		t.Parallel()

		var (
			o     = New(&mock.Storage{}, WithQueryInterval(10*time.Millisecond))
			errCh = make(chan error, 1)
		)

		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			errCh <- o.Start(ctx)
		}()

		cancel()

		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("orchestrator did not shut down in time")
		}
	})

	t.Run("snapshots are saved", func(t *testing.T) {
		t.Parallel()

		var (
			saved    *types.PriceSnapshot
			saveDone = make(chan struct{})
			expected = snapshotOf("base1-4", 123.45)

			storage = &mock.Storage{
				AppendSnapshotFn: func(_ context.Context, snapshot *types.PriceSnapshot) error {
					saved = snapshot

					close(saveDone)

					return nil
				},
			}

			job = &mockJob{
				name:     testJobName,
				interval: time.Hour,
				fetchFn: func(_ context.Context) ([]*types.PriceSnapshot, error) {
					return []*types.PriceSnapshot{expected}, nil
				},
			}

			o = New(storage, WithQueryInterval(10*time.Millisecond))
		)

		require.NoError(t, o.Register(job))

		stop := runOrchestrator(t, o)

		select {
		case <-saveDone:
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for the snapshot to be saved")
		}

		stop()

		assert.Equal(t, expected, saved)
	})

	t.Run("job is rescheduled after its interval", func(t *testing.T) {
		t.Parallel()

		var (
			fetchCount atomic.Int32
			fetchDone  = make(chan struct{})

			job = &mockJob{
				name:     testJobName,
				interval: 50 * time.Millisecond,
				fetchFn: func(_ context.Context) ([]*types.PriceSnapshot, error) {
					if fetchCount.Add(1) == 2 {
						close(fetchDone)
					}

					return []*types.PriceSnapshot{snapshotOf("base1-4", 10)}, nil
				},
			}

			o = New(&mock.Storage{}, WithQueryInterval(10*time.Millisecond))
		)

		require.NoError(t, o.Register(job))

		stop := runOrchestrator(t, o)

		select {
		case <-fetchDone:
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for reschedule")
		}

		stop()

		assert.GreaterOrEqual(t, fetchCount.Load(), int32(2))
	})

	t.Run("failed job is retried", func(t *testing.T) {
		t.Parallel()

		var (
			fetchCount atomic.Int32
			retryDone  = make(chan struct{})

			job = &mockJob{
				name:     testJobName,
				interval: time.Hour,
				fetchFn: func(_ context.Context) ([]*types.PriceSnapshot, error) {
					if fetchCount.Add(1) == 2 {
						close(retryDone)
					}

					return nil, errors.New("no relevant results")
				},
			}

			o = New(
				&mock.Storage{},
				WithQueryInterval(10*time.Millisecond),
				WithRetryDelay(20*time.Millisecond),
			)
		)

		require.NoError(t, o.Register(job))

		stop := runOrchestrator(t, o)

		select {
		case <-retryDone:
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for retry")
		}

		stop()

		assert.GreaterOrEqual(t, fetchCount.Load(), int32(2))
	})

	t.Run("job run is bounded", func(t *testing.T) {
		t.Parallel()

		var (
			deadlineHit = make(chan struct{})
			once        sync.Once

			job = &mockJob{
				name:     testJobName,
				interval: time.Hour,
				fetchFn: func(ctx context.Context) ([]*types.PriceSnapshot, error) {
					<-ctx.Done()

					once.Do(func() { close(deadlineHit) })

					return nil, ctx.Err()
				},
			}

			o = New(
				&mock.Storage{},
				WithQueryInterval(10*time.Millisecond),
				WithJobTimeout(20*time.Millisecond),
			)
		)

		require.NoError(t, o.Register(job))

		stop := runOrchestrator(t, o)

		select {
		case <-deadlineHit:
		case <-time.After(5 * time.Second):
			t.Fatal("job was not interrupted")
		}

		stop()
	})

	t.Run("multiple jobs", func(t *testing.T) {
		t.Parallel()

		var (
			saved     sync.Map
			saveCount atomic.Int32
			allSaved  = make(chan struct{})

			storage = &mock.Storage{
				AppendSnapshotFn: func(_ context.Context, snapshot *types.PriceSnapshot) error {
					saved.Store(snapshot.CardID, snapshot)

					if saveCount.Add(1) == 2 {
						close(allSaved)
					}

					return nil
				},
			}

			o = New(storage, WithQueryInterval(10*time.Millisecond))
		)

		for _, cardID := range []string{"base1-4", "base1-2"} {
			require.NoError(t, o.Register(&mockJob{
				name:     "card:" + cardID,
				interval: time.Hour,
				fetchFn: func(_ context.Context) ([]*types.PriceSnapshot, error) {
					return []*types.PriceSnapshot{snapshotOf(cardID, 10)}, nil
				},
			}))
		}

		stop := runOrchestrator(t, o)

		select {
		case <-allSaved:
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for jobs")
		}

		stop()

		_, ok1 := saved.Load("base1-4")
		_, ok2 := saved.Load("base1-2")

		assert.True(t, ok1)
		assert.True(t, ok2)
	})

	t.Run("storage errors do not stop the loop", func(t *testing.T) {
		t.Parallel()

		var (
			saveAttempts atomic.Int32
			savesDone    = make(chan struct{})

			storage = &mock.Storage{
				AppendSnapshotFn: func(_ context.Context, _ *types.PriceSnapshot) error {
					if saveAttempts.Add(1) == 2 {
						close(savesDone)
					}

					return errors.New("storage error")
				},
			}

			job = &mockJob{
				name:     testJobName,
				interval: 50 * time.Millisecond,
				fetchFn: func(_ context.Context) ([]*types.PriceSnapshot, error) {
					return []*types.PriceSnapshot{snapshotOf("base1-4", 10)}, nil
				},
			}

			o = New(storage, WithQueryInterval(10*time.Millisecond))
		)

		require.NoError(t, o.Register(job))

		stop := runOrchestrator(t, o)

		select {
		case <-savesDone:
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for save attempts")
		}

		stop()
	})
}
