package reconciler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/ovpnhub/internal/cache"
	"github.com/charlesng35/ovpnhub/internal/database/testutil"
)

type blockingRunner struct {
	calls     atomic.Int32
	cancelled atomic.Int32
	started   chan struct{}
}

func (r *blockingRunner) RunCycle(ctx context.Context) (CycleResult, error) {
	if r.calls.Add(1) == 1 && r.started != nil {
		close(r.started)
	}
	<-ctx.Done()
	r.cancelled.Add(1)
	return CycleResult{}, ctx.Err()
}

type countingRunner struct {
	calls atomic.Int32
}

func (r *countingRunner) RunCycle(context.Context) (CycleResult, error) {
	r.calls.Add(1)
	return CycleResult{Seen: 3}, nil
}

func TestScheduler_SkipsTicksWhileRunningAndStopCancels(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{})}
	scheduler, err := NewScheduler(runner, WithInterval(10*time.Millisecond), WithStopTimeout(2*time.Second))
	require.NoError(t, err)

	require.NoError(t, scheduler.Start())
	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle never started")
	}

	time.Sleep(100 * time.Millisecond)
	require.EqualValues(t, 1, runner.calls.Load())

	_, err = scheduler.RunNow(context.Background())
	require.ErrorIs(t, err, ErrCycleRunning)

	scheduler.Stop()
	require.EqualValues(t, 1, runner.cancelled.Load())
	require.EqualValues(t, 1, runner.calls.Load())
}

func TestScheduler_RunNowRecordsLastRun(t *testing.T) {
	runner := &countingRunner{}
	scheduler, err := NewScheduler(runner)
	require.NoError(t, err)
	require.Nil(t, scheduler.LastRun())
	require.Equal(t, defaultInterval, scheduler.Interval())

	result, err := scheduler.RunNow(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, result.Seen)

	last := scheduler.LastRun()
	require.NotNil(t, last)
	require.Equal(t, 3, last.Result.Seen)
	require.Empty(t, last.Error)
}

func TestScheduler_LeaseHeldElsewhereSkipsCycle(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	locker, err := cache.NewDatabaseLocker(db)
	require.NoError(t, err)

	other, ok, err := locker.Acquire(context.Background(), LeaseKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	runner := &countingRunner{}
	scheduler, err := NewScheduler(runner, WithLocker(locker, time.Minute))
	require.NoError(t, err)

	_, err = scheduler.RunNow(context.Background())
	require.ErrorIs(t, err, ErrLeaseHeld)
	require.Zero(t, runner.calls.Load())

	require.NoError(t, other.Release(context.Background()))
	_, err = scheduler.RunNow(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, runner.calls.Load())

	_, ok, err = locker.Acquire(context.Background(), LeaseKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "lease is released after the cycle")
}
