package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"announcer/internal/domain"
)

type countingReconciler struct {
	calls    atomic.Int32
	err      error
	deadline atomic.Bool
}

func (c *countingReconciler) Reconcile(ctx context.Context) (*domain.RunSummary, error) {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); ok {
		c.deadline.Store(true)
	}
	if c.err != nil {
		return nil, c.err
	}
	return &domain.RunSummary{Status: domain.RunSucceeded}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	rec := &countingReconciler{}
	sched := NewScheduler(rec, 10*time.Millisecond, time.Second, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	err := sched.Start(ctx)

	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, rec.calls.Load(), int32(2))
	assert.True(t, rec.deadline.Load())
}

func TestScheduler_KeepsRunningAfterErrors(t *testing.T) {
	for _, runErr := range []error{domain.ErrRunInProgress, errors.New("boom")} {
		rec := &countingReconciler{err: runErr}
		sched := NewScheduler(rec, 5*time.Millisecond, time.Second, testLogger())

		ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
		err := sched.Start(ctx)
		cancel()

		require.Error(t, err)
		assert.Greater(t, rec.calls.Load(), int32(1), runErr.Error())
	}
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	rec := &countingReconciler{}
	sched := NewScheduler(rec, time.Hour, time.Second, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	require.Eventually(t, func() bool { return rec.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
