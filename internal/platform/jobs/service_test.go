package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunNowRecordsCompletedRun(t *testing.T) {
	svc := New(4, 1, nil, nil)

	run, err := svc.RunNow(context.Background(), JobPayrollBatch, "org-1", func(context.Context) (any, error) {
		return map[string]int{"succeeded": 3}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Equal(t, "org-1", run.OrganizationID)
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.CompletedAt)
	assert.Equal(t, map[string]int{"succeeded": 3}, run.Details)
}

func TestRunNowRecordsFailureAndPanic(t *testing.T) {
	svc := New(4, 1, nil, nil)

	run, err := svc.RunNow(context.Background(), JobPayrollBatch, "", func(context.Context) (any, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Equal(t, "boom", run.Error)

	run, err = svc.RunNow(context.Background(), JobPayrollBatch, "", func(context.Context) (any, error) {
		panic("bad input")
	})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, run.Status)
	assert.Contains(t, run.Error, "bad input")
}

func TestEnqueueIsProcessedByWorker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := New(4, 2, nil, nil)
	svc.Start(ctx)

	done := make(chan struct{})
	run, err := svc.Enqueue(JobPayrollBatch, "org-1", func(context.Context) (any, error) {
		close(done)
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, run.Status)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not picked up")
	}
	require.Eventually(t, func() bool {
		got, err := svc.Get(run.ID)
		return err == nil && got.Status == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	svc.Wait()
}

func TestEnqueueFailsWhenQueueIsFull(t *testing.T) {
	svc := New(1, 1, nil, nil)
	noop := func(context.Context) (any, error) { return nil, nil }

	_, err := svc.Enqueue(JobPayrollBatch, "", noop)
	require.NoError(t, err)
	run, err := svc.Enqueue(JobPayrollBatch, "", noop)
	require.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, StatusFailed, run.Status)
}

func TestGetUnknownRun(t *testing.T) {
	svc := New(1, 1, nil, nil)
	_, err := svc.Get("missing")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestFinishedRunsAreEvictedBeyondRetention(t *testing.T) {
	svc := New(4, 1, nil, nil, WithRetention(3))
	noop := func(context.Context) (any, error) { return nil, nil }

	var ids []string
	for range 10 {
		run, err := svc.RunNow(context.Background(), JobPayrollBatch, "org-1", noop)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, run.Status)
		ids = append(ids, run.ID)
	}

	for _, id := range ids[:7] {
		_, err := svc.Get(id)
		assert.ErrorIs(t, err, ErrRunNotFound, id)
	}
	for _, id := range ids[7:] {
		_, err := svc.Get(id)
		assert.NoError(t, err, id)
	}
	svc.mu.RLock()
	assert.Len(t, svc.runs, 3)
	assert.Len(t, svc.finished, 3)
	svc.mu.RUnlock()
}

func TestRetentionKeepsQueuedRuns(t *testing.T) {
	svc := New(4, 1, nil, nil, WithRetention(1))
	noop := func(context.Context) (any, error) { return nil, nil }

	queued, err := svc.Enqueue(JobPayrollBatch, "", noop)
	require.NoError(t, err)
	for range 3 {
		_, err := svc.RunNow(context.Background(), JobPayrollBatch, "", noop)
		require.NoError(t, err)
	}

	got, err := svc.Get(queued.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusQueued, got.Status)
}
