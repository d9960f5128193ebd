package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractionQueue_RunsEveryJob(t *testing.T) {
	var handled atomic.Int32
	var mu sync.Mutex
	failed := map[string]error{}

	q := NewExtractionQueue(HandlerFunc(func(ctx context.Context, job Job) error {
		handled.Add(1)
		if job.Path == "bad.xlsx" {
			return errors.New("boom")
		}
		return nil
	}), nil, WithWorkers(3), WithQueueSize(2), WithOnDone(func(job Job, err error) {
		if err != nil {
			mu.Lock()
			failed[job.Path] = err
			mu.Unlock()
		}
	}))

	ctx := context.Background()
	for _, p := range []string{"a.xlsx", "b.docx", "bad.xlsx", "c.xlsx", "d.docx"} {
		require.NoError(t, q.Enqueue(ctx, Job{Path: p, SessionID: p}))
	}
	q.Shutdown(ctx)

	assert.EqualValues(t, 5, handled.Load())
	require.Len(t, failed, 1)
	assert.EqualError(t, failed["bad.xlsx"], "boom")
}

func TestExtractionQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewExtractionQueue(HandlerFunc(func(context.Context, Job) error { return nil }), nil)
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{Path: "late.xlsx"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestExtractionQueue_TimeoutAndPanic(t *testing.T) {
	results := make(chan error, 2)
	q := NewExtractionQueue(HandlerFunc(func(ctx context.Context, job Job) error {
		if job.Path == "panic" {
			panic("reader exploded")
		}
		<-ctx.Done()
		return ctx.Err()
	}), nil, WithWorkers(1), WithProcessTimeout(20*time.Millisecond), WithOnDone(func(_ Job, err error) {
		results <- err
	}))

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{Path: "slow"}))
	require.NoError(t, q.Enqueue(ctx, Job{Path: "panic"}))
	q.Shutdown(ctx)

	assert.ErrorIs(t, <-results, context.DeadlineExceeded)
	assert.ErrorContains(t, <-results, "panicked")
}

func TestExtractionQueue_EnqueueHonorsContext(t *testing.T) {
	release := make(chan struct{})
	q := NewExtractionQueue(HandlerFunc(func(context.Context, Job) error {
		<-release
		return nil
	}), nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(release)
		q.Shutdown(context.Background())
	}()

	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, Job{Path: "running"}))
	// The worker may not have picked up the first job yet; fill until a send blocks.
	cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = q.Enqueue(cctx, Job{Path: "waiting"})
	}
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
