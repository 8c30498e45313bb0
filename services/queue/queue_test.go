package queue

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

func TestSubmit_RunsJobsInBackground(t *testing.T) {
	q := New(2, 10, nil)
	q.Start(context.Background())

	var wg sync.WaitGroup
	var ran int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		require.NoError(t, q.Submit(Job{Name: "count", Run: func(ctx context.Context) error {
			defer wg.Done()
			atomic.AddInt32(&ran, 1)
			return nil
		}}))
	}

	wg.Wait()
	q.Stop()
	assert.Equal(t, int32(5), atomic.LoadInt32(&ran))
}

func TestSubmit_ReturnsBeforeJobFinishes(t *testing.T) {
	q := New(1, 1, nil)
	q.Start(context.Background())
	defer q.Stop()

	release := make(chan struct{})
	done := make(chan struct{})
	start := time.Now()
	require.NoError(t, q.Submit(Job{Name: "slow", Run: func(ctx context.Context) error {
		<-release
		close(done)
		return nil
	}}))
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	<-done
}

func TestSubmit_FullAndClosed(t *testing.T) {
	q := New(1, 1, nil)
	// not started: the buffer fills up
	require.NoError(t, q.Submit(Job{Name: "a", Run: func(ctx context.Context) error { return nil }}))
	err := q.Submit(Job{Name: "b", Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, 1, q.Len())

	q.Stop()
	err = q.Submit(Job{Name: "c", Run: func(ctx context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestStop_DrainsBufferedJobs(t *testing.T) {
	q := New(1, 5, nil)
	var ran int32
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Submit(Job{Name: "drain", Run: func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			return nil
		}}))
	}

	q.Start(context.Background())
	q.Stop()
	assert.Equal(t, int32(5), atomic.LoadInt32(&ran))
}

func TestWorker_SurvivesFailuresAndPanics(t *testing.T) {
	q := New(1, 3, nil)
	done := make(chan struct{})

	require.NoError(t, q.Submit(Job{Name: "fail", Run: func(ctx context.Context) error {
		return errors.New("provider down")
	}}))
	require.NoError(t, q.Submit(Job{Name: "panic", Run: func(ctx context.Context) error {
		panic("nil map")
	}}))
	require.NoError(t, q.Submit(Job{Name: "ok", Run: func(ctx context.Context) error {
		close(done)
		return nil
	}}))

	q.Start(context.Background())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not reach the job after a failure and a panic")
	}
	q.Stop()
}
