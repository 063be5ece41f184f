package worker

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

func TestDispatcherRunsTasks(t *testing.T) {
	d := NewDispatcher(Options{Workers: 2, QueueSize: 10}, nil, nil)
	d.Start()

	var n int32
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Submit(Task{Name: "count", Run: func(ctx context.Context) error {
			atomic.AddInt32(&n, 1)
			return nil
		}}))
	}

	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, int32(5), atomic.LoadInt32(&n))
	assert.ErrorIs(t, d.Submit(Task{Name: "late"}), ErrStopped)
}

func TestDispatcherRetryAndDeadLetter(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 4, RetryDelay: time.Millisecond}, nil, nil)

	var mu sync.Mutex
	var dead []string
	d.OnDeadLetter = func(task Task, err error) {
		mu.Lock()
		dead = append(dead, task.Name)
		mu.Unlock()
	}
	d.Start()

	var attempts int32
	require.NoError(t, d.Submit(Task{Name: "flaky", MaxRetry: 2, Run: func(ctx context.Context) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}}))
	require.NoError(t, d.Submit(Task{Name: "broken", MaxRetry: 1, Run: func(ctx context.Context) error {
		return errors.New("permanent")
	}}))
	require.NoError(t, d.Submit(Task{Name: "panics", Run: func(ctx context.Context) error {
		panic("boom")
	}}))

	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.ElementsMatch(t, []string{"broken", "panics"}, dead)
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1}, nil, nil)
	// 不启动 worker, 队列只能容纳一个任务
	noop := func(ctx context.Context) error { return nil }
	require.NoError(t, d.Submit(Task{Name: "a", Run: noop}))
	assert.ErrorIs(t, d.Submit(Task{Name: "b", Run: noop}), ErrQueueFull)
}
