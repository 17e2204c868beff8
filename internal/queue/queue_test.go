package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"forexcopilot/internal/kvstore"
)

func waitForStats(t *testing.T, q *Queue, done func(Stats) bool) Stats {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		s := q.Stats()
		if done(s) {
			return s
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition never satisfied, last stats: %+v", q.Stats())
	return Stats{}
}

func TestMemoryQueue_EnqueueFunc_CompletesAndCountsBalance(t *testing.T) {
	q := New(nil, zap.NewNop(), BackendMemory)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx, 2, 10)
	defer q.Stop()

	for i := 0; i < 5; i++ {
		ok := q.EnqueueFunc(ctx, "job", func(ctx context.Context, args []interface{}, kwargs map[string]interface{}) error {
			return nil
		}, nil, nil)
		if !ok {
			t.Fatalf("expected enqueue to succeed")
		}
	}

	s := waitForStats(t, q, func(s Stats) bool { return s.Completed+s.Failed == 5 })
	if s.Enqueued != s.Completed+s.Failed+int64(s.QueueSize) {
		t.Fatalf("expected enqueued to balance against completed+failed+queue_size, got %+v", s)
	}
}

func TestMemoryQueue_FailedJobsCounted(t *testing.T) {
	q := New(nil, zap.NewNop(), BackendMemory)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx, 1, 10)
	defer q.Stop()

	q.EnqueueFunc(ctx, "job", func(ctx context.Context, args []interface{}, kwargs map[string]interface{}) error {
		return errors.New("boom")
	}, nil, nil)

	waitForStats(t, q, func(s Stats) bool { return s.Failed == 1 })
}

func TestMemoryQueue_RejectsWhenFull(t *testing.T) {
	q := New(nil, zap.NewNop(), BackendMemory)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	block := make(chan struct{})
	q.Start(ctx, 1, 1)
	defer func() {
		close(block)
		q.Stop()
	}()

	q.EnqueueFunc(ctx, "blocker", func(ctx context.Context, args []interface{}, kwargs map[string]interface{}) error {
		<-block
		return nil
	}, nil, nil)
	// give the worker a moment to pick up the blocking job so the channel buffer is free
	time.Sleep(20 * time.Millisecond)
	q.EnqueueFunc(ctx, "filler", func(ctx context.Context, args []interface{}, kwargs map[string]interface{}) error { return nil }, nil, nil)

	if ok := q.EnqueueFunc(ctx, "overflow", func(ctx context.Context, args []interface{}, kwargs map[string]interface{}) error { return nil }, nil, nil); ok {
		t.Fatalf("expected enqueue to be rejected once the queue is full")
	}
}

func TestSharedQueue_EnqueueNamed_RoundTrips(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()

	kv := kvstore.New(kvstore.Config{Enabled: true, URL: "redis://" + mr.Addr()}, zap.NewNop())
	q := New(kv, zap.NewNop(), BackendShared)

	done := make(chan struct{}, 1)
	q.Register("echo", func(ctx context.Context, args []interface{}, kwargs map[string]interface{}) error {
		done <- struct{}{}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx, 1, 10)
	defer q.Stop()

	if ok := q.EnqueueNamed(ctx, "task-1", "echo", nil, map[string]interface{}{"x": 1}); !ok {
		t.Fatalf("expected shared enqueue to succeed")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("handler was never invoked")
	}

	if q.Stats().Backend != BackendShared {
		t.Fatalf("expected shared backend to remain active")
	}
}

func TestSharedQueue_FallsBackToMemoryWhenUnreachable(t *testing.T) {
	kv := kvstore.New(kvstore.Config{Enabled: true, URL: "redis://127.0.0.1:1/0"}, zap.NewNop())
	q := New(kv, zap.NewNop(), BackendShared)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx, 1, 5)
	defer q.Stop()

	if got := q.Stats().Backend; got != BackendMemory {
		t.Fatalf("expected fallback to memory backend, got %s", got)
	}
}

func TestEnqueueNamed_RejectsUnregisteredHandler(t *testing.T) {
	q := New(nil, zap.NewNop(), BackendMemory)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx, 1, 5)
	defer q.Stop()

	if ok := q.EnqueueNamed(ctx, "task", "missing", nil, nil); ok {
		t.Fatalf("expected enqueue of an unregistered handler name to fail")
	}
}
