// Package queue implements the bounded task worker pool (§4.B), with a
// memory backend (buffered channel) and a shared backend (KVStore list),
// grounded on original_source/app/services/task_queue_service.py and the
// teacher's internal/alert.Batcher stop/drain idiom.
package queue

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"forexcopilot/internal/kvstore"
)

// Handler is the callable invoked for a job. Memory mode accepts any
// handler directly; shared mode requires it to be registered by name first.
type Handler func(ctx context.Context, args []interface{}, kwargs map[string]interface{}) error

type job struct {
	taskKey string
	handler Handler
	args    []interface{}
	kwargs  map[string]interface{}
}

type wireJob struct {
	JobID       string                 `json:"job_id"`
	TaskKey     string                 `json:"task_key"`
	HandlerName string                 `json:"handler"`
	Args        []interface{}          `json:"args"`
	Kwargs      map[string]interface{} `json:"kwargs"`
	EnqueuedAt  string                 `json:"enqueued_at"`
}

// Backend names as accepted by configuration.
const (
	BackendMemory = "memory"
	BackendShared = "shared"
)

const sharedQueueKey = "forex:task_queue"

// Stats mirrors get_stats() from the Python reference implementation.
type Stats struct {
	Started             bool     `json:"started"`
	BackendRequested     string   `json:"backend_requested"`
	Backend              string   `json:"backend"`
	Workers              int      `json:"workers"`
	MaxSize              int      `json:"max_size"`
	QueueSize            int      `json:"queue_size"`
	Enqueued             int64    `json:"enqueued"`
	Completed            int64    `json:"completed"`
	Failed               int64    `json:"failed"`
	RegisteredHandlers   []string `json:"registered_handlers"`
}

// Queue is the bounded worker pool described in §4.B.
type Queue struct {
	kv     kvstore.Store
	logger *zap.Logger

	backendRequested string
	backendActive    string
	workers          int
	maxSize          int

	mu      sync.Mutex
	started bool
	memCh   chan *job
	wg      sync.WaitGroup

	handlers map[string]Handler

	enqueued  int64
	completed int64
	failed    int64

	sharedSizeEstimate int64
}

// New constructs a Queue. backendRequested should be BackendMemory or
// BackendShared; an unreachable shared backend falls back to memory.
func New(kv kvstore.Store, logger *zap.Logger, backendRequested string) *Queue {
	return &Queue{
		kv:               kv,
		logger:           logger,
		backendRequested: backendRequested,
		backendActive:    BackendMemory,
		handlers:         make(map[string]Handler),
	}
}

// Register associates a name with a handler for shared-mode dispatch.
func (q *Queue) Register(name string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = h
}

// Start resolves the backend and launches the worker goroutines.
func (q *Queue) Start(ctx context.Context, workers, maxSize int) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	if workers < 1 {
		workers = 1
	}
	if maxSize < 1 {
		maxSize = 1
	}
	q.workers = workers
	q.maxSize = maxSize
	q.backendActive = BackendMemory

	if q.backendRequested == BackendShared {
		if q.kv != nil && q.kv.EnsureConnected(ctx) {
			q.backendActive = BackendShared
			q.sharedSizeEstimate = int64(q.kv.LLen(ctx, sharedQueueKey))
		} else {
			q.logger.Warn("queue: shared backend unavailable; falling back to memory")
		}
	}

	if q.backendActive == BackendMemory {
		q.memCh = make(chan *job, q.maxSize)
	}
	q.started = true
	q.mu.Unlock()

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.workerLoop(ctx, i)
	}
	q.logger.Info("queue: started",
		zap.String("backend", q.backendActive),
		zap.String("backend_requested", q.backendRequested),
		zap.Int("workers", workers),
		zap.Int("max_size", maxSize))
}

// Stop drains workers and releases the memory channel.
func (q *Queue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	active := q.backendActive
	workers := q.workers
	ch := q.memCh
	q.mu.Unlock()

	if active == BackendMemory && ch != nil {
		for i := 0; i < workers; i++ {
			ch <- nil
		}
	}
	q.wg.Wait()

	q.mu.Lock()
	q.memCh = nil
	q.mu.Unlock()
	q.logger.Info("queue: stopped")
}

// EnqueueFunc runs a handler directly — memory-mode only contract, since
// shared mode requires a registered name (see EnqueueNamed).
func (q *Queue) EnqueueFunc(ctx context.Context, taskKey string, h Handler, args []interface{}, kwargs map[string]interface{}) bool {
	q.mu.Lock()
	started := q.started
	active := q.backendActive
	q.mu.Unlock()
	if !started {
		return false
	}

	if active == BackendShared {
		q.logger.Warn("queue: direct callable rejected in shared mode; use EnqueueNamed", zap.String("task_key", taskKey))
		return false
	}
	return q.enqueueMemory(&job{taskKey: taskKey, handler: h, args: args, kwargs: kwargs})
}

// EnqueueNamed enqueues a job by registered handler name. Works in either
// backend; required for shared mode.
func (q *Queue) EnqueueNamed(ctx context.Context, taskKey, handlerName string, args []interface{}, kwargs map[string]interface{}) bool {
	q.mu.Lock()
	started := q.started
	active := q.backendActive
	handler, ok := q.handlers[handlerName]
	q.mu.Unlock()
	if !started {
		return false
	}
	if !ok {
		q.logger.Warn("queue: enqueue rejected, handler not registered", zap.String("handler", handlerName))
		return false
	}

	if active == BackendMemory {
		return q.enqueueMemory(&job{taskKey: taskKey, handler: handler, args: args, kwargs: kwargs})
	}

	if _, err := json.Marshal(args); err != nil {
		q.logger.Warn("queue: args not JSON-serializable", zap.String("task_key", taskKey))
		return false
	}
	if _, err := json.Marshal(kwargs); err != nil {
		q.logger.Warn("queue: kwargs not JSON-serializable", zap.String("task_key", taskKey))
		return false
	}

	item := wireJob{
		JobID:       uuid.NewString(),
		TaskKey:     taskKey,
		HandlerName: handlerName,
		Args:        args,
		Kwargs:      kwargs,
		EnqueuedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if !q.kv.Push(context.Background(), sharedQueueKey, item) {
		return false
	}
	atomic.AddInt64(&q.enqueued, 1)
	atomic.AddInt64(&q.sharedSizeEstimate, 1)
	return true
}

func (q *Queue) enqueueMemory(j *job) bool {
	select {
	case q.memCh <- j:
		atomic.AddInt64(&q.enqueued, 1)
		return true
	default:
		q.logger.Warn("queue: memory queue full, rejected task", zap.String("task_key", j.taskKey))
		return false
	}
}

func (q *Queue) workerLoop(ctx context.Context, index int) {
	defer q.wg.Done()
	q.mu.Lock()
	active := q.backendActive
	q.mu.Unlock()

	if active == BackendShared {
		q.sharedWorkerLoop(ctx, index)
		return
	}
	q.memoryWorkerLoop(ctx, index)
}

func (q *Queue) memoryWorkerLoop(ctx context.Context, index int) {
	for j := range q.memCh {
		if j == nil {
			return
		}
		q.runJob(ctx, index, j.taskKey, j.handler, j.args, j.kwargs)
	}
}

func (q *Queue) sharedWorkerLoop(ctx context.Context, index int) {
	for {
		q.mu.Lock()
		started := q.started
		q.mu.Unlock()
		if !started {
			return
		}

		raw, ok := q.kv.Pop(ctx, sharedQueueKey, time.Second)
		if !ok {
			continue
		}
		if cur := atomic.AddInt64(&q.sharedSizeEstimate, -1); cur < 0 {
			atomic.StoreInt64(&q.sharedSizeEstimate, 0)
		}

		var wj wireJob
		if err := json.Unmarshal(raw, &wj); err != nil {
			atomic.AddInt64(&q.failed, 1)
			q.logger.Warn("queue: malformed job payload", zap.Error(err))
			continue
		}

		q.mu.Lock()
		handler, found := q.handlers[wj.HandlerName]
		q.mu.Unlock()
		if !found {
			atomic.AddInt64(&q.failed, 1)
			q.logger.Warn("queue: missing handler for job",
				zap.Int("worker", index), zap.String("handler", wj.HandlerName), zap.String("task_key", wj.TaskKey))
			continue
		}
		q.runJob(ctx, index, wj.TaskKey, handler, wj.Args, wj.Kwargs)
	}
}

func (q *Queue) runJob(ctx context.Context, index int, taskKey string, h Handler, args []interface{}, kwargs map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&q.failed, 1)
			q.logger.Error("queue: worker recovered from panic", zap.Int("worker", index), zap.String("task_key", taskKey), zap.Any("panic", r))
		}
	}()
	if err := h(ctx, args, kwargs); err != nil {
		atomic.AddInt64(&q.failed, 1)
		q.logger.Warn("queue: job failed", zap.Int("worker", index), zap.String("task_key", taskKey), zap.Error(err))
		return
	}
	atomic.AddInt64(&q.completed, 1)
}

// Stats returns a point-in-time snapshot of queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	size := 0
	if q.backendActive == BackendMemory && q.memCh != nil {
		size = len(q.memCh)
	} else {
		size = int(atomic.LoadInt64(&q.sharedSizeEstimate))
		if size < 0 {
			size = 0
		}
	}

	names := make([]string, 0, len(q.handlers))
	for name := range q.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	return Stats{
		Started:            q.started,
		BackendRequested:   q.backendRequested,
		Backend:            q.backendActive,
		Workers:            q.workers,
		MaxSize:            q.maxSize,
		QueueSize:          size,
		Enqueued:           atomic.LoadInt64(&q.enqueued),
		Completed:          atomic.LoadInt64(&q.completed),
		Failed:             atomic.LoadInt64(&q.failed),
		RegisteredHandlers: names,
	}
}
