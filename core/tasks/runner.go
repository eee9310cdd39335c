package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"ambuplan/core/logger"
	"ambuplan/core/metrics"
	"ambuplan/core/model"
	"ambuplan/internal/eventbus"
)

// ErrQueueFull is returned by Submit when the backlog is saturated. Callers
// should surface it as backpressure, not as a job failure.
var ErrQueueFull = errors.New("task queue is full")

// ErrClosed is returned by Submit once the runner has been closed.
var ErrClosed = errors.New("task runner is closed")

// Job computes a schedule. The context is cancelled when the runner stops.
type Job func(ctx context.Context) (*model.Schedule, error)

// RunnerOptions configure the worker pool.
type RunnerOptions struct {
	Workers   int
	QueueSize int
	Logger    logger.Logger
	Recorder  metrics.TaskRecorder
}

type queued struct {
	id  string
	job Job
}

// Runner executes jobs on a fixed worker pool and tracks them in a Store.
// Every state transition is written to the store first and then published on
// the bus, so a poll after an event always observes the new state.
type Runner struct {
	store  Store
	bus    *eventbus.Bus[Event]
	log    logger.Logger
	rec    metrics.TaskRecorder
	queue  chan queued
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once

	// mu orders Submit against Close so no enqueue races the queue close.
	mu     sync.RWMutex
	closed bool
}

// NewRunner builds a runner with its worker pool already accepting work.
func NewRunner(store Store, opts RunnerOptions) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 2
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 64
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop{}
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NopSink{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		store:  store,
		bus:    eventbus.New[Event](),
		log:    opts.Logger,
		rec:    opts.Recorder,
		queue:  make(chan queued, opts.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// Events exposes the task transition bus for subscribers such as notifiers.
func (r *Runner) Events() *eventbus.Bus[Event] { return r.bus }

// Submit registers a new task and enqueues its job. It never blocks: a full
// queue fails fast with ErrQueueFull, a closed runner with ErrClosed.
func (r *Runner) Submit(ctx context.Context, job Job) (Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return Task{}, ErrClosed
	}
	t := Task{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.Create(ctx, t); err != nil {
		return Task{}, err
	}
	select {
	case r.queue <- queued{id: t.ID, job: job}:
	default:
		t.Status = StatusFailed
		t.Error = ErrQueueFull.Error()
		t.FinishedAt = time.Now().UTC()
		if err := r.store.Update(ctx, t); err != nil {
			r.log.Errorf("task %s: recording queue overflow: %v", t.ID, err)
		}
		return Task{}, ErrQueueFull
	}
	r.publish(t)
	r.log.Debugw("task enqueued", map[string]any{"task": t.ID})
	return t, nil
}

// Close stops accepting work, cancels running jobs and waits for the workers.
func (r *Runner) Close() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		r.cancel()
		close(r.queue)
		r.wg.Wait()
		r.bus.Close()
	})
}

func (r *Runner) worker() {
	defer r.wg.Done()
	for q := range r.queue {
		r.run(q)
	}
}

func (r *Runner) run(q queued) {
	t, err := r.store.Get(r.ctx, q.id)
	if err != nil {
		r.log.Errorf("task %s: loading before run: %v", q.id, err)
		return
	}
	t.Status = StatusRunning
	t.StartedAt = time.Now().UTC()
	r.transition(t)

	result, err := q.job(r.ctx)
	t.FinishedAt = time.Now().UTC()
	if err != nil {
		t.Status = StatusFailed
		t.Error = err.Error()
		r.log.Warnf("task %s failed: %v", t.ID, err)
	} else {
		t.Status = StatusCompleted
		t.Result = result
	}
	r.transition(t)
}

func (r *Runner) transition(t Task) {
	if err := r.store.Update(r.ctx, t); err != nil {
		r.log.Errorf("task %s: persisting status %s: %v", t.ID, t.Status, err)
	}
	r.publish(t)
}

func (r *Runner) publish(t Task) {
	now := time.Now().UTC()
	r.bus.Publish(Event{Task: t, Time: now})
	if err := r.rec.RecordTask(metrics.TaskEvent{TaskID: t.ID, Status: string(t.Status), Time: now}); err != nil {
		r.log.Warnf("task %s: recording metrics: %v", t.ID, err)
	}
}
