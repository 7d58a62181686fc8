// Package loader implements the worker pool that drains the processing
// queue, applies the configured Processor to each raw array, and hands the
// results to the assembly stage.
package loader

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/diffra/internal/queue"
	"github.com/hupe1980/diffra/model"
	"github.com/hupe1980/diffra/process"
)

// State is the loader lifecycle state.
type State int32

const (
	// StateStopped means no worker goroutines exist.
	StateStopped State = iota
	// StateRunning means workers are draining the processing queue.
	StateRunning
	// StateStopping means shutdown has begun; workers are winding down.
	StateStopping
)

// String returns a string representation of the State.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Task is one unit of work: a raw source array plus the position it was
// appended at, which fixes its target slice in the assembled buffer.
type Task struct {
	SourceIndex int
	Array       model.PatternArray
}

// Assembled is one processed batch ready to be folded into the buffer.
type Assembled struct {
	SourceIndex int
	Label       string
	Indexes     []int64
	Block       *model.Block
}

// Metrics receives per-item observations from worker goroutines. A nil
// Metrics disables collection.
type Metrics interface {
	RecordProcess(duration time.Duration, err error)
	RecordDrop(label string)
}

// Options configures a Loader.
type Options struct {
	// Workers is the worker goroutine count. Defaults to 1.
	Workers int
	// QueueBound bounds the processing queue. <= 0 means unbounded, which
	// keeps LoadArray non-blocking at the cost of unbounded memory growth
	// under sustained overload.
	QueueBound int
	// PopTimeout bounds a worker's blocking wait on the processing queue, so
	// the stop signal is observed at least once per interval. Defaults to
	// 250ms.
	PopTimeout time.Duration
	// Logger receives per-item failure logs. Defaults to slog.Default().
	Logger *slog.Logger
	// Metrics receives per-item observations. Optional.
	Metrics Metrics
}

// Loader is the processing worker pool. Lifecycle:
// Stopped -> Running -> Stopping -> Stopped.
type Loader struct {
	mu    sync.Mutex
	state atomic.Int32

	workers    int
	popTimeout time.Duration
	logger     *slog.Logger
	metrics    Metrics

	in  *queue.Queue[Task]
	out *queue.Queue[Assembled]

	// Set fresh on every Start; snapshot of the processor in effect for the
	// lifetime of the current pool.
	processor *process.Processor
	ctx       context.Context
	stop      chan struct{}
	wg        sync.WaitGroup
}

// New creates a stopped Loader.
func New(o Options) *Loader {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.PopTimeout <= 0 {
		o.PopTimeout = 250 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return &Loader{
		workers:    o.Workers,
		popTimeout: o.PopTimeout,
		logger:     o.Logger,
		metrics:    o.Metrics,
		in:         queue.New[Task](o.QueueBound),
		out:        queue.New[Assembled](0),
	}
}

// State returns the current lifecycle state.
func (l *Loader) State() State {
	return State(l.state.Load())
}

// Start snapshots p and spawns the worker pool. Frames processed after a
// settings change keep using this snapshot until the next Start. Starting
// while running stops the current pool first, discarding unprocessed work.
func (l *Loader) Start(ctx context.Context, p *process.Processor) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.State() == StateRunning {
		l.stopLocked(false)
	}

	// Stale results from a previous run must not leak into the next
	// assembly pass.
	for range l.out.Drain() {
	}

	l.processor = p
	l.ctx = ctx
	l.stop = make(chan struct{})
	l.state.Store(int32(StateRunning))

	for i := 0; i < l.workers; i++ {
		l.wg.Add(1)
		go l.worker()
	}
}

// LoadArray enqueues one raw array. With an unbounded queue this never
// blocks the caller; producers are never back-pressured.
func (l *Loader) LoadArray(sourceIndex int, array model.PatternArray) {
	l.in.Push(Task{SourceIndex: sourceIndex, Array: array})
}

// Stop shuts the pool down synchronously. If finish is true it blocks until
// the processing queue is fully drained; otherwise pending entries are
// discarded unprocessed. In-flight items complete either way, and no worker
// goroutine outlives the call.
func (l *Loader) Stop(finish bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopLocked(finish)
}

func (l *Loader) stopLocked(finish bool) {
	if l.State() != StateRunning {
		// No workers exist, but a cancel still discards queued work.
		if !finish {
			for range l.in.Drain() {
			}
		}
		return
	}
	l.state.Store(int32(StateStopping))

	if finish {
		l.in.Join()
	} else {
		for range l.in.Drain() {
		}
	}

	close(l.stop)
	l.wg.Wait()
	l.state.Store(int32(StateStopped))
}

// Next pops one processed batch from the assembly queue without blocking.
func (l *Loader) Next() (Assembled, bool) {
	a, ok := l.out.Pop(0)
	if ok {
		l.out.TaskDone()
	}
	return a, ok
}

// QueueSize returns the combined depth of the processing and assembly
// queues, for back-pressure monitoring.
func (l *Loader) QueueSize() int {
	return l.in.Len() + l.out.Len()
}

func (l *Loader) worker() {
	defer l.wg.Done()

	for {
		select {
		case <-l.stop:
			return
		default:
		}

		task, ok := l.in.Pop(l.popTimeout)
		if !ok {
			continue
		}
		l.handle(task)
	}
}

// handle processes one task. Failure is isolated per item: the array is
// logged and dropped, its buffer slice stays unloaded, and the worker loop
// continues.
func (l *Loader) handle(task Task) {
	defer l.in.TaskDone()

	began := time.Now()

	block, err := task.Array.Data(l.ctx)
	if err == nil {
		block, err = l.processor.Process(block)
	}

	if l.metrics != nil {
		l.metrics.RecordProcess(time.Since(began), err)
	}

	if err != nil {
		l.logger.Warn("dropping pattern array",
			slog.String("label", task.Array.Label()),
			slog.Any("error", err))
		if l.metrics != nil {
			l.metrics.RecordDrop(task.Array.Label())
		}
		return
	}

	l.out.Push(Assembled{
		SourceIndex: task.SourceIndex,
		Label:       task.Array.Label(),
		Indexes:     task.Array.Indexes(),
		Block:       block,
	})
}
