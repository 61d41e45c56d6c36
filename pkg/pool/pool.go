// Package pool implements the fixed-size worker pool
package pool

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
)

// State defines the lifecycle state of a Pool
type State int32

const (
	// StateUninitialized is the zero value; only a Pool built by New is valid
	StateUninitialized State = iota
	// StateRunning represents a pool accepting and executing jobs
	StateRunning
	// StateShuttingDown represents a pool draining its backlog
	StateShuttingDown
	// StateStopped represents a pool whose workers have all exited
	StateStopped
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting-down"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Option configures a Pool before its workers start
type Option func(*Pool)

// WithClock sets the clock used for worker timestamps and uptime
func WithClock(clock quartz.Clock) Option {
	return func(p *Pool) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithPanicHandler sets the handler invoked after a worker recovers a
// panicking job
func WithPanicHandler(handler PanicHandler) Option {
	return func(p *Pool) {
		p.panicHandler = handler
	}
}

// Pool is a fixed-size worker pool. All workers consume from one shared
// unbounded queue, so Submit never blocks while the pool is running.
type Pool struct {
	size    int
	queue   *Queue
	workers []*Worker
	clock   quartz.Clock

	panicHandler PanicHandler

	// state management
	state        int32
	shutdownOnce sync.Once
	wg           sync.WaitGroup
	started      time.Time
}

// New creates a pool with exactly size workers, already running. It returns
// ErrInvalidPoolSize when size is below one, in which case no goroutines are
// spawned.
func New(size int, opts ...Option) (*Pool, error) {
	// parameter validation
	if size <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidPoolSize, size)
	}

	p := &Pool{
		size:  size,
		queue: NewQueue(),
		clock: quartz.NewReal(),
		state: int32(StateRunning),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.started = p.clock.Now()

	// spawn workers
	p.workers = make([]*Worker, size)
	for i := 0; i < size; i++ {
		w := NewWorkerWithClock(i, p.queue, p.clock)
		if p.panicHandler != nil {
			w.SetPanicHandler(p.panicHandler)
		}
		p.workers[i] = w

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.Run()
		}()
	}

	return p, nil
}

// Submit enqueues a job for execution by the next idle worker. It returns
// ErrPoolClosed once Shutdown has begun and never blocks.
func (p *Pool) Submit(job Job) error {
	if job == nil {
		return ErrNilJob
	}

	// the queue's closed flag is the single source of truth, so a Submit
	// racing Shutdown either enqueues (and the job is drained) or fails
	if err := p.queue.Push(job); err != nil {
		return ErrPoolClosed
	}
	return nil
}

// SubmitFunc enqueues a plain function as a job
func (p *Pool) SubmitFunc(f func()) error {
	if f == nil {
		return ErrNilJob
	}
	return p.Submit(JobFunc(f))
}

// Shutdown stops admission, waits for the backlog to drain and every worker
// to exit. It is idempotent; every caller blocks until the pool is stopped.
// Running jobs are never cancelled.
func (p *Pool) Shutdown() {
	p.shutdownOnce.Do(func() {
		atomic.StoreInt32(&p.state, int32(StateShuttingDown))
		p.queue.Close()
	})

	p.wg.Wait()
	atomic.StoreInt32(&p.state, int32(StateStopped))
}

// State returns the current pool state
func (p *Pool) State() State {
	return State(atomic.LoadInt32(&p.state))
}

// Size returns the worker pool size
func (p *Pool) Size() int {
	return p.size
}

// QueueLength gets the current number of queued jobs
func (p *Pool) QueueLength() int {
	return p.queue.Len()
}

// Stats defines pool statistics
type Stats struct {
	PoolSize       int
	ActiveWorkers  int
	QueueLength    int
	TotalProcessed int64
	TotalRecovered int64
	Uptime         time.Duration
}

// Stats gets basic worker pool statistics
func (p *Pool) Stats() Stats {
	var active int
	var processed, recovered int64
	for _, w := range p.workers {
		ws := w.Stats()
		if ws.IsActive() {
			active++
		}
		processed += ws.TotalProcessed
		recovered += ws.TotalRecovered
	}

	return Stats{
		PoolSize:       p.size,
		ActiveWorkers:  active,
		QueueLength:    p.queue.Len(),
		TotalProcessed: processed,
		TotalRecovered: recovered,
		Uptime:         p.clock.Since(p.started),
	}
}

// GetWorkerStats gets statistics of all Workers
func (p *Pool) GetWorkerStats() []WorkerStats {
	stats := make([]WorkerStats, len(p.workers))
	for i, w := range p.workers {
		stats[i] = w.Stats()
	}
	return stats
}
