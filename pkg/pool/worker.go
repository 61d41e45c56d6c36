package pool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/quartz"
)

// WorkerState defines the state of a Worker
type WorkerState int32

const (
	// WorkerStateIdle represents idle worker state
	WorkerStateIdle WorkerState = iota
	// WorkerStateWorking represents working worker state
	WorkerStateWorking
	// WorkerStateStopped represents stopped worker state
	WorkerStateStopped
)

// String returns the string representation of WorkerState
func (ws WorkerState) String() string {
	switch ws {
	case WorkerStateIdle:
		return "idle"
	case WorkerStateWorking:
		return "working"
	case WorkerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PanicHandler is invoked after a worker recovers a panicking job. The stack
// covers the panicking goroutine only. Handlers run on the worker goroutine
// and should return quickly.
type PanicHandler func(workerID int, recovered interface{}, stack []byte)

// Worker represents a single worker goroutine consuming from a shared queue
type Worker struct {
	id    int
	state int32 // atomic state
	queue *Queue
	done  chan struct{}

	// statistics
	totalProcessed int64
	totalRecovered int64
	lastJobTime    int64 // Unix nanosecond timestamp

	// panic handling
	panicHandler PanicHandler

	// time operations
	clock quartz.Clock

	// synchronization
	mu sync.RWMutex
}

// NewWorker creates a new Worker with the default real clock
func NewWorker(id int, queue *Queue) *Worker {
	return NewWorkerWithClock(id, queue, quartz.NewReal())
}

// NewWorkerWithClock creates a new Worker with the specified clock
func NewWorkerWithClock(id int, queue *Queue, clock quartz.Clock) *Worker {
	if clock == nil {
		clock = quartz.NewReal()
	}

	return &Worker{
		id:    id,
		state: int32(WorkerStateIdle),
		queue: queue,
		done:  make(chan struct{}),
		clock: clock,
	}
}

// ID returns the Worker ID
func (w *Worker) ID() int {
	return w.id
}

// State returns the current Worker state
func (w *Worker) State() WorkerState {
	return WorkerState(atomic.LoadInt32(&w.state))
}

// SetPanicHandler sets the panic handler
func (w *Worker) SetPanicHandler(handler PanicHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.panicHandler = handler
}

// Done returns a channel closed when the worker goroutine has exited
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Run consumes jobs from the queue until it is closed and drained. It is
// intended to be called once, on its own goroutine.
func (w *Worker) Run() {
	defer close(w.done)

	for {
		job, ok := w.queue.Pop()
		if !ok {
			atomic.StoreInt32(&w.state, int32(WorkerStateStopped))
			return
		}
		w.process(job)
	}
}

// process executes a single job
func (w *Worker) process(job Job) {
	// set to working state
	atomic.StoreInt32(&w.state, int32(WorkerStateWorking))
	defer atomic.StoreInt32(&w.state, int32(WorkerStateIdle))

	// record start time
	atomic.StoreInt64(&w.lastJobTime, w.clock.Now().UnixNano())

	// update statistics
	if w.runJob(job) {
		atomic.AddInt64(&w.totalProcessed, 1)
	} else {
		atomic.AddInt64(&w.totalRecovered, 1)
	}
}

// runJob invokes the job with panic recovery support
func (w *Worker) runJob(job Job) (completed bool) {
	defer func() {
		if r := recover(); r != nil {
			// record panic information
			var buf [4096]byte
			n := runtime.Stack(buf[:], false)

			w.mu.RLock()
			handler := w.panicHandler
			w.mu.RUnlock()

			if handler != nil {
				handler(w.id, r, buf[:n])
			}
		}
	}()

	job.Run()
	return true
}

// Stats gets Worker statistics
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		ID:             w.id,
		State:          w.State(),
		TotalProcessed: atomic.LoadInt64(&w.totalProcessed),
		TotalRecovered: atomic.LoadInt64(&w.totalRecovered),
		LastJobTime:    time.Unix(0, atomic.LoadInt64(&w.lastJobTime)),
	}
}

// WorkerStats defines Worker statistics
type WorkerStats struct {
	ID             int
	State          WorkerState
	TotalProcessed int64
	TotalRecovered int64
	LastJobTime    time.Time
}

// IsActive checks if the Worker is executing a job
func (ws WorkerStats) IsActive() bool {
	return ws.State == WorkerStateWorking
}

// IsIdle checks if the Worker is waiting for a job
func (ws WorkerStats) IsIdle() bool {
	return ws.State == WorkerStateIdle
}
