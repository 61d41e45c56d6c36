// Package pool provides the shared job queue workers consume from
package pool

import "sync"

// Queue is an unbounded FIFO job queue shared by producers and workers.
// Closing the queue is the shutdown broadcast: once closed it rejects new
// jobs, but blocked and future Pop calls keep returning queued jobs until
// the backlog is drained.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	jobs   []Job
	closed bool
}

// NewQueue creates an empty open queue
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends a job to the tail of the queue and wakes one waiting worker.
// It returns ErrQueueClosed once Close has been called.
func (q *Queue) Push(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	q.jobs = append(q.jobs, job)
	q.cond.Signal()
	return nil
}

// Pop removes and returns the job at the head of the queue, blocking while
// the queue is empty and open. It returns ok=false only after the queue is
// closed and every queued job has been handed out.
func (q *Queue) Pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.jobs) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.jobs) == 0 {
		// closed and drained
		return nil, false
	}

	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	if len(q.jobs) == 0 {
		// release the drained backing array
		q.jobs = nil
	}
	return job, true
}

// Close marks the queue closed and wakes every waiting worker. Closing an
// already closed queue is a no-op.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued jobs
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Closed reports whether Close has been called
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
