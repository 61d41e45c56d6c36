// Package pool defines error values returned by pool operations
package pool

import "errors"

// Predefined errors
var (
	// ErrInvalidPoolSize indicates a pool size below one was requested
	ErrInvalidPoolSize = errors.New("pool size must be positive")

	// ErrPoolClosed indicates the pool has begun shutdown and accepts no more jobs
	ErrPoolClosed = errors.New("pool is closed")

	// ErrQueueClosed indicates the job queue is closed
	ErrQueueClosed = errors.New("queue is closed")

	// ErrNilJob indicates a nil job was submitted
	ErrNilJob = errors.New("job cannot be nil")
)
