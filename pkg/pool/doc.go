// Package pool provides a fixed-size worker pool backed by an unbounded shared job queue.
//
// Key Features:
//
// 1. Fixed worker allocation:
//   - New spawns exactly the requested number of worker goroutines
//   - Pool size is immutable for the lifetime of the pool
//   - Creation fails with ErrInvalidPoolSize for sizes below one
//
// 2. Unbounded job queue:
//   - Submit never blocks and never drops a job while the pool is running
//   - FIFO delivery per producer, exactly-once delivery to a single worker
//   - The queue lock covers only enqueue and dequeue, never job execution
//
// 3. Graceful shutdown:
//   - Shutdown closes the queue so no further submissions are accepted
//   - Workers drain the remaining backlog before exiting
//   - Every Shutdown caller blocks until all workers have finished
//   - Repeated Shutdown calls are safe
//
// 4. Worker resilience:
//   - A panicking job is recovered and counted; the worker survives
//   - Optional panic handler for logging or alerting
//   - Per-worker state and counters for diagnostics
//
// Basic usage example:
//
//	pool, err := pool.New(4)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer pool.Shutdown()
//
//	err = pool.SubmitFunc(func() {
//		// Your business logic
//	})
//
// Thread safety:
//
// All public types and methods are thread-safe and can be safely used in concurrent environments.
package pool
