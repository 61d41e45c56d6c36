// Package pool defines the unit of work executed by workers
package pool

// Job is an opaque unit of work. The pool invokes Run exactly once on a
// single worker and observes no result; anything the job produces is the
// job's own concern.
type Job interface {
	Run()
}

// JobFunc adapts a plain function to the Job interface
type JobFunc func()

// Run executes the function
func (f JobFunc) Run() {
	f()
}
