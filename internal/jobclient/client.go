// Package jobclient provides a uniform submission/observation interface
// over either a local cooperative pool or a distributed pool, so the
// Scheduler/Reaper/Dispatcher never need to know which backs a given
// attempt (spec §4.2, §9 "tracked-jobs map").
package jobclient

import "context"

// HandleStatus is the observable lifecycle state of a submitted job.
type HandleStatus string

const (
	StatusPending HandleStatus = "pending"
	StatusRunning HandleStatus = "running"
	StatusFinished HandleStatus = "finished"
	StatusError    HandleStatus = "error"
)

// WorkerFunc is the indexing worker entrypoint contract (spec §6): it
// fetches documents, embeds them, and writes to the index store. The loop
// only submits it and observes its terminal state; document I/O itself is
// out of scope here.
type WorkerFunc func(ctx context.Context, attemptID int64, numThreads int) error

// Handle is an opaque reference to a submitted job.
type Handle interface {
	Status() HandleStatus
	// Done reports true iff Status is finished or error.
	Done() bool
	// Exception is meaningful only when Status is error.
	Exception() error
	// Cancel is best-effort and safe to call repeatedly.
	Cancel()
	// Release releases client-side resources. Must be called exactly once
	// per handle when the loop stops tracking it.
	Release()
}

// Client submits work to either the local or distributed pool.
type Client interface {
	// Submit is non-blocking and returns an opaque handle. A non-nil error
	// or a nil handle means the caller should
	// leave the attempt in NOT_STARTED and retry next tick (spec §7 item 3).
	Submit(ctx context.Context, attemptID int64, numThreads int) (Handle, error)
}
