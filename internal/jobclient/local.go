package jobclient

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// LocalClient is an in-process cooperative pool: one goroutine per submitted
// job, with a weighted semaphore of size N bounding how many run WorkerFunc
// at once. It is the Go
// analogue of a single-process Dask LocalCluster / a SimpleJobClient.
type LocalClient struct {
	fn     WorkerFunc
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewLocalClient builds a local pool with the given worker concurrency.
// Concurrency is fixed at construction time (spec §9: pool configuration is
// applied once, never mutated from within the tick loop).
func NewLocalClient(fn WorkerFunc, concurrency int, logger *slog.Logger) *LocalClient {
	if concurrency < 1 {
		concurrency = 1
	}
	return &LocalClient{
		fn:     fn,
		sem:    semaphore.NewWeighted(int64(concurrency)),
		logger: logger.With("component", "jobclient.local"),
	}
}

func (c *LocalClient) Submit(_ context.Context, attemptID int64, numThreads int) (Handle, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	h := &localHandle{cancel: cancel, status: StatusPending}

	go func() {
		if err := c.sem.Acquire(runCtx, 1); err != nil {
			h.finish(StatusError, err)
			return
		}
		defer c.sem.Release(1)

		h.setRunning()
		c.logger.InfoContext(runCtx, "running indexing attempt", "attempt_id", attemptID, "num_threads", numThreads)

		if err := c.fn(runCtx, attemptID, numThreads); err != nil {
			c.logger.ErrorContext(runCtx, "indexing attempt errored", "attempt_id", attemptID, "error", err)
			h.finish(StatusError, err)
			return
		}
		h.finish(StatusFinished, nil)
	}()

	return h, nil
}

type localHandle struct {
	mu     sync.Mutex
	status HandleStatus
	err    error
	cancel context.CancelFunc
}

func (h *localHandle) Status() HandleStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *localHandle) Done() bool {
	s := h.Status()
	return s == StatusFinished || s == StatusError
}

func (h *localHandle) Exception() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *localHandle) Cancel() {
	h.cancel()
}

func (h *localHandle) Release() {
	h.cancel()
}

func (h *localHandle) setRunning() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status == StatusPending {
		h.status = StatusRunning
	}
}

func (h *localHandle) finish(status HandleStatus, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
	h.err = err
}
