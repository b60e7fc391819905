package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/dist-job-scheduler/internal/domain"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/jobclient"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/metrics"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/repository"
)

// Supervisor drives Swap -> Reap -> Schedule -> Dispatch on a fixed cadence
// and recovers from transient errors (spec §4.7). It owns the only mutable
// state the loop keeps: the tracked-jobs map.
type Supervisor struct {
	store      repository.Store
	scheduler  *Scheduler
	reaper     *Reaper
	dispatcher *Dispatcher
	swap       *SwapController
	logger     *slog.Logger
	delay      time.Duration

	tracked map[int64]jobclient.Handle
}

func NewSupervisor(
	store repository.Store,
	scheduler *Scheduler,
	reaper *Reaper,
	dispatcher *Dispatcher,
	swap *SwapController,
	delay time.Duration,
	logger *slog.Logger,
) *Supervisor {
	return &Supervisor{
		store:      store,
		scheduler:  scheduler,
		reaper:     reaper,
		dispatcher: dispatcher,
		swap:       swap,
		logger:     logger.With("component", "supervisor"),
		delay:      delay,
		tracked:    make(map[int64]jobclient.Handle),
	}
}

// Start runs the supervisor loop until ctx is cancelled. Call
// MarkAllInProgressCCPairsFailed once before the first tick at process
// startup; Start does not do this itself so callers can sequence it with
// other startup work.
func (s *Supervisor) Start(ctx context.Context) {
	s.logger.Info("supervisor started", "delay", s.delay)
	metrics.SupervisorStartTime.Set(float64(time.Now().Unix()))

	for {
		select {
		case <-ctx.Done():
			s.releaseAll()
			s.logger.Info("supervisor shut down")
			return
		default:
		}

		start := time.Now()
		s.tick(ctx)

		elapsed := time.Since(start)
		sleep := s.delay - elapsed
		if sleep < 0 {
			sleep = 0
		}

		select {
		case <-ctx.Done():
			s.releaseAll()
			s.logger.Info("supervisor shut down")
			return
		case <-time.After(sleep):
		}
	}
}

// tick executes one pass. Any error aborts the tick only; the tracked-jobs
// map is left untouched so ownership of in-flight jobs carries into the
// next tick (spec §5 "Failure isolation").
func (s *Supervisor) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick panicked", "panic", r)
		}
	}()

	s.logTracked(ctx)

	if err := s.timedRun("swap", func() error { return s.swap.Run(ctx) }); err != nil {
		s.logger.Error("swap failed", "error", err)
		return
	}
	if err := s.timedRun("reap", func() error { return s.reaper.Run(ctx, s.tracked) }); err != nil {
		s.logger.Error("reap failed", "error", err)
		return
	}
	if err := s.timedRun("schedule", func() error { return s.scheduler.Run(ctx, s.trackedTriples(ctx)) }); err != nil {
		s.logger.Error("schedule failed", "error", err)
		return
	}
	if err := s.timedRun("dispatch", func() error { return s.dispatcher.Run(ctx, s.tracked) }); err != nil {
		s.logger.Error("dispatch failed", "error", err)
		return
	}
}

// timedRun records a component's duration in the tick_duration_seconds
// histogram regardless of outcome.
func (s *Supervisor) timedRun(component string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.TickDuration.WithLabelValues(component).Observe(time.Since(start).Seconds())
	return err
}

// trackedTriples derives the Scheduler's Tracked input from the currently
// tracked attempt ids (spec §4.3).
func (s *Supervisor) trackedTriples(ctx context.Context) map[domain.Triple]struct{} {
	triples := make(map[domain.Triple]struct{}, len(s.tracked))
	for attemptID := range s.tracked {
		attempt, err := s.store.GetAttempt(ctx, attemptID)
		if err != nil {
			s.logger.Warn("unable to resolve tracked attempt for scheduling", "attempt_id", attemptID, "error", err)
			continue
		}
		triples[attempt.Triple()] = struct{}{}
	}
	return triples
}

func (s *Supervisor) logTracked(ctx context.Context) {
	if len(s.tracked) == 0 {
		return
	}
	if !s.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	statuses := make(map[int64]jobclient.HandleStatus, len(s.tracked))
	for id, h := range s.tracked {
		statuses[id] = h.Status()
	}
	s.logger.DebugContext(ctx, fmt.Sprintf("found %d existing indexing jobs", len(s.tracked)), "tracked", statuses)
}

func (s *Supervisor) releaseAll() {
	for id, h := range s.tracked {
		h.Release()
		delete(s.tracked, id)
	}
}
