package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/dist-job-scheduler/internal/attemptctx"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/domain"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/jobclient"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/metrics"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/repository"
)

const unexpectedStateFailureReason = "Stopped mid run, likely due to the background process being killed"

// Reaper observes tracked jobs and in-flight attempt rows, reconciling
// terminal status and failing stalled or orphaned attempts (spec §4.4).
type Reaper struct {
	store        repository.Store
	logger       *slog.Logger
	stallTimeout time.Duration
}

func NewReaper(store repository.Store, logger *slog.Logger, stallTimeout time.Duration) *Reaper {
	return &Reaper{store: store, logger: logger.With("component", "reaper"), stallTimeout: stallTimeout}
}

// Run performs the tracked-jobs sweep followed by the all-connectors
// orphan sweep, mutating tracked in place by deleting reconciled entries.
func (r *Reaper) Run(ctx context.Context, tracked map[int64]jobclient.Handle) error {
	if err := r.sweepTracked(ctx, tracked); err != nil {
		return err
	}
	return r.sweepOrphans(ctx, tracked)
}

func (r *Reaper) sweepTracked(ctx context.Context, tracked map[int64]jobclient.Handle) error {
	for attemptID, handle := range tracked {
		ctx := attemptctx.With(ctx, attemptID)

		attempt, err := r.store.GetAttempt(ctx, attemptID)
		if err != nil && !errors.Is(err, domain.ErrAttemptNotFound) {
			return err
		}

		selfReportedTerminal := err == nil && attempt.Status.IsTerminal()
		if !handle.Done() && !selfReportedTerminal {
			continue
		}

		erroredHandle := handle.Status() == jobclient.StatusError
		if erroredHandle {
			r.logger.ErrorContext(ctx, "tracked job errored", "attempt_id", attemptID, "error", handle.Exception())
		}

		handle.Release()
		delete(tracked, attemptID)

		if errors.Is(err, domain.ErrAttemptNotFound) {
			r.logger.WarnContext(ctx, "tracked attempt no longer exists", "attempt_id", attemptID)
			continue
		}
		if err != nil {
			return err
		}

		if attempt.Status == domain.AttemptInProgress || erroredHandle {
			if err := r.markRunFailed(ctx, attempt, unexpectedStateFailureReason); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Reaper) sweepOrphans(ctx context.Context, tracked map[int64]jobclient.Handle) error {
	connectors, err := r.store.ListConnectors(ctx)
	if err != nil {
		return err
	}

	for _, connector := range connectors {
		inProgress, err := r.store.AttemptsInProgress(ctx, connector.ID)
		if err != nil {
			return err
		}

		for _, attempt := range inProgress {
			ctx := attemptctx.With(ctx, attempt.ID)

			handle, isTracked := tracked[attempt.ID]
			if !isTracked {
				// The loop doesn't own a handle for this in-progress row:
				// either the supervisor restarted, or it never tracked it.
				if err := r.markRunFailed(ctx, attempt, unexpectedStateFailureReason); err != nil {
					return err
				}
				continue
			}

			now, err := r.store.DBNow(ctx)
			if err != nil {
				return err
			}
			stall := now.Sub(attempt.TimeUpdated)
			if stall > r.stallTimeout {
				r.logger.WarnContext(ctx, "indexing run frozen, cancelling", "attempt_id", attempt.ID, "stall", stall)
				handle.Cancel()
				if err := r.markRunFailed(ctx, attempt,
					"Indexing run frozen - no updates in the last three hours. The run will be re-attempted at next scheduled indexing time."); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// markRunFailed marks attempt FAILED and, if it belongs to the PRESENT
// model, updates the cc-pair's mirrored status too (FUTURE-model failures
// don't disturb the user-visible status).
func (r *Reaper) markRunFailed(ctx context.Context, attempt *domain.IndexAttempt, reason string) error {
	r.logger.WarnContext(ctx, "marking attempt failed", "attempt_id", attempt.ID, "reason", reason)
	if err := r.store.MarkAttemptFailed(ctx, attempt, reason); err != nil {
		return err
	}
	reasonClass := "stopped_mid_run"
	if reason != unexpectedStateFailureReason {
		reasonClass = "stalled"
	}
	metrics.ReaperFailuresTotal.WithLabelValues(reasonClass).Inc()
	if attempt.EmbeddingModel.Status == domain.ModelPresent {
		if err := r.store.UpdateCCPairStatus(ctx, attempt.ConnectorID, attempt.CredentialID, domain.AttemptFailed); err != nil {
			return err
		}
	}
	return nil
}
