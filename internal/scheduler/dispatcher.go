package scheduler

import (
	"context"
	"log/slog"

	"github.com/ErlanBelekov/dist-job-scheduler/internal/attemptctx"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/domain"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/jobclient"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/metrics"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/repository"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/threads"
)

// Dispatcher picks up not-yet-running attempts and submits them to the
// correct pool (spec §4.5).
type Dispatcher struct {
	store           repository.Store
	primaryClient   jobclient.Client
	secondaryClient jobclient.Client
	minThreads      int
	logger          *slog.Logger
}

func NewDispatcher(store repository.Store, primary, secondary jobclient.Client, minThreads int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:           store,
		primaryClient:   primary,
		secondaryClient: secondary,
		minThreads:      minThreads,
		logger:          logger.With("component", "dispatcher"),
	}
}

// Run submits every not-yet-tracked NOT_STARTED attempt to its pool and
// adds the resulting handle to tracked.
func (d *Dispatcher) Run(ctx context.Context, tracked map[int64]jobclient.Handle) error {
	attempts, err := d.store.AttemptsNotStarted(ctx)
	if err != nil {
		return err
	}

	for _, attempt := range attempts {
		if _, already := tracked[attempt.ID]; already {
			continue
		}

		ctx := attemptctx.With(ctx, attempt.ID)

		if attempt.Connector == nil {
			d.logger.WarnContext(ctx, "connector deleted, failing attempt", "attempt_id", attempt.ID)
			if err := d.store.MarkAttemptFailed(ctx, attempt, "Connector is null"); err != nil {
				return err
			}
			continue
		}
		if attempt.Credential == nil {
			d.logger.WarnContext(ctx, "credential deleted, failing attempt", "attempt_id", attempt.ID)
			if err := d.store.MarkAttemptFailed(ctx, attempt, "Credential is null"); err != nil {
				return err
			}
			continue
		}

		client := d.primaryClient
		secondary := attempt.EmbeddingModel.Status == domain.ModelFuture
		if secondary {
			client = d.secondaryClient
		}

		numThreads := threads.NumThreads(d.minThreads)
		handle, err := client.Submit(ctx, attempt.ID, numThreads)
		if err != nil || handle == nil {
			// Left in NOT_STARTED; retried next tick (spec §7 item 3).
			d.logger.ErrorContext(ctx, "submit failed, will retry next tick", "attempt_id", attempt.ID, "error", err)
			continue
		}

		tracked[attempt.ID] = handle
		pool := "primary"
		if secondary {
			pool = "secondary"
		}
		metrics.AttemptsDispatchedTotal.WithLabelValues(pool).Inc()
		d.logger.InfoContext(ctx, "dispatched attempt",
			"attempt_id", attempt.ID, "connector_id", attempt.ConnectorID,
			"credential_id", attempt.CredentialID, "secondary", secondary, "num_threads", numThreads)
	}

	metrics.TrackedJobs.Set(float64(len(tracked)))
	return nil
}
