package scheduler

import (
	"context"
	"log/slog"

	"github.com/ErlanBelekov/dist-job-scheduler/internal/domain"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/metrics"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/repository"
)

// SwapController detects when the secondary embedding model has indexed
// every eligible triple at least once and atomically promotes it
// (spec §4.6).
type SwapController struct {
	store  repository.Store
	logger *slog.Logger
}

func NewSwapController(store repository.Store, logger *slog.Logger) *SwapController {
	return &SwapController{store: store, logger: logger.With("component", "swap")}
}

// Run checks the swap precondition and performs the swap if met. Success of
// individual attempts is intentionally not required — promotion happens
// once every eligible pair has at least one terminal attempt (success or
// failure) against the new model (see SPEC_FULL.md Open Question 3).
func (c *SwapController) Run(ctx context.Context) error {
	allCCPairs, err := c.store.ListCCPairs(ctx)
	if err != nil {
		return err
	}
	// The ingestion pseudo-pair (connector domain.IngestionConnectorID) is
	// never eligible for attempts; this "- 1" assumes exactly one such pair
	// exists and does not look at the pairs' connector ids (see SPEC_FULL.md
	// Open Question 2).
	eligible := len(allCCPairs) - 1

	future, err := c.store.SecondaryModel(ctx)
	if err != nil {
		return err
	}
	if future == nil {
		return nil
	}

	attempted, err := c.store.CountDistinctCCPairsAttempted(ctx, future.ID)
	if err != nil {
		return err
	}

	if attempted > eligible {
		return domain.ErrSwapInvariantViolated
	}

	if attempted != eligible {
		return nil
	}

	present, err := c.store.CurrentModel(ctx)
	if err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "swap condition met, promoting secondary model",
		"present_model_id", present.ID, "future_model_id", future.ID, "eligible", eligible)

	if err := c.store.SetModelStatus(ctx, present.ID, domain.ModelPast); err != nil {
		return err
	}
	if err := c.store.SetModelStatus(ctx, future.ID, domain.ModelPresent); err != nil {
		return err
	}

	for _, pair := range allCCPairs {
		if err := c.store.ResyncCCPair(ctx, pair); err != nil {
			return err
		}
	}

	metrics.ModelSwapsTotal.Inc()
	return nil
}
