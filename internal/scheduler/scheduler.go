// Package scheduler implements the indexing control loop's Scheduler,
// Reaper, Dispatcher, and Swap Controller components, tied together by
// Supervisor (spec §4, §5).
package scheduler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ErlanBelekov/dist-job-scheduler/internal/domain"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/metrics"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/repository"
)

// Scheduler decides which (connector, credential, model) triples deserve a
// fresh IndexAttempt row and creates them. It never submits work itself
// (that's Dispatcher's job).
type Scheduler struct {
	store  repository.Store
	logger *slog.Logger
}

func NewScheduler(store repository.Store, logger *slog.Logger) *Scheduler {
	return &Scheduler{store: store, logger: logger.With("component", "scheduler")}
}

// Run evaluates the Cartesian product of connectors x credentials(connector)
// x relevant models against tracked, creating NOT_STARTED attempts for every
// triple that should be scheduled (spec §4.3).
func (s *Scheduler) Run(ctx context.Context, tracked map[domain.Triple]struct{}) error {
	connectors, err := s.store.ListConnectors(ctx)
	if err != nil {
		return err
	}

	models, err := s.relevantModels(ctx)
	if err != nil {
		return err
	}

	for _, connector := range connectors {
		for _, assoc := range connector.Credentials {
			for _, model := range models {
				triple := domain.Triple{
					ConnectorID:  connector.ID,
					CredentialID: assoc.CredentialID,
					ModelID:      model.ID,
				}
				if _, ok := tracked[triple]; ok {
					continue
				}

				last, err := s.store.LastAttempt(ctx, connector.ID, assoc.CredentialID, model.ID)
				if err != nil {
					return err
				}

				should, err := s.shouldSchedule(ctx, connector, last, model)
				if err != nil {
					return err
				}
				if !should {
					continue
				}

				if _, err := s.store.CreateAttempt(ctx, connector.ID, assoc.CredentialID, model.ID); err != nil {
					return err
				}
				metrics.AttemptsScheduledTotal.WithLabelValues(strings.ToLower(string(model.Status))).Inc()
				s.logger.InfoContext(ctx, "scheduled new attempt",
					"connector_id", connector.ID, "credential_id", assoc.CredentialID, "model_id", model.ID)

				if model.Status == domain.ModelPresent {
					if err := s.store.UpdateCCPairStatus(ctx, connector.ID, assoc.CredentialID, domain.AttemptNotStarted); err != nil {
						return err
					}
				}
			}
		}
	}

	return nil
}

// relevantModels returns the PRESENT model, plus the FUTURE model if a
// migration is in progress.
func (s *Scheduler) relevantModels(ctx context.Context) ([]*domain.EmbeddingModel, error) {
	current, err := s.store.CurrentModel(ctx)
	if err != nil {
		return nil, err
	}
	models := []*domain.EmbeddingModel{current}

	secondary, err := s.store.SecondaryModel(ctx)
	if err != nil {
		return nil, err
	}
	if secondary != nil {
		models = append(models, secondary)
	}
	return models, nil
}

// shouldSchedule implements the ordered rules of spec §4.3 exactly.
func (s *Scheduler) shouldSchedule(ctx context.Context, connector *domain.Connector, last *domain.IndexAttempt, model *domain.EmbeddingModel) (bool, error) {
	// Rule 1: forcing at least one build per real triple during a model
	// migration overrides everything below, including `disabled` (B4),
	// except the ingestion pseudo-connector (B5, P5). If that first
	// attempt later fails, the cadence rule below can permanently refuse
	// to reschedule a disabled connector — see SPEC_FULL.md Open Question 1.
	if model.Status == domain.ModelFuture && last == nil {
		return !connector.IsIngestion(), nil
	}

	if connector.Disabled {
		return false, nil
	}

	if connector.RefreshFreq == nil {
		return false, nil
	}

	if last == nil {
		return true, nil
	}

	// Only one queued attempt per triple at a time; a running one will
	// complete at some time >= now anyway.
	if last.Status == domain.AttemptNotStarted {
		return false, nil
	}

	now, err := s.store.DBNow(ctx)
	if err != nil {
		return false, err
	}
	elapsed := now.Sub(last.TimeUpdated)
	return elapsed >= secondsToDuration(*connector.RefreshFreq), nil
}
