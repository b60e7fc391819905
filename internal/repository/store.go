// Package repository defines the Store Gateway contract: every durable
// operation the indexing control loop needs, each atomic at the statement
// level. Implementations live under internal/infrastructure/.
package repository

import (
	"context"
	"time"

	"github.com/ErlanBelekov/dist-job-scheduler/internal/domain"
)

// Store is the full gateway the supervisor's components are built against.
// A single short-lived Store is opened per component invocation; sessions
// are never held across ticks (spec §9 "per-tick short sessions").
type Store interface {
	// ListConnectors returns all connectors with their credential
	// associations eagerly populated.
	ListConnectors(ctx context.Context) ([]*domain.Connector, error)

	// ListCCPairs returns every (connector, credential) aggregate row,
	// including the ingestion pseudo-pair.
	ListCCPairs(ctx context.Context) ([]*domain.CCPair, error)

	// CurrentModel returns the embedding model with status PRESENT.
	CurrentModel(ctx context.Context) (*domain.EmbeddingModel, error)

	// SecondaryModel returns the embedding model with status FUTURE, or
	// nil if no migration is in progress.
	SecondaryModel(ctx context.Context) (*domain.EmbeddingModel, error)

	// GetAttempt fetches a single attempt by id. Returns
	// domain.ErrAttemptNotFound if it no longer exists.
	GetAttempt(ctx context.Context, attemptID int64) (*domain.IndexAttempt, error)

	// LastAttempt returns the most recently created attempt for the given
	// triple, or nil if none exists.
	LastAttempt(ctx context.Context, connectorID, credentialID, modelID int64) (*domain.IndexAttempt, error)

	// AttemptsNotStarted returns every attempt still in NOT_STARTED.
	AttemptsNotStarted(ctx context.Context) ([]*domain.IndexAttempt, error)

	// AttemptsInProgress returns every IN_PROGRESS attempt for a connector.
	AttemptsInProgress(ctx context.Context, connectorID int64) ([]*domain.IndexAttempt, error)

	// CountDistinctCCPairsAttempted returns the number of distinct
	// (connector, credential) pairs that have at least one terminal
	// (SUCCESS or FAILED) attempt against the given embedding model.
	CountDistinctCCPairsAttempted(ctx context.Context, modelID int64) (int, error)

	// CreateAttempt inserts a new attempt in NOT_STARTED and returns it
	// with its generated id and timestamps.
	CreateAttempt(ctx context.Context, connectorID, credentialID, modelID int64) (*domain.IndexAttempt, error)

	// MarkAttemptFailed transitions attempt to FAILED with the given
	// reason. Idempotent: a no-op if the attempt is already terminal.
	MarkAttemptFailed(ctx context.Context, attempt *domain.IndexAttempt, reason string) error

	// UpdateCCPairStatus sets the mirrored attempt_status on a cc-pair row.
	UpdateCCPairStatus(ctx context.Context, connectorID, credentialID int64, status domain.AttemptStatus) error

	// SetModelStatus transitions an embedding model to a new status.
	SetModelStatus(ctx context.Context, modelID int64, status domain.ModelStatus) error

	// ResyncCCPair recomputes a cc-pair's aggregate status after a swap.
	ResyncCCPair(ctx context.Context, pair *domain.CCPair) error

	// MarkAllInProgressCCPairsFailed fails every cc-pair aggregate still
	// claiming IN_PROGRESS. Run once at process start to recover from a
	// supervisor crash.
	MarkAllInProgressCCPairsFailed(ctx context.Context) error

	// DBNow returns the store's authoritative server-side clock. Every
	// scheduling and stall decision must use this, never a local
	// timestamp (spec §9).
	DBNow(ctx context.Context) (time.Time, error)
}
