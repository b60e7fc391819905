package scheduler_test

import (
	"context"
	"time"

	"github.com/ErlanBelekov/dist-job-scheduler/internal/domain"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/jobclient"
)

// fakeStore implements repository.Store with one overridable function field
// per method, in the teacher's fakeUserRepo style (see
// internal/usecase/auth_test.go). Unset fields fall back to harmless
// zero-value behavior so a test only needs to wire what it exercises.
type fakeStore struct {
	listConnectors                func(ctx context.Context) ([]*domain.Connector, error)
	listCCPairs                   func(ctx context.Context) ([]*domain.CCPair, error)
	currentModel                  func(ctx context.Context) (*domain.EmbeddingModel, error)
	secondaryModel                func(ctx context.Context) (*domain.EmbeddingModel, error)
	getAttempt                    func(ctx context.Context, attemptID int64) (*domain.IndexAttempt, error)
	lastAttempt                   func(ctx context.Context, connectorID, credentialID, modelID int64) (*domain.IndexAttempt, error)
	attemptsNotStarted             func(ctx context.Context) ([]*domain.IndexAttempt, error)
	attemptsInProgress             func(ctx context.Context, connectorID int64) ([]*domain.IndexAttempt, error)
	countDistinctCCPairsAttempted  func(ctx context.Context, modelID int64) (int, error)
	createAttempt                  func(ctx context.Context, connectorID, credentialID, modelID int64) (*domain.IndexAttempt, error)
	markAttemptFailed               func(ctx context.Context, attempt *domain.IndexAttempt, reason string) error
	updateCCPairStatus              func(ctx context.Context, connectorID, credentialID int64, status domain.AttemptStatus) error
	setModelStatus                  func(ctx context.Context, modelID int64, status domain.ModelStatus) error
	resyncCCPair                    func(ctx context.Context, pair *domain.CCPair) error
	markAllInProgressCCPairsFailed  func(ctx context.Context) error
	dbNow                           func(ctx context.Context) (time.Time, error)
}

func (s *fakeStore) ListConnectors(ctx context.Context) ([]*domain.Connector, error) {
	if s.listConnectors == nil {
		return nil, nil
	}
	return s.listConnectors(ctx)
}

func (s *fakeStore) ListCCPairs(ctx context.Context) ([]*domain.CCPair, error) {
	if s.listCCPairs == nil {
		return nil, nil
	}
	return s.listCCPairs(ctx)
}

func (s *fakeStore) CurrentModel(ctx context.Context) (*domain.EmbeddingModel, error) {
	if s.currentModel == nil {
		return nil, domain.ErrNoCurrentModel
	}
	return s.currentModel(ctx)
}

func (s *fakeStore) SecondaryModel(ctx context.Context) (*domain.EmbeddingModel, error) {
	if s.secondaryModel == nil {
		return nil, nil
	}
	return s.secondaryModel(ctx)
}

func (s *fakeStore) GetAttempt(ctx context.Context, attemptID int64) (*domain.IndexAttempt, error) {
	if s.getAttempt == nil {
		return nil, domain.ErrAttemptNotFound
	}
	return s.getAttempt(ctx, attemptID)
}

func (s *fakeStore) LastAttempt(ctx context.Context, connectorID, credentialID, modelID int64) (*domain.IndexAttempt, error) {
	if s.lastAttempt == nil {
		return nil, nil
	}
	return s.lastAttempt(ctx, connectorID, credentialID, modelID)
}

func (s *fakeStore) AttemptsNotStarted(ctx context.Context) ([]*domain.IndexAttempt, error) {
	if s.attemptsNotStarted == nil {
		return nil, nil
	}
	return s.attemptsNotStarted(ctx)
}

func (s *fakeStore) AttemptsInProgress(ctx context.Context, connectorID int64) ([]*domain.IndexAttempt, error) {
	if s.attemptsInProgress == nil {
		return nil, nil
	}
	return s.attemptsInProgress(ctx, connectorID)
}

func (s *fakeStore) CountDistinctCCPairsAttempted(ctx context.Context, modelID int64) (int, error) {
	if s.countDistinctCCPairsAttempted == nil {
		return 0, nil
	}
	return s.countDistinctCCPairsAttempted(ctx, modelID)
}

func (s *fakeStore) CreateAttempt(ctx context.Context, connectorID, credentialID, modelID int64) (*domain.IndexAttempt, error) {
	if s.createAttempt == nil {
		return &domain.IndexAttempt{}, nil
	}
	return s.createAttempt(ctx, connectorID, credentialID, modelID)
}

func (s *fakeStore) MarkAttemptFailed(ctx context.Context, attempt *domain.IndexAttempt, reason string) error {
	if s.markAttemptFailed == nil {
		return nil
	}
	return s.markAttemptFailed(ctx, attempt, reason)
}

func (s *fakeStore) UpdateCCPairStatus(ctx context.Context, connectorID, credentialID int64, status domain.AttemptStatus) error {
	if s.updateCCPairStatus == nil {
		return nil
	}
	return s.updateCCPairStatus(ctx, connectorID, credentialID, status)
}

func (s *fakeStore) SetModelStatus(ctx context.Context, modelID int64, status domain.ModelStatus) error {
	if s.setModelStatus == nil {
		return nil
	}
	return s.setModelStatus(ctx, modelID, status)
}

func (s *fakeStore) ResyncCCPair(ctx context.Context, pair *domain.CCPair) error {
	if s.resyncCCPair == nil {
		return nil
	}
	return s.resyncCCPair(ctx, pair)
}

func (s *fakeStore) MarkAllInProgressCCPairsFailed(ctx context.Context) error {
	if s.markAllInProgressCCPairsFailed == nil {
		return nil
	}
	return s.markAllInProgressCCPairsFailed(ctx)
}

func (s *fakeStore) DBNow(ctx context.Context) (time.Time, error) {
	if s.dbNow == nil {
		return time.Now(), nil
	}
	return s.dbNow(ctx)
}

// fakeHandle implements jobclient.Handle with fixed observable state.
type fakeHandle struct {
	status    jobclient.HandleStatus
	err       error
	canceled  bool
	released  bool
}

func (h *fakeHandle) Status() jobclient.HandleStatus { return h.status }
func (h *fakeHandle) Done() bool {
	return h.status == jobclient.StatusFinished || h.status == jobclient.StatusError
}
func (h *fakeHandle) Exception() error { return h.err }
func (h *fakeHandle) Cancel()          { h.canceled = true }
func (h *fakeHandle) Release()         { h.released = true }

// fakeClient implements jobclient.Client, returning a canned handle/error.
type fakeClient struct {
	submit func(ctx context.Context, attemptID int64, numThreads int) (jobclient.Handle, error)
}

func (c *fakeClient) Submit(ctx context.Context, attemptID int64, numThreads int) (jobclient.Handle, error) {
	if c.submit == nil {
		return &fakeHandle{status: jobclient.StatusRunning}, nil
	}
	return c.submit(ctx, attemptID, numThreads)
}
