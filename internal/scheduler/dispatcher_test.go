package scheduler_test

import (
	"context"
	"testing"

	"github.com/ErlanBelekov/dist-job-scheduler/internal/domain"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/jobclient"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/scheduler"
)

// TestDispatcher_DeletedConnector covers S6: a NOT_STARTED attempt whose
// connector row is gone is failed with "Connector is null" and never
// submitted to either pool.
func TestDispatcher_DeletedConnector(t *testing.T) {
	var failedReason string
	submitted := false

	store := &fakeStore{
		attemptsNotStarted: func(ctx context.Context) ([]*domain.IndexAttempt, error) {
			return []*domain.IndexAttempt{{ID: 99, Connector: nil, Credential: &domain.Credential{ID: 1}}}, nil
		},
		markAttemptFailed: func(ctx context.Context, attempt *domain.IndexAttempt, reason string) error {
			failedReason = reason
			return nil
		},
	}
	client := &fakeClient{submit: func(ctx context.Context, attemptID int64, numThreads int) (jobclient.Handle, error) {
		submitted = true
		return &fakeHandle{status: jobclient.StatusRunning}, nil
	}}

	d := scheduler.NewDispatcher(store, client, client, 1, testLogger())
	tracked := map[int64]jobclient.Handle{}
	if err := d.Run(context.Background(), tracked); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if submitted {
		t.Fatal("expected no submission for a deleted connector")
	}
	if failedReason != "Connector is null" {
		t.Fatalf("unexpected failure reason: %q", failedReason)
	}
	if len(tracked) != 0 {
		t.Fatalf("expected nothing tracked, got %d", len(tracked))
	}
}

// TestDispatcher_DeletedCredential mirrors S6 for a deleted credential row.
func TestDispatcher_DeletedCredential(t *testing.T) {
	var failedReason string
	store := &fakeStore{
		attemptsNotStarted: func(ctx context.Context) ([]*domain.IndexAttempt, error) {
			return []*domain.IndexAttempt{{ID: 100, Connector: &domain.Connector{ID: 1}, Credential: nil}}, nil
		},
		markAttemptFailed: func(ctx context.Context, attempt *domain.IndexAttempt, reason string) error {
			failedReason = reason
			return nil
		},
	}
	client := &fakeClient{}
	d := scheduler.NewDispatcher(store, client, client, 1, testLogger())
	if err := d.Run(context.Background(), map[int64]jobclient.Handle{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if failedReason != "Credential is null" {
		t.Fatalf("unexpected failure reason: %q", failedReason)
	}
}

// TestDispatcher_RoutesSecondaryModelToSecondaryPool covers S4's dispatch
// half: attempts against a FUTURE model go to the secondary client.
func TestDispatcher_RoutesSecondaryModelToSecondaryPool(t *testing.T) {
	primaryCalls, secondaryCalls := 0, 0
	store := &fakeStore{
		attemptsNotStarted: func(ctx context.Context) ([]*domain.IndexAttempt, error) {
			return []*domain.IndexAttempt{{
				ID: 1, Connector: &domain.Connector{ID: 1}, Credential: &domain.Credential{ID: 1},
				EmbeddingModel: domain.EmbeddingModel{ID: 20, Status: domain.ModelFuture},
			}}, nil
		},
	}
	primary := &fakeClient{submit: func(ctx context.Context, attemptID int64, numThreads int) (jobclient.Handle, error) {
		primaryCalls++
		return &fakeHandle{status: jobclient.StatusRunning}, nil
	}}
	secondary := &fakeClient{submit: func(ctx context.Context, attemptID int64, numThreads int) (jobclient.Handle, error) {
		secondaryCalls++
		return &fakeHandle{status: jobclient.StatusRunning}, nil
	}}

	d := scheduler.NewDispatcher(store, primary, secondary, 1, testLogger())
	tracked := map[int64]jobclient.Handle{}
	if err := d.Run(context.Background(), tracked); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if primaryCalls != 0 || secondaryCalls != 1 {
		t.Fatalf("expected only secondary pool submission, got primary=%d secondary=%d", primaryCalls, secondaryCalls)
	}
	if len(tracked) != 1 {
		t.Fatalf("expected 1 tracked handle, got %d", len(tracked))
	}
}

// TestDispatcher_SubmitFailureLeavesUntracked covers error-handling item 3:
// a failed submission leaves the attempt untracked for retry next tick,
// rather than erroring the whole run.
func TestDispatcher_SubmitFailureLeavesUntracked(t *testing.T) {
	store := &fakeStore{
		attemptsNotStarted: func(ctx context.Context) ([]*domain.IndexAttempt, error) {
			return []*domain.IndexAttempt{{ID: 1, Connector: &domain.Connector{ID: 1}, Credential: &domain.Credential{ID: 1}}}, nil
		},
	}
	client := &fakeClient{submit: func(ctx context.Context, attemptID int64, numThreads int) (jobclient.Handle, error) {
		return nil, jobclient.ErrCircuitOpen
	}}
	d := scheduler.NewDispatcher(store, client, client, 1, testLogger())
	tracked := map[int64]jobclient.Handle{}
	if err := d.Run(context.Background(), tracked); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(tracked) != 0 {
		t.Fatalf("expected no tracked handles after a submit failure, got %d", len(tracked))
	}
}
