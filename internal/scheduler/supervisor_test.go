package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ErlanBelekov/dist-job-scheduler/internal/domain"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/jobclient"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/scheduler"
)

// TestSupervisor_TickRecoversFromComponentError ensures an error in one
// component aborts only that tick; Start must not panic or exit.
func TestSupervisor_TickRecoversFromComponentError(t *testing.T) {
	boom := errors.New("boom")
	store := &fakeStore{
		listCCPairs: func(ctx context.Context) ([]*domain.CCPair, error) { return nil, boom },
	}
	sched := scheduler.NewScheduler(store, testLogger())
	reaper := scheduler.NewReaper(store, testLogger(), time.Hour)
	dispatcher := scheduler.NewDispatcher(store, &fakeClient{}, &fakeClient{}, 1, testLogger())
	swap := scheduler.NewSwapController(store, testLogger())

	sup := scheduler.NewSupervisor(store, sched, reaper, dispatcher, swap, time.Millisecond, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sup.Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}

// TestSupervisor_ReleaseAllOnShutdown ensures every tracked handle is
// released when the supervisor stops.
func TestSupervisor_ReleaseAllOnShutdown(t *testing.T) {
	store := &fakeStore{
		listCCPairs: func(ctx context.Context) ([]*domain.CCPair, error) { return nil, nil },
		secondaryModel: func(ctx context.Context) (*domain.EmbeddingModel, error) {
			return nil, nil
		},
		listConnectors: func(ctx context.Context) ([]*domain.Connector, error) { return nil, nil },
		currentModel: func(ctx context.Context) (*domain.EmbeddingModel, error) {
			return &domain.EmbeddingModel{ID: 10, Status: domain.ModelPresent}, nil
		},
		attemptsNotStarted: func(ctx context.Context) ([]*domain.IndexAttempt, error) {
			return []*domain.IndexAttempt{{ID: 1, Connector: &domain.Connector{ID: 1}, Credential: &domain.Credential{ID: 1}}}, nil
		},
	}
	submitted := make(chan *fakeHandle, 1)
	client := &fakeClient{submit: func(ctx context.Context, attemptID int64, numThreads int) (jobclient.Handle, error) {
		h := &fakeHandle{status: jobclient.StatusRunning}
		submitted <- h
		return h, nil
	}}
	sched := scheduler.NewScheduler(store, testLogger())
	reaper := scheduler.NewReaper(store, testLogger(), time.Hour)
	dispatcher := scheduler.NewDispatcher(store, client, client, 1, testLogger())
	swap := scheduler.NewSwapController(store, testLogger())

	sup := scheduler.NewSupervisor(store, sched, reaper, dispatcher, swap, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Start(ctx)
		close(done)
	}()

	// Wait for the first tick to dispatch (and track) a handle, then cancel.
	var handle *fakeHandle
	select {
	case handle = <-submitted:
	case <-time.After(time.Second):
		t.Fatal("expected the first tick to dispatch an attempt")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not shut down after cancellation")
	}
	if !handle.released {
		t.Fatal("expected the tracked handle to be released on shutdown")
	}
}

var _ jobclient.Handle = (*fakeHandle)(nil)
