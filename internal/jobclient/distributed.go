package jobclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// jobMessage is the payload pushed onto the distributed pool's stream.
type jobMessage struct {
	AttemptID  int64 `json:"attempt_id"`
	NumThreads int   `json:"num_threads"`
}

// DistributedClient submits jobs to an external cluster over a Redis
// stream, grounded in night-slayer18-skeenode's consumer-group queue
// (pkg/storage/redis/queue_store.go). A circuit breaker guards calls to
// Redis so a flaky broker degrades to "no handle" instead of blocking a
// tick (spec §7 item 3).
type DistributedClient struct {
	rdb     *redis.Client
	stream  string
	group   string
	logger  *slog.Logger
	breaker *breaker
}

// DistributedClientConfig configures a DistributedClient. FailureThreshold
// and OpenTimeout are applied once at construction, mirroring the original
// `dask.config.set({"distributed.scheduler.allowed-failures": 0})` knob
// (spec §9).
type DistributedClientConfig struct {
	Stream           string
	Group            string
	FailureThreshold int
	OpenTimeout      time.Duration
}

func NewDistributedClient(rdb *redis.Client, cfg DistributedClientConfig, logger *slog.Logger) *DistributedClient {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	return &DistributedClient{
		rdb:     rdb,
		stream:  cfg.Stream,
		group:   cfg.Group,
		logger:  logger.With("component", "jobclient.distributed", "stream", cfg.Stream),
		breaker: newBreaker(breakerConfig{FailureThreshold: cfg.FailureThreshold, Timeout: cfg.OpenTimeout}),
	}
}

// EnsureGroup creates the consumer group backing this client's stream if it
// doesn't already exist. Call once at startup.
func (c *DistributedClient) EnsureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.stream, c.group, "$").Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		var redisErr redis.Error
		if errors.As(err, &redisErr) && redisErr.Error() == "BUSYGROUP Consumer Group name already exists" {
			return nil
		}
		return fmt.Errorf("ensure consumer group: %w", err)
	}
	return nil
}

func (c *DistributedClient) Submit(ctx context.Context, attemptID int64, numThreads int) (Handle, error) {
	if !c.breaker.allow() {
		return nil, ErrCircuitOpen
	}

	jobID := uuid.NewString()
	payload, err := json.Marshal(jobMessage{AttemptID: attemptID, NumThreads: numThreads})
	if err != nil {
		c.breaker.record(err)
		return nil, fmt.Errorf("marshal job message: %w", err)
	}

	statusKey := c.statusKey(jobID)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, statusKey, "status", string(StatusPending), "attempt_id", attemptID)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: c.stream,
		Values: map[string]any{"job_id": jobID, "payload": payload},
	})
	if _, err := pipe.Exec(ctx); err != nil {
		c.breaker.record(err)
		return nil, fmt.Errorf("submit job: %w", err)
	}

	c.breaker.record(nil)
	c.logger.InfoContext(ctx, "submitted distributed job", "attempt_id", attemptID, "job_id", jobID)

	return &distributedHandle{rdb: c.rdb, statusKey: statusKey, logger: c.logger}, nil
}

func (c *DistributedClient) statusKey(jobID string) string {
	return "indexing:job-status:" + jobID
}

type distributedHandle struct {
	rdb       *redis.Client
	statusKey string
	logger    *slog.Logger
}

func (h *distributedHandle) Status() HandleStatus {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status, err := h.rdb.HGet(ctx, h.statusKey, "status").Result()
	if err != nil {
		// Broker unreachable or key expired: treat as still pending rather
		// than silently dropping the attempt; the Reaper's orphan sweep
		// will eventually reconcile it via the store if this persists.
		return StatusPending
	}
	return HandleStatus(status)
}

func (h *distributedHandle) Done() bool {
	s := h.Status()
	return s == StatusFinished || s == StatusError
}

func (h *distributedHandle) Exception() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	msg, err := h.rdb.HGet(ctx, h.statusKey, "error").Result()
	if err != nil || msg == "" {
		return nil
	}
	return errors.New(msg)
}

func (h *distributedHandle) Cancel() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Best-effort: the remote worker is not guaranteed to observe this
	// flag before finishing on its own (spec §5 "Cancellation").
	h.rdb.HSet(ctx, h.statusKey, "cancel_requested", "1")
}

func (h *distributedHandle) Release() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	h.rdb.Del(ctx, h.statusKey)
}
