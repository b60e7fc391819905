package jobclient

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// DistributedWorkerPool is the consumer side of the distributed pool: the
// external cluster process that actually claims messages DistributedClient
// pushed and runs WorkerFunc against them. It is a separate binary/process
// from the supervisor (cmd/indexworker), consistent with spec §4.2's
// "external cluster" description of the distributed variant.
type DistributedWorkerPool struct {
	rdb      *redis.Client
	stream   string
	group    string
	consumer string
	fn       WorkerFunc
	logger   *slog.Logger
}

func NewDistributedWorkerPool(rdb *redis.Client, stream, group, consumer string, fn WorkerFunc, logger *slog.Logger) *DistributedWorkerPool {
	return &DistributedWorkerPool{
		rdb:      rdb,
		stream:   stream,
		group:    group,
		consumer: consumer,
		fn:       fn,
		logger:   logger.With("component", "jobclient.distributed_worker", "consumer", consumer),
	}
}

// Run blocks, claiming and executing jobs until ctx is cancelled.
func (p *DistributedWorkerPool) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := p.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.group,
			Consumer: p.consumer,
			Streams:  []string{p.stream, ">"},
			Count:    1,
			Block:    2 * time.Second,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			p.logger.ErrorContext(ctx, "read from stream", "error", err)
			continue
		}
		if len(streams) == 0 || len(streams[0].Messages) == 0 {
			continue
		}

		msg := streams[0].Messages[0]
		p.handle(ctx, msg)
	}
}

func (p *DistributedWorkerPool) handle(ctx context.Context, msg redis.XMessage) {
	defer p.rdb.XAck(ctx, p.stream, p.group, msg.ID)

	jobID, _ := msg.Values["job_id"].(string)
	payloadStr, _ := msg.Values["payload"].(string)
	statusKey := "indexing:job-status:" + jobID

	var job jobMessage
	if err := json.Unmarshal([]byte(payloadStr), &job); err != nil {
		p.logger.ErrorContext(ctx, "unmarshal job message", "job_id", jobID, "error", err)
		p.rdb.HSet(ctx, statusKey, "status", string(StatusError), "error", err.Error())
		return
	}

	if canceled, _ := p.rdb.HGet(ctx, statusKey, "cancel_requested").Result(); canceled == "1" {
		p.rdb.HSet(ctx, statusKey, "status", string(StatusError), "error", "canceled before start")
		return
	}

	p.rdb.HSet(ctx, statusKey, "status", string(StatusRunning))

	if err := p.fn(ctx, job.AttemptID, job.NumThreads); err != nil {
		p.logger.ErrorContext(ctx, "indexing attempt errored", "attempt_id", job.AttemptID, "error", err)
		p.rdb.HSet(ctx, statusKey, "status", string(StatusError), "error", err.Error())
		return
	}
	p.rdb.HSet(ctx, statusKey, "status", string(StatusFinished))
}
