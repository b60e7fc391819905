// Command indexworker is the distributed pool's consumer process: it claims
// jobs DistributedClient pushed onto the Redis stream and executes
// WorkerFunc. Run only when DISTRIBUTED_POOL_ENABLED is set; the supervisor
// never runs this loop in-process (spec §4.2 "external cluster").
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ErlanBelekov/dist-job-scheduler/config"
	ctxlog "github.com/ErlanBelekov/dist-job-scheduler/internal/log"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/jobclient"
	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if !cfg.DistributedPoolEnabled {
		log.Fatal("indexworker requires DISTRIBUTED_POOL_ENABLED=true")
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	hostname, _ := os.Hostname()
	consumer := fmt.Sprintf("%s-%d", hostname, os.Getpid())

	indexDocuments := jobclient.WorkerFunc(func(ctx context.Context, attemptID int64, numThreads int) error {
		logger.InfoContext(ctx, "indexing worker invoked", "attempt_id", attemptID, "num_threads", numThreads)
		return errors.New("document indexing is out of scope for the control loop")
	})

	pool := jobclient.NewDistributedWorkerPool(rdb, "indexing:secondary-model", "indexing-workers", consumer, indexDocuments, logger)

	logger.Info("indexworker started", "consumer", consumer, "redis_addr", cfg.RedisAddr)
	pool.Run(ctx)
	logger.Info("indexworker shut down")
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{Level: level})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
