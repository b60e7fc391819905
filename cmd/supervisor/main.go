package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ErlanBelekov/dist-job-scheduler/config"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/health"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/jobclient"
	ctxlog "github.com/ErlanBelekov/dist-job-scheduler/internal/log"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/metrics"
	"github.com/ErlanBelekov/dist-job-scheduler/internal/scheduler"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()
	logger.Info("db connected")

	store := postgres.NewStore(pool)

	// indexDocuments is the out-of-scope document-fetch/embed/write worker
	// entrypoint (spec §6 "Non-goals"); the control loop only needs to
	// submit and observe it.
	indexDocuments := jobclient.WorkerFunc(func(ctx context.Context, attemptID int64, numThreads int) error {
		logger.InfoContext(ctx, "indexing worker invoked", "attempt_id", attemptID, "num_threads", numThreads)
		return errors.New("document indexing is out of scope for the control loop")
	})

	primary := jobclient.Client(jobclient.NewLocalClient(indexDocuments, cfg.NumWorkersPerPool, logger))
	// secondary gets its own worker budget even in the local-pool path, so a
	// model migration's FUTURE-model builds never compete with ordinary
	// primary-model indexing for the same semaphore (spec §4.2).
	secondary := jobclient.Client(jobclient.NewLocalClient(indexDocuments, cfg.NumWorkersPerPool, logger))

	var rdb *redis.Client
	if cfg.DistributedPoolEnabled {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

		secondaryClient := jobclient.NewDistributedClient(rdb, jobclient.DistributedClientConfig{
			Stream: "indexing:secondary-model",
			Group:  "indexing-workers",
		}, logger)
		if err := secondaryClient.EnsureGroup(ctx); err != nil {
			stop()
			log.Fatalf("redis: %v", err)
		}
		secondary = secondaryClient
		logger.Info("distributed pool enabled", "redis_addr", cfg.RedisAddr)
	}

	if err := store.MarkAllInProgressCCPairsFailed(ctx); err != nil {
		stop()
		log.Fatalf("recover in-progress cc-pairs: %v", err)
	}

	metrics.Register()

	var redisPinger health.Pinger
	if rdb != nil {
		redisPinger = redisPingerFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	checker := health.NewChecker(pool, redisPinger, logger, prometheus.DefaultRegisterer)

	sched := scheduler.NewScheduler(store, logger)
	reaper := scheduler.NewReaper(store, logger, time.Duration(cfg.StallTimeoutHours)*time.Hour)
	dispatcher := scheduler.NewDispatcher(store, primary, secondary, cfg.MinThreadsMLModels, logger)
	swap := scheduler.NewSwapController(store, logger)

	supervisor := scheduler.NewSupervisor(
		store, sched, reaper, dispatcher, swap,
		time.Duration(cfg.PollDelaySeconds)*time.Second,
		logger,
	)
	go supervisor.Start(ctx)

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("redis close", "error", err)
		}
	}

	logger.Info("supervisor shut down")
}

type redisPingerFunc func(ctx context.Context) error

func (f redisPingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
