package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avatar-hub/internal/cache"
	"avatar-hub/internal/config"
	"avatar-hub/internal/logging"
	"avatar-hub/internal/pending"
	"avatar-hub/internal/postgres"
	"avatar-hub/internal/redis"
	"avatar-hub/internal/stats"
)

// Worker binary: periodically sweeps recently-updated avatars and recomputes
// their derived stats through the refresher pool. Runs no HTTP surface.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_worker", "service", "avatar-hub-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// connect to postgres (with retry; the worker often boots before the db)
	var dbConn *postgres.DB
	for i := 0; i < 5; i++ {
		dbConn, err = postgres.New(ctx, cfg.DBDSN)
		if err == nil {
			break
		}
		logger.Warn("db_connect_retry", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	store := postgres.NewAvatarStore(logger, dbConn)

	avatarCache := cache.New(cache.Options{
		StatsMax: cfg.CacheStatsMax,
		StatsTTL: cfg.CacheStatsTTL,
	})

	// the refresher registers each compute cycle here, so the stale job has
	// real entries to watch
	tracker := pending.NewTracker()
	refresher := stats.NewRefresher(logger, store, avatarCache, redisClient, tracker)
	refresher.StartWorkers(cfg.StatsWorkerCount)
	defer refresher.StopWorkers()

	staleJob := stats.NewStaleOpsJob(logger, tracker, cfg.PendingTimeout)
	go staleJob.Start(30 * time.Second)
	defer staleJob.Stop()

	logger.Info("worker_started", "stats_workers", cfg.StatsWorkerCount)

	// sweep cycle: enqueue stats recomputation for anything touched since
	// the last pass
	sweep := time.NewTicker(10 * time.Minute)
	defer sweep.Stop()
	lastSweep := time.Now().Add(-24 * time.Hour) // first pass catches up a day

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweep.C:
			sweepCtx, sweepCancel := context.WithTimeout(ctx, 1*time.Minute)
			ids, err := store.ListRecentlyUpdatedIDs(sweepCtx, lastSweep, 500)
			sweepCancel()
			if err != nil {
				logger.Warn("sweep_query_failed", "error", err)
				continue
			}

			queued := 0
			for _, id := range ids {
				if refresher.Enqueue(ctx, id) {
					queued++
				}
			}
			lastSweep = time.Now()
			logger.Info("sweep_cycle_completed", "candidates", len(ids), "queued", queued)

		case <-stop:
			logger.Info("shutting_down")
			return
		}
	}
}
