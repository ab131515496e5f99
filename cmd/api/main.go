package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"avatar-hub/internal/api"
	"avatar-hub/internal/cache"
	"avatar-hub/internal/config"
	"avatar-hub/internal/logging"
	"avatar-hub/internal/pending"
	"avatar-hub/internal/postgres"
	"avatar-hub/internal/redis"
	"avatar-hub/internal/state"
	"avatar-hub/internal/stats"
	"avatar-hub/internal/storage"
	"avatar-hub/internal/syncer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_api", "service", "avatar-hub-api", "http_addr", cfg.HTTPAddr)
	if cfg.AdminSecretKey != "" {
		logger.Info("admin_auth_enabled", "key", logging.MaskKey(cfg.AdminSecretKey))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConn, err := postgres.New(ctx, cfg.DBDSN)
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
		AvatarMax: cfg.CacheAvatarMax,
		StatsMax:  cfg.CacheStatsMax,
		ListMax:   cfg.CacheListMax,
		AvatarTTL: cfg.CacheAvatarTTL,
		StatsTTL:  cfg.CacheStatsTTL,
		ListTTL:   cfg.CacheListTTL,
	})
	liveState := state.New()
	history := state.NewHistory(cfg.SnapshotHistoryMax)
	tracker := pending.NewTracker()
	engine := syncer.New(logger, liveState, history, avatarCache, tracker)

	// a small local pool; the heavy sweeps run in the worker binary
	refresher := stats.NewRefresher(logger, store, avatarCache, redisClient, nil)
	refresher.StartWorkers(2)
	defer refresher.StopWorkers()

	// the API binary never uploads images itself unless S3 is configured
	var images storage.ImageClient
	if cfg.S3Endpoint != "" && cfg.S3Bucket != "" && cfg.S3KeysRaw != "" {
		var keys map[string]string
		if err := json.Unmarshal([]byte(cfg.S3KeysRaw), &keys); err == nil {
			if s3Client, err := storage.NewS3Client(storage.S3Config{
				Endpoint:        cfg.S3Endpoint,
				AccessKeyID:     keys["access_key_id"],
				SecretAccessKey: keys["secret_access_key"],
				Bucket:          cfg.S3Bucket,
				PublicURL:       keys["public_url"],
				Region:          "auto",
			}); err == nil {
				images = s3Client
			}
		}
	}
	if images == nil {
		images = storage.NewSimulator(cfg.S3Bucket, cfg.S3Endpoint)
		logger.Info("using_storage_simulator")
	}

	srv := api.NewServer(logger, cfg, store, redisClient, engine, refresher, images)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("api_started", "addr", cfg.HTTPAddr)

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	if err := redisClient.Close(); err != nil {
		logger.Warn("redis_close_error", "error", err)
	}
	dbConn.Close()

	logger.Info("api_stopped")
}
