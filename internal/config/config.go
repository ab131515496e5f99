package config

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DBDSN    string
	HTTPAddr string
	LogLevel string
	RedisDSN string

	S3Endpoint string
	S3Bucket   string
	// raw secrets kept in-memory only; never log these
	S3KeysRaw      string
	AdminSecretKey string
	CORSOrigins    []string

	// cache partition sizing
	CacheAvatarMax int
	CacheStatsMax  int
	CacheListMax   int
	CacheAvatarTTL time.Duration
	CacheStatsTTL  time.Duration
	CacheListTTL   time.Duration

	SnapshotHistoryMax int
	PendingTimeout     time.Duration
	StatsWorkerCount   int
}

func Load() (Config, error) {
	cfg := Config{
		DBDSN:          os.Getenv("DB_DSN"),
		HTTPAddr:       getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:       getenvDefault("LOG_LEVEL", "info"),
		RedisDSN:       getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		S3Endpoint:     getenvDefault("S3_ENDPOINT", ""),
		S3Bucket:       getenvDefault("S3_BUCKET", ""),
		S3KeysRaw:      os.Getenv("S3_KEYS"),
		AdminSecretKey: getenvDefault("ADMIN_SECRET_KEY", ""),

		CacheAvatarMax: getenvInt("CACHE_AVATAR_MAX", 200),
		CacheStatsMax:  getenvInt("CACHE_STATS_MAX", 200),
		CacheListMax:   getenvInt("CACHE_LIST_MAX", 50),
		CacheAvatarTTL: getenvDuration("CACHE_AVATAR_TTL", 5*time.Minute),
		CacheStatsTTL:  getenvDuration("CACHE_STATS_TTL", 2*time.Minute),
		CacheListTTL:   getenvDuration("CACHE_LIST_TTL", 5*time.Minute),

		SnapshotHistoryMax: getenvInt("SNAPSHOT_HISTORY_MAX", 10),
		PendingTimeout:     getenvDuration("PENDING_TIMEOUT", 30*time.Second),
		StatsWorkerCount:   getenvInt("STATS_WORKER_COUNT", 5),
	}

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}

	// light validation: ensure secrets are valid json if set
	if cfg.S3KeysRaw != "" {
		var tmp any
		if err := json.Unmarshal([]byte(cfg.S3KeysRaw), &tmp); err != nil {
			return Config{}, errors.New("S3_KEYS must be valid json")
		}
	}

	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
