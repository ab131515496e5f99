package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"avatar-hub/internal/models"
)

// BatchConfig holds configuration for batched stats flushes.
type BatchConfig struct {
	BatchSize  int
	MaxRetries int
	RetryDelay time.Duration
	OnProgress func(processed, total int)
}

// DefaultBatchConfig returns sensible defaults for batch flushes.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchSize:  100,
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
	}
}

// UpsertStatsBatch writes recomputed avatar stats in chunks with retry. The
// stats refresh worker accumulates results and flushes through here so one
// slow row never stalls a whole cycle.
func (s *AvatarStore) UpsertStatsBatch(ctx context.Context, stats []models.AvatarStats, cfg BatchConfig) (int, error) {
	if len(stats) == 0 {
		return 0, nil
	}
	if cfg.BatchSize < 1 {
		cfg = DefaultBatchConfig()
	}

	total := 0
	for i := 0; i < len(stats); i += cfg.BatchSize {
		end := i + cfg.BatchSize
		if end > len(stats) {
			end = len(stats)
		}

		written, err := s.upsertStatsChunk(ctx, stats[i:end], cfg.MaxRetries, cfg.RetryDelay)
		if err != nil {
			return total, fmt.Errorf("stats batch failed at offset %d: %w", i, err)
		}
		total += written

		if cfg.OnProgress != nil {
			cfg.OnProgress(total, len(stats))
		}
	}
	return total, nil
}

func (s *AvatarStore) upsertStatsChunk(ctx context.Context, chunk []models.AvatarStats, maxRetries int, retryDelay time.Duration) (int, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		written, err := s.execStatsChunk(ctx, chunk)
		if err == nil {
			return written, nil
		}
		lastErr = err
		if attempt < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return 0, lastErr
}

func (s *AvatarStore) execStatsChunk(ctx context.Context, chunk []models.AvatarStats) (int, error) {
	batch := &pgx.Batch{}
	for _, st := range chunk {
		batch.Queue(
			`INSERT INTO avatar_stats
			    (avatar_id, followers_count, following_count, posts_count,
			     total_likes, engagement_rate, last_active_at, computed_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,now())
			 ON CONFLICT (avatar_id) DO UPDATE SET
			    followers_count = EXCLUDED.followers_count,
			    following_count = EXCLUDED.following_count,
			    posts_count = EXCLUDED.posts_count,
			    total_likes = EXCLUDED.total_likes,
			    engagement_rate = EXCLUDED.engagement_rate,
			    last_active_at = EXCLUDED.last_active_at,
			    computed_at = now()`,
			st.AvatarID, st.FollowersCount, st.FollowingCount, st.PostsCount,
			st.TotalLikes, st.EngagementRate, st.LastActiveAt,
		)
	}

	results := s.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range chunk {
		if _, err := results.Exec(); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// LogProgress returns an OnProgress callback that reports through the given
// logger at debug level.
func LogProgress(log *slog.Logger) func(processed, total int) {
	return func(processed, total int) {
		if total == 0 {
			return
		}
		log.Debug("stats_batch_progress",
			"processed", processed,
			"total", total,
			"percent", (processed*100)/total,
		)
	}
}
