// Package stats recomputes derived avatar statistics in the background. Stats
// are never hand-edited: the worker pool pulls refresh requests, aggregates
// authoritative counters from postgres and writes the results back to the
// in-memory cache and, in batches, to the stats table.
package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"avatar-hub/internal/cache"
	"avatar-hub/internal/models"
	"avatar-hub/internal/pending"
	"avatar-hub/internal/postgres"
	"avatar-hub/internal/redis"
)

// Source is what the refresher needs from the authoritative store.
type Source interface {
	ComputeStats(ctx context.Context, avatarID string) (models.AvatarStats, error)
	UpsertStatsBatch(ctx context.Context, stats []models.AvatarStats, cfg postgres.BatchConfig) (int, error)
}

// Request asks for one avatar's stats to be recomputed.
type Request struct {
	AvatarID    string
	RequestedAt time.Time
}

type worker struct {
	id       int
	stopChan chan bool
}

type Refresher struct {
	log     *slog.Logger
	store   Source
	cache   *cache.AvatarCache
	redis   *redis.Client
	tracker *pending.Tracker
	queue   chan Request
	results chan models.AvatarStats

	mu      sync.RWMutex
	workers []*worker
	wg      sync.WaitGroup

	flushStop chan bool

	// dedupWindow suppresses duplicate refreshes for the same avatar.
	dedupWindow time.Duration
}

// NewRefresher builds the worker pool. tracker may be nil; when set, each
// compute cycle is registered so the stale-op diagnostics cover this pool.
func NewRefresher(log *slog.Logger, store Source, c *cache.AvatarCache, redisClient *redis.Client, tracker *pending.Tracker) *Refresher {
	return &Refresher{
		log:         log,
		store:       store,
		cache:       c,
		redis:       redisClient,
		tracker:     tracker,
		queue:       make(chan Request, 10000),
		results:     make(chan models.AvatarStats, 1000),
		dedupWindow: 30 * time.Second,
		flushStop:   make(chan bool, 1),
	}
}

// Enqueue requests a refresh. Returns false when the queue is full or a
// refresh for this avatar was already queued inside the dedup window.
func (r *Refresher) Enqueue(ctx context.Context, avatarID string) bool {
	if r.redis != nil {
		fresh, err := r.redis.MarkRefresh(ctx, avatarID, r.dedupWindow)
		if err == nil && !fresh {
			return false
		}
	}

	select {
	case r.queue <- Request{AvatarID: avatarID, RequestedAt: time.Now()}:
		return true
	default:
		r.log.Warn("stats_queue_full", "avatar_id", avatarID)
		return false
	}
}

// QueueDepth reports how many refresh requests are waiting.
func (r *Refresher) QueueDepth() int {
	return len(r.queue)
}

func (r *Refresher) StartWorkers(workerCount int) {
	if workerCount < 1 {
		workerCount = 5
	}
	if workerCount > 64 {
		workerCount = 64
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < workerCount; i++ {
		w := &worker{id: i + 1, stopChan: make(chan bool, 1)}
		r.workers = append(r.workers, w)

		r.wg.Add(1)
		go r.runWorker(w)
	}

	r.wg.Add(1)
	go r.runFlusher()

	r.log.Info("stats_workers_started", "count", workerCount)
}

func (r *Refresher) runWorker(w *worker) {
	defer r.wg.Done()

	for {
		select {
		case req := <-r.queue:
			st, err := r.compute(req)
			if err != nil {
				r.log.Warn("stats_compute_failed",
					"worker_id", w.id,
					"avatar_id", req.AvatarID,
					"error", err,
				)
				continue
			}

			r.cache.PutStats(st)
			select {
			case r.results <- st:
			default:
				// flusher backlog full; the cache write already happened
			}
		case <-w.stopChan:
			r.log.Info("stats_worker_stopped", "worker_id", w.id)
			return
		}
	}
}

// compute runs one recomputation, registered with the pending tracker so a
// stuck store query surfaces in the stale-op diagnostics.
func (r *Refresher) compute(req Request) (models.AvatarStats, error) {
	if r.tracker != nil {
		opID := r.tracker.Begin("")
		defer r.tracker.End(opID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return r.store.ComputeStats(ctx, req.AvatarID)
}

// runFlusher batches recomputed stats and writes them through the store's
// chunked upsert, so one slow row never stalls a cycle.
func (r *Refresher) runFlusher() {
	defer r.wg.Done()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	var buf []models.AvatarStats
	flush := func() {
		if len(buf) == 0 {
			return
		}

		cfg := postgres.DefaultBatchConfig()
		cfg.OnProgress = postgres.LogProgress(r.log)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		written, err := r.store.UpsertStatsBatch(ctx, buf, cfg)
		cancel()
		if err != nil {
			r.log.Warn("stats_flush_failed", "written", written, "error", err)
		} else {
			r.log.Debug("stats_flushed", "count", written)
		}
		buf = buf[:0]
	}

	for {
		select {
		case st := <-r.results:
			buf = append(buf, st)
			if len(buf) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-r.flushStop:
			flush()
			return
		}
	}
}

func (r *Refresher) StopWorkers() {
	r.mu.Lock()
	for _, w := range r.workers {
		select {
		case w.stopChan <- true:
		default:
		}
	}
	r.mu.Unlock()

	select {
	case r.flushStop <- true:
	default:
	}

	r.wg.Wait()
	r.log.Info("stats_workers_stopped")
}
