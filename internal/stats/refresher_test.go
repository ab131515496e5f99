package stats

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"avatar-hub/internal/models"
	"avatar-hub/internal/pending"
	"avatar-hub/internal/postgres"
)

// fakeSource stands in for the postgres store in pool tests.
type fakeSource struct {
	onCompute func(avatarID string)
}

func (f *fakeSource) ComputeStats(ctx context.Context, avatarID string) (models.AvatarStats, error) {
	if f.onCompute != nil {
		f.onCompute(avatarID)
	}
	return models.AvatarStats{AvatarID: avatarID}, nil
}

func (f *fakeSource) UpsertStatsBatch(ctx context.Context, stats []models.AvatarStats, cfg postgres.BatchConfig) (int, error) {
	return len(stats), nil
}

func newTestRefresher() *Refresher {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRefresher(log, nil, nil, nil, nil)
}

func TestEnqueue(t *testing.T) {
	r := newTestRefresher()

	if !r.Enqueue(context.Background(), "av1") {
		t.Fatal("enqueue on empty queue failed")
	}
	if r.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", r.QueueDepth())
	}
}

func TestEnqueueFullQueue(t *testing.T) {
	r := newTestRefresher()
	r.queue = make(chan Request, 1)

	if !r.Enqueue(context.Background(), "av1") {
		t.Fatal("first enqueue failed")
	}
	if r.Enqueue(context.Background(), "av2") {
		t.Error("enqueue on full queue should report false")
	}
	if r.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", r.QueueDepth())
	}
}

func TestComputeRegistersPendingOp(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracker := pending.NewTracker()

	var duringCompute bool
	src := &fakeSource{onCompute: func(string) {
		duringCompute = tracker.HasPending()
	}}

	r := NewRefresher(log, src, nil, nil, tracker)

	st, err := r.compute(Request{AvatarID: "av1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.AvatarID != "av1" {
		t.Errorf("expected stats for av1, got %+v", st)
	}

	if !duringCompute {
		t.Error("compute cycle not visible to the pending tracker")
	}
	if tracker.HasPending() {
		t.Error("pending op not cleared after compute")
	}
}

func TestComputeWithoutTracker(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRefresher(log, &fakeSource{}, nil, nil, nil)

	if _, err := r.compute(Request{AvatarID: "av1"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestEnqueueWithoutRedisSkipsDedup(t *testing.T) {
	r := newTestRefresher()

	// no shared dedup window available: both requests are accepted
	if !r.Enqueue(context.Background(), "av1") || !r.Enqueue(context.Background(), "av1") {
		t.Error("expected duplicate accepted without redis")
	}
	if r.QueueDepth() != 2 {
		t.Errorf("expected queue depth 2, got %d", r.QueueDepth())
	}
}
