package syncer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"avatar-hub/internal/cache"
	"avatar-hub/internal/fault"
	"avatar-hub/internal/models"
	"avatar-hub/internal/pending"
	"avatar-hub/internal/state"
)

func newTestEngine() *Engine {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(log, state.New(), state.NewHistory(10), cache.New(cache.Options{}), pending.NewTracker())
}

func succeed(ctx context.Context) error { return nil }

func failWith(err error) func(context.Context) error {
	return func(ctx context.Context) error { return err }
}

func TestResyncOwner_ReplacesStateAndCache(t *testing.T) {
	e := newTestEngine()

	e.State().SetAvatar(models.Avatar{ID: "stale", OwnerID: "u1"})

	fetched := []models.Avatar{
		{ID: "av1", OwnerID: "u1", DisplayName: "Luna"},
		{ID: "av2", OwnerID: "u1", Active: true},
	}

	got, err := e.ResyncOwner(context.Background(), "u1", func(ctx context.Context) ([]models.Avatar, error) {
		return fetched, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 avatars, got %d", len(got))
	}

	if _, ok := e.State().Avatar("stale"); ok {
		t.Error("stale avatar survived resync")
	}
	if av, ok := e.Cache().GetAvatar("av1"); !ok || av.DisplayName != "Luna" {
		t.Error("individual cache entry not replaced")
	}
	if list, ok := e.Cache().GetOwnerList("u1"); !ok || len(list) != 2 {
		t.Error("owner list cache not replaced")
	}
}

func TestResyncOwner_FailureLeavesStateUntouched(t *testing.T) {
	e := newTestEngine()

	e.State().SetAvatar(models.Avatar{ID: "av1", OwnerID: "u1", DisplayName: "kept"})

	_, err := e.ResyncOwner(context.Background(), "u1", func(ctx context.Context) ([]models.Avatar, error) {
		return nil, errors.New("network down")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !fault.IsKind(err, fault.KindSync) {
		t.Errorf("expected sync fault, got %v", err)
	}

	av, ok := e.State().Avatar("av1")
	if !ok || av.DisplayName != "kept" {
		t.Error("failed resync mutated live state")
	}
}

func TestUpdateAvatar_RollbackOnRemoteFailure(t *testing.T) {
	e := newTestEngine()

	v0 := models.Avatar{ID: "av1", OwnerID: "u1", DisplayName: "v0", Bio: "original"}
	e.State().SetAvatar(v0)

	v1 := v0.Clone()
	v1.DisplayName = "v1"
	v1.Bio = "edited"

	cause := errors.New("remote rejected")
	err := e.UpdateAvatar(context.Background(), "av1", v1, failWith(cause))
	if err == nil {
		t.Fatal("expected error")
	}
	if !fault.IsKind(err, fault.KindSync) {
		t.Errorf("expected sync fault, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Error("original cause not preserved in the chain")
	}

	// live value is exactly v0: not v1, not merged
	got, _ := e.State().Avatar("av1")
	if got.DisplayName != "v0" || got.Bio != "original" {
		t.Errorf("rollback incomplete: %+v", got)
	}
}

func TestUpdateAvatar_CommitPermanence(t *testing.T) {
	e := newTestEngine()

	v0 := models.Avatar{ID: "av1", OwnerID: "u1", DisplayName: "v0"}
	e.State().SetAvatar(v0)

	v1 := v0.Clone()
	v1.DisplayName = "v1"

	if err := e.UpdateAvatar(context.Background(), "av1", v1, succeed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := e.State().Avatar("av1")
	if got.DisplayName != "v1" {
		t.Errorf("expected committed value v1, got %q", got.DisplayName)
	}

	// an unrelated restore afterwards reverts to the retained snapshot,
	// which holds v0 — but only through an explicit restore call, never
	// as a side effect of the committed operation
	if e.History().Len() != 1 {
		t.Errorf("expected committed snapshot retained, history len %d", e.History().Len())
	}
}

func TestUpdateAvatar_IDMismatchRejected(t *testing.T) {
	e := newTestEngine()

	err := e.UpdateAvatar(context.Background(), "av1", models.Avatar{ID: "av2"}, succeed)
	if !fault.IsKind(err, fault.KindValidation) {
		t.Errorf("expected validation fault, got %v", err)
	}
	if e.History().Len() != 0 {
		t.Error("rejected update still pushed a snapshot")
	}
}

func TestSetActiveAvatar_OwnershipPrecondition(t *testing.T) {
	e := newTestEngine()

	// owner U, avatar belongs to V: must fail before any side effect
	av := models.Avatar{ID: "av1", OwnerID: "V"}

	err := e.SetActiveAvatar(context.Background(), "U", av, succeed)
	if err == nil {
		t.Fatal("expected error")
	}
	if !fault.IsKind(err, fault.KindValidation) {
		t.Errorf("expected validation fault, got %v", err)
	}

	if _, ok := e.State().ActiveAvatarID("U"); ok {
		t.Error("active pointer mutated despite failed precondition")
	}
	if e.History().Len() != 0 {
		t.Errorf("snapshot pushed despite failed precondition, history len %d", e.History().Len())
	}
	if e.Pending().HasPending() {
		t.Error("pending op leaked")
	}
}

func TestSetActiveAvatar_CommitMakesSoleActive(t *testing.T) {
	e := newTestEngine()

	a := models.Avatar{ID: "av1", OwnerID: "u1", Active: true}
	x := models.Avatar{ID: "avX", OwnerID: "u1"}
	e.State().SetAvatar(a)
	e.State().SetAvatar(x)
	e.State().SetActiveAvatar("u1", a)
	e.History().Clear()

	if err := e.SetActiveAvatar(context.Background(), "u1", x, succeed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id, ok := e.State().ActiveAvatarID("u1")
	if !ok || id != "avX" {
		t.Fatalf("expected active avX, got (%q, %v)", id, ok)
	}

	got, _ := e.State().Avatar("avX")
	if !got.Active {
		t.Error("activated avatar not flagged active")
	}
	prev, _ := e.State().Avatar("av1")
	if prev.Active {
		t.Error("previous active avatar still flagged")
	}
}

func TestSetActiveAvatar_RollbackOnRemoteFailure(t *testing.T) {
	e := newTestEngine()

	a := models.Avatar{ID: "av1", OwnerID: "u1"}
	b := models.Avatar{ID: "av2", OwnerID: "u1"}
	e.State().SetAvatar(a)
	e.State().SetAvatar(b)
	e.State().SetActiveAvatar("u1", a)

	err := e.SetActiveAvatar(context.Background(), "u1", b, failWith(errors.New("timeout")))
	if !fault.IsKind(err, fault.KindSync) {
		t.Fatalf("expected sync fault, got %v", err)
	}

	id, ok := e.State().ActiveAvatarID("u1")
	if !ok || id != "av1" {
		t.Errorf("expected rollback to av1, got (%q, %v)", id, ok)
	}
}

func TestDeleteAvatar_CascadesAndReturnsOrphans(t *testing.T) {
	e := newTestEngine()

	av := models.Avatar{ID: "av1", OwnerID: "u1"}
	e.State().SetAvatar(av)
	e.State().SetActiveAvatar("u1", av)
	e.State().Contents().Associate("av1", "c1")
	e.State().Contents().Associate("av1", "c2")
	e.Cache().PutAvatar(av)

	orphaned, err := e.DeleteAvatar(context.Background(), "av1", succeed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orphaned) != 2 {
		t.Errorf("expected 2 orphaned content ids, got %v", orphaned)
	}

	if _, ok := e.State().Avatar("av1"); ok {
		t.Error("avatar still in live state")
	}
	if _, ok := e.State().ActiveAvatarID("u1"); ok {
		t.Error("active pointer not cascaded")
	}
	if _, ok := e.Cache().GetAvatar("av1"); ok {
		t.Error("cache entry not cascaded")
	}
	if len(e.State().Contents().ContentsOf("av1")) != 0 {
		t.Error("content associations not cascaded")
	}
}

func TestDeleteAvatar_RollbackRestoresEverything(t *testing.T) {
	e := newTestEngine()

	av := models.Avatar{ID: "av1", OwnerID: "u1"}
	e.State().SetAvatar(av)
	e.State().SetActiveAvatar("u1", av)
	e.State().Contents().Associate("av1", "c1")

	_, err := e.DeleteAvatar(context.Background(), "av1", failWith(errors.New("remote down")))
	if !fault.IsKind(err, fault.KindSync) {
		t.Fatalf("expected sync fault, got %v", err)
	}

	if _, ok := e.State().Avatar("av1"); !ok {
		t.Error("avatar not restored after failed delete")
	}
	if id, ok := e.State().ActiveAvatarID("u1"); !ok || id != "av1" {
		t.Error("active pointer not restored")
	}
	if len(e.State().Contents().ContentsOf("av1")) != 1 {
		t.Error("content associations not restored")
	}
}

func TestDeleteAvatar_UnknownAvatar(t *testing.T) {
	e := newTestEngine()

	_, err := e.DeleteAvatar(context.Background(), "ghost", succeed)
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("expected not-found fault, got %v", err)
	}
	if e.History().Len() != 0 {
		t.Error("failed delete left a snapshot behind")
	}
}

func TestOpState_String(t *testing.T) {
	if OpPending.String() != "pending" || OpCommitted.String() != "committed" || OpRolledBack.String() != "rolled_back" {
		t.Error("unexpected op state strings")
	}
}
