// Package syncer orchestrates round-trips to the remote store: full owner
// resyncs and optimistic mutations that pair a local write with a snapshot,
// a remote commit and rollback on failure.
package syncer

import (
	"context"
	"log/slog"

	"avatar-hub/internal/cache"
	"avatar-hub/internal/fault"
	"avatar-hub/internal/models"
	"avatar-hub/internal/pending"
	"avatar-hub/internal/remote"
	"avatar-hub/internal/state"
)

// OpState is the lifecycle of one logical operation. Pending transitions to
// exactly one of Committed or RolledBack; both are terminal.
type OpState int

const (
	OpPending OpState = iota
	OpCommitted
	OpRolledBack
)

func (s OpState) String() string {
	switch s {
	case OpPending:
		return "pending"
	case OpCommitted:
		return "committed"
	case OpRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// Engine is the single mutation path over the live state. One shared instance
// is constructed at startup and passed down; optimistic mutations against the
// same logical key must not be invoked concurrently without external
// serialization (the snapshot discipline is not linearizable against a second
// writer on the same keys).
type Engine struct {
	log     *slog.Logger
	st      *state.State
	hist    *state.History
	cache   *cache.AvatarCache
	pending *pending.Tracker
}

func New(log *slog.Logger, st *state.State, hist *state.History, c *cache.AvatarCache, tr *pending.Tracker) *Engine {
	return &Engine{
		log:     log,
		st:      st,
		hist:    hist,
		cache:   c,
		pending: tr,
	}
}

func (e *Engine) State() *state.State       { return e.st }
func (e *Engine) History() *state.History   { return e.hist }
func (e *Engine) Cache() *cache.AvatarCache { return e.cache }
func (e *Engine) Pending() *pending.Tracker { return e.pending }

// ResyncOwner fetches the owner's full avatar list and replaces both the live
// state and the cache entries for that owner. No snapshot is taken: the fetch
// either succeeds and fully replaces, or fails and leaves everything exactly
// as it was. No merge, no partial overwrite.
func (e *Engine) ResyncOwner(ctx context.Context, ownerID string, fetch remote.ListFunc) ([]models.Avatar, error) {
	const op = "syncer.ResyncOwner"

	opID := e.pending.Begin("")
	defer e.pending.End(opID)

	avatars, err := fetch(ctx)
	if err != nil {
		e.log.Warn("resync_failed", "op_id", opID, "owner_id", ownerID, "error", err)
		return nil, fault.Wrap(fault.KindSync, op, err)
	}

	e.st.ReplaceOwnerAvatars(ownerID, avatars)
	e.cache.PutOwnerList(ownerID, avatars)
	for _, av := range avatars {
		e.cache.PutAvatar(av)
	}

	e.log.Info("resync_completed", "op_id", opID, "owner_id", ownerID, "count", len(avatars))
	return avatars, nil
}

// UpdateAvatar applies next to the live state immediately, then confirms with
// the remote store. On remote failure the snapshot taken before the local
// write is restored and the failure is surfaced as a sync fault: callers must
// treat the operation as never having happened.
func (e *Engine) UpdateAvatar(ctx context.Context, avatarID string, next models.Avatar, commit remote.CommitFunc) error {
	const op = "syncer.UpdateAvatar"

	if next.ID == "" {
		next.ID = avatarID
	}
	if next.ID != avatarID {
		return fault.New(fault.KindValidation, op, "avatar id mismatch")
	}

	opID := e.pending.Begin("")
	defer e.pending.End(opID)

	// snapshot first, then the optimistic write
	e.hist.Capture(e.st)
	e.st.SetAvatar(next)
	e.log.Debug("optimistic_update_applied", "op_id", opID, "avatar_id", avatarID, "state", OpPending.String())

	if err := commit(ctx); err != nil {
		e.hist.RestoreLatest(e.st)
		e.log.Warn("update_rolled_back", "op_id", opID, "avatar_id", avatarID, "state", OpRolledBack.String(), "error", err)
		return fault.Wrap(fault.KindSync, op, err)
	}

	// force the next read to refetch the confirmed record
	e.cache.InvalidateAvatar(avatarID)
	e.cache.InvalidateOwner(next.OwnerID)

	e.log.Info("update_committed", "op_id", opID, "avatar_id", avatarID, "state", OpCommitted.String())
	return nil
}

// SetActiveAvatar makes av the owner's active avatar, optimistically. The
// ownership precondition is checked before any snapshot or mutation: an
// avatar belonging to a different owner fails fast with zero side effects.
func (e *Engine) SetActiveAvatar(ctx context.Context, ownerID string, av models.Avatar, commit remote.CommitFunc) error {
	const op = "syncer.SetActiveAvatar"

	if av.OwnerID != ownerID {
		return fault.New(fault.KindValidation, op,
			"avatar "+av.ID+" does not belong to owner "+ownerID)
	}

	opID := e.pending.Begin("")
	defer e.pending.End(opID)

	e.hist.Capture(e.st)
	e.st.SetActiveAvatar(ownerID, av)
	e.log.Debug("optimistic_activate_applied", "op_id", opID, "avatar_id", av.ID, "state", OpPending.String())

	if err := commit(ctx); err != nil {
		e.hist.RestoreLatest(e.st)
		e.log.Warn("activate_rolled_back", "op_id", opID, "avatar_id", av.ID, "state", OpRolledBack.String(), "error", err)
		return fault.Wrap(fault.KindSync, op, err)
	}

	e.cache.InvalidateAvatar(av.ID)
	e.cache.InvalidateOwner(ownerID)

	e.log.Info("activate_committed", "op_id", opID, "owner_id", ownerID, "avatar_id", av.ID, "state", OpCommitted.String())
	return nil
}

// DeleteAvatar removes the avatar optimistically and cascades: cache entries,
// the owner's active pointer if it pointed here, and the content associations.
// The orphaned content ids are returned so the caller can decide transfer or
// archive policy; this core does not own that choice.
func (e *Engine) DeleteAvatar(ctx context.Context, avatarID string, commit remote.CommitFunc) ([]string, error) {
	const op = "syncer.DeleteAvatar"

	opID := e.pending.Begin("")
	defer e.pending.End(opID)

	e.hist.Capture(e.st)

	av, ok := e.st.RemoveAvatar(avatarID)
	if !ok {
		// nothing was mutated; drop the snapshot we just pushed
		e.hist.RestoreLatest(e.st)
		return nil, fault.New(fault.KindNotFound, op, "avatar "+avatarID+" not held locally")
	}
	orphaned := e.st.Contents().ClearAvatar(avatarID)
	e.log.Debug("optimistic_delete_applied", "op_id", opID, "avatar_id", avatarID, "state", OpPending.String())

	if err := commit(ctx); err != nil {
		e.hist.RestoreLatest(e.st)
		e.log.Warn("delete_rolled_back", "op_id", opID, "avatar_id", avatarID, "state", OpRolledBack.String(), "error", err)
		return nil, fault.Wrap(fault.KindSync, op, err)
	}

	e.cache.InvalidateAvatar(avatarID)
	e.cache.InvalidateOwner(av.OwnerID)

	e.log.Info("delete_committed", "op_id", opID, "avatar_id", avatarID, "orphaned_contents", len(orphaned), "state", OpCommitted.String())
	return orphaned, nil
}
