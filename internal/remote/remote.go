// Package remote defines the contract the synchronization engine expects from
// the source of truth. Implementations must classify failures through the
// fault taxonomy so the engine can surface them as-is inside a sync fault.
package remote

import (
	"context"

	"avatar-hub/internal/models"
)

// Store is the remote CRUD surface for avatar records.
type Store interface {
	Fetch(ctx context.Context, id string) (models.Avatar, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Avatar, error)
	Update(ctx context.Context, av models.Avatar) error
	SetActive(ctx context.Context, ownerID, avatarID string) error
	Delete(ctx context.Context, id string) error
}

// ListFunc fetches an owner's full avatar list; used by the engine's resync
// path so tests can drive it without a real store.
type ListFunc func(ctx context.Context) ([]models.Avatar, error)

// CommitFunc confirms an optimistic mutation with the remote store.
type CommitFunc func(ctx context.Context) error
