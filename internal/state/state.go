// Package state holds the live client-side view of avatar data: the
// avatar-by-id map, the active-avatar-per-owner map and the content
// association index, plus the snapshot history used to undo failed
// optimistic mutations.
package state

import (
	"sync"

	"avatar-hub/internal/content"
	"avatar-hub/internal/models"
)

// State is the only mutable shared state in the core. Reads may run
// concurrently; mutating calls must be serialized by the caller (one event
// loop or one sync engine instance), because snapshot-then-mutate-then-restore
// is not linearizable against a concurrent second writer on the same keys.
type State struct {
	mu       sync.RWMutex
	avatars  map[string]models.Avatar
	active   map[string]string // owner id -> active avatar id
	contents *content.Index
}

func New() *State {
	return &State{
		avatars:  make(map[string]models.Avatar),
		active:   make(map[string]string),
		contents: content.NewIndex(),
	}
}

// Contents exposes the content-association index for direct reads and
// id-level association bookkeeping.
func (s *State) Contents() *content.Index {
	return s.contents
}

func (s *State) Avatar(id string) (models.Avatar, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	av, ok := s.avatars[id]
	if !ok {
		return models.Avatar{}, false
	}
	return av.Clone(), true
}

func (s *State) SetAvatar(av models.Avatar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avatars[av.ID] = av.Clone()
}

// AvatarsByOwner returns the owner's avatars in unspecified order.
func (s *State) AvatarsByOwner(ownerID string) []models.Avatar {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Avatar
	for _, av := range s.avatars {
		if av.OwnerID == ownerID {
			out = append(out, av.Clone())
		}
	}
	return out
}

// ReplaceOwnerAvatars swaps the owner's full avatar set in one step: every
// avatar currently held for that owner is dropped, then the new list is
// installed. Used by resync so a fetched list fully replaces, never merges.
func (s *State) ReplaceOwnerAvatars(ownerID string, avatars []models.Avatar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, av := range s.avatars {
		if av.OwnerID == ownerID {
			delete(s.avatars, id)
		}
	}
	// the old pointer may reference an avatar the new list no longer carries
	delete(s.active, ownerID)
	for _, av := range avatars {
		s.avatars[av.ID] = av.Clone()
		if av.Active {
			s.active[ownerID] = av.ID
		}
	}
}

// RemoveAvatar deletes the avatar and, if it was the owner's active avatar,
// clears the active pointer. Returns the removed record.
func (s *State) RemoveAvatar(id string) (models.Avatar, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	av, ok := s.avatars[id]
	if !ok {
		return models.Avatar{}, false
	}
	delete(s.avatars, id)
	if s.active[av.OwnerID] == id {
		delete(s.active, av.OwnerID)
	}
	return av.Clone(), true
}

// ActiveAvatarID returns the owner's active avatar id, if set.
func (s *State) ActiveAvatarID(ownerID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.active[ownerID]
	return id, ok
}

// SetActiveAvatar makes av the owner's sole active avatar: the previously
// active record (if any) has its flag cleared, av is stored with the flag
// set, and the active pointer is updated.
func (s *State) SetActiveAvatar(ownerID string, av models.Avatar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prevID, ok := s.active[ownerID]; ok && prevID != av.ID {
		if prev, ok := s.avatars[prevID]; ok {
			prev.Active = false
			s.avatars[prevID] = prev
		}
	}

	av = av.Clone()
	av.Active = true
	s.avatars[av.ID] = av
	s.active[ownerID] = av.ID
}

// Len reports the number of avatars held.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.avatars)
}

func (s *State) export() (map[string]models.Avatar, map[string]string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	avatars := make(map[string]models.Avatar, len(s.avatars))
	for id, av := range s.avatars {
		avatars[id] = av.Clone()
	}
	active := make(map[string]string, len(s.active))
	for owner, id := range s.active {
		active[owner] = id
	}
	return avatars, active
}

func (s *State) restore(avatars map[string]models.Avatar, active map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.avatars = make(map[string]models.Avatar, len(avatars))
	for id, av := range avatars {
		s.avatars[id] = av.Clone()
	}
	s.active = make(map[string]string, len(active))
	for owner, id := range active {
		s.active[owner] = id
	}
}
