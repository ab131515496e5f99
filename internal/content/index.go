// Package content tracks id-level ownership between avatars and the content
// items they created. It is a pure relationship store: payloads live in the
// content-item store, not here.
package content

import "sync"

// Index is a bidirectional avatar-to-content mapping. A content item belongs
// to at most one avatar at a time; Transfer is atomic under the index lock so
// no reader observes an item owned by neither or both avatars.
type Index struct {
	mu       sync.RWMutex
	byAvatar map[string]map[string]struct{}
	owner    map[string]string // content id -> owning avatar id
}

func NewIndex() *Index {
	return &Index{
		byAvatar: make(map[string]map[string]struct{}),
		owner:    make(map[string]string),
	}
}

// Associate links a content item to an avatar. Idempotent; if the item was
// owned by another avatar it is moved, preserving the single-owner invariant.
func (x *Index) Associate(avatarID, contentID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.associateLocked(avatarID, contentID)
}

func (x *Index) associateLocked(avatarID, contentID string) {
	if prev, ok := x.owner[contentID]; ok {
		if prev == avatarID {
			return
		}
		delete(x.byAvatar[prev], contentID)
		if len(x.byAvatar[prev]) == 0 {
			delete(x.byAvatar, prev)
		}
	}

	set, ok := x.byAvatar[avatarID]
	if !ok {
		set = make(map[string]struct{})
		x.byAvatar[avatarID] = set
	}
	set[contentID] = struct{}{}
	x.owner[contentID] = avatarID
}

// Disassociate removes the link. Removing a non-member is a no-op.
func (x *Index) Disassociate(avatarID, contentID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.disassociateLocked(avatarID, contentID)
}

func (x *Index) disassociateLocked(avatarID, contentID string) {
	if x.owner[contentID] != avatarID {
		return
	}
	delete(x.owner, contentID)
	delete(x.byAvatar[avatarID], contentID)
	if len(x.byAvatar[avatarID]) == 0 {
		delete(x.byAvatar, avatarID)
	}
}

// ContentsOf returns the avatar's content ids. Order is unspecified; callers
// needing order must sort by the content item's own timestamp.
func (x *Index) ContentsOf(avatarID string) []string {
	x.mu.RLock()
	defer x.mu.RUnlock()

	set := x.byAvatar[avatarID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Owner returns the avatar owning a content id, if any.
func (x *Index) Owner(contentID string) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	avatarID, ok := x.owner[contentID]
	return avatarID, ok
}

// Transfer moves a content item between avatars. Composed as
// disassociate-then-associate under one lock hold so the intermediate state
// is never visible.
func (x *Index) Transfer(contentID, fromAvatarID, toAvatarID string) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.disassociateLocked(fromAvatarID, contentID)
	x.associateLocked(toAvatarID, contentID)
}

// ClearAvatar removes every association for an avatar (used on avatar
// deletion) and returns the removed content ids so the caller can decide
// transfer or orphan policy.
func (x *Index) ClearAvatar(avatarID string) []string {
	x.mu.Lock()
	defer x.mu.Unlock()

	set := x.byAvatar[avatarID]
	removed := make([]string, 0, len(set))
	for id := range set {
		removed = append(removed, id)
		delete(x.owner, id)
	}
	delete(x.byAvatar, avatarID)
	return removed
}

// Len reports the total number of tracked content items.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.owner)
}

// Export deep-copies the avatar-to-contents map for snapshotting.
func (x *Index) Export() map[string]map[string]struct{} {
	x.mu.RLock()
	defer x.mu.RUnlock()

	out := make(map[string]map[string]struct{}, len(x.byAvatar))
	for avatarID, set := range x.byAvatar {
		cp := make(map[string]struct{}, len(set))
		for id := range set {
			cp[id] = struct{}{}
		}
		out[avatarID] = cp
	}
	return out
}

// Restore replaces the index contents with a previously exported map. The
// reverse map is rebuilt from the forward one.
func (x *Index) Restore(byAvatar map[string]map[string]struct{}) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.byAvatar = make(map[string]map[string]struct{}, len(byAvatar))
	x.owner = make(map[string]string)
	for avatarID, set := range byAvatar {
		cp := make(map[string]struct{}, len(set))
		for id := range set {
			cp[id] = struct{}{}
			x.owner[id] = avatarID
		}
		x.byAvatar[avatarID] = cp
	}
}
