// Package cache implements the bounded in-memory cache backing avatar reads.
// Each partition is a typed Store with its own entry bound and TTL: LRU
// eviction on overflow, lazy expiration on read.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Store is a bounded key-value cache for one partition. Recency is updated on
// both reads and writes; expired entries are dropped lazily on the read path
// so no sweep goroutine is needed.
type Store[V any] struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	entries    map[string]*list.Element
	lru        *list.List // front = most recently used

	now func() time.Time // overridable in tests
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

func NewStore[V any](maxEntries int, ttl time.Duration) *Store[V] {
	if maxEntries < 1 {
		maxEntries = 1
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store[V]{
		maxEntries: maxEntries,
		ttl:        ttl,
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		now:        time.Now,
	}
}

// Put inserts or overwrites key. When the partition is full the least
// recently used entry is evicted first, so the bound always holds.
func (s *Store[V]) Put(key string, value V) {
	s.PutTTL(key, value, s.ttl)
}

// PutTTL inserts with an explicit TTL overriding the partition default.
func (s *Store[V]) PutTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.ttl
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = s.now().Add(ttl)
		s.lru.MoveToFront(el)
		return
	}

	if s.lru.Len() >= s.maxEntries {
		s.evictOldest()
	}

	el := s.lru.PushFront(&entry[V]{
		key:       key,
		value:     value,
		expiresAt: s.now().Add(ttl),
	})
	s.entries[key] = el
}

// Get returns the cached value. An entry past its TTL is removed and
// reported as a miss.
func (s *Store[V]) Get(key string) (V, bool) {
	var zero V

	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		return zero, false
	}

	e := el.Value.(*entry[V])
	if s.now().After(e.expiresAt) {
		s.removeElement(el)
		return zero, false
	}

	s.lru.MoveToFront(el)
	return e.value, true
}

// Invalidate removes key unconditionally. Removing an absent key is a no-op.
func (s *Store[V]) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.entries[key]; ok {
		s.removeElement(el)
	}
}

// Clear empties the partition.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*list.Element)
	s.lru.Init()
}

// Len reports the current entry count, expired entries included until they
// are touched.
func (s *Store[V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

func (s *Store[V]) evictOldest() {
	if el := s.lru.Back(); el != nil {
		s.removeElement(el)
	}
}

func (s *Store[V]) removeElement(el *list.Element) {
	e := el.Value.(*entry[V])
	delete(s.entries, e.key)
	s.lru.Remove(el)
}
