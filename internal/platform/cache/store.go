package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity is the eviction threshold used when no explicit
// capacity is configured. A tunable, not a protocol guarantee.
const DefaultCapacity = 500

// entry is a cached value with its freshness window.
type entry struct {
	key       string
	data      any
	createdAt time.Time
	staleAt   time.Time
	expiresAt time.Time
}

// Store holds cache entries keyed by opaque string and classifies each
// read as fresh or stale. Expired entries are deleted on read. At
// capacity the least-recently-used entry is evicted.
//
// One mutex guards the entry map and the access-order list together;
// they always mutate as a unit.
type Store struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	access   *list.List // front = most recently used, back = eviction victim

	now func() time.Time

	// onEvict fires once per LRU eviction, with the lock held; it must
	// not call back into the store.
	onEvict func()
}

// NewStore creates a store with the given capacity.
// A non-positive capacity falls back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Store{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		access:   list.New(),
		now:      time.Now,
	}
}

// Get returns the entry for key. ok is false when the key is absent or
// the entry has expired (expired entries are removed on the spot).
// A returned entry is marked stale once its stale threshold has passed;
// reading it refreshes its recency.
func (s *Store) Get(key string) (data any, stale bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, exists := s.entries[key]
	if !exists {
		return nil, true, false
	}

	e := elem.Value.(*entry)
	now := s.now()

	if now.After(e.expiresAt) {
		s.remove(key)
		return nil, true, false
	}

	s.access.MoveToFront(elem)
	return e.data, now.After(e.staleAt), true
}

// Set stores data under key with the tier's freshness window,
// overwriting any existing entry. Eviction runs before insertion so the
// incoming key can never be its own victim.
func (s *Store) Set(key string, data any, tier Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	staleAt := now.Add(tier.StaleTime)
	expiresAt := now.Add(tier.MaxAge)
	if staleAt.After(expiresAt) {
		staleAt = expiresAt
	}

	if elem, exists := s.entries[key]; exists {
		e := elem.Value.(*entry)
		e.data = data
		e.createdAt = now
		e.staleAt = staleAt
		e.expiresAt = expiresAt
		s.access.MoveToFront(elem)
		return
	}

	for s.access.Len() >= s.capacity {
		s.evictOldest()
	}

	elem := s.access.PushFront(&entry{
		key:       key,
		data:      data,
		createdAt: now,
		staleAt:   staleAt,
		expiresAt: expiresAt,
	})
	s.entries[key] = elem
}

// Invalidate removes the entry for key, if present.
func (s *Store) Invalidate(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remove(key)
}

// InvalidatePrefix removes every entry whose key starts with prefix.
func (s *Store) InvalidatePrefix(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			s.remove(key)
		}
	}
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*list.Element)
	s.access.Init()
}

// Len returns the number of resident entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// Stats returns the resident entry count and configured capacity.
func (s *Store) Stats() (size, capacity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries), s.capacity
}

// remove deletes an entry and its access record (caller must hold lock)
func (s *Store) remove(key string) {
	if elem, exists := s.entries[key]; exists {
		s.access.Remove(elem)
		delete(s.entries, key)
	}
}

// evictOldest removes the least-recently-used entry (caller must hold lock)
func (s *Store) evictOldest() {
	elem := s.access.Back()
	if elem == nil {
		return
	}
	s.remove(elem.Value.(*entry).key)
	if s.onEvict != nil {
		s.onEvict()
	}
}
