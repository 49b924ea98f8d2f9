package cache

import (
	"testing"
	"time"
)

// fakeClock lets tests advance the store's notion of now.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestStore(capacity int) (*Store, *fakeClock) {
	s := NewStore(capacity)
	clock := newFakeClock()
	s.now = clock.Now
	return s, clock
}

func TestStore_GetAbsent(t *testing.T) {
	s, _ := newTestStore(10)

	data, stale, ok := s.Get("missing")
	if ok {
		t.Fatal("expected absent result")
	}
	if data != nil {
		t.Errorf("expected nil data, got %v", data)
	}
	if !stale {
		t.Error("absent entries report stale")
	}
}

func TestStore_FreshnessTransitions(t *testing.T) {
	s, clock := newTestStore(10)
	tier := Tier{Name: "test", StaleTime: 10 * time.Second, MaxAge: 60 * time.Second}

	s.Set("k", "v", tier)

	data, stale, ok := s.Get("k")
	if !ok || stale {
		t.Fatalf("expected fresh hit, got ok=%v stale=%v", ok, stale)
	}
	if data != "v" {
		t.Errorf("expected v, got %v", data)
	}

	// Just before the stale threshold: still fresh.
	clock.Advance(10 * time.Second)
	if _, stale, ok := s.Get("k"); !ok || stale {
		t.Errorf("at staleAt exactly: expected fresh, got ok=%v stale=%v", ok, stale)
	}

	// Between staleAt and expiresAt: served stale.
	clock.Advance(time.Second)
	data, stale, ok = s.Get("k")
	if !ok || !stale {
		t.Fatalf("expected stale hit, got ok=%v stale=%v", ok, stale)
	}
	if data != "v" {
		t.Errorf("stale read should still return data, got %v", data)
	}

	// Past expiresAt: absent, and the entry is removed on read.
	clock.Advance(50 * time.Second)
	if _, _, ok := s.Get("k"); ok {
		t.Fatal("expected expired entry to be absent")
	}
	if s.Len() != 0 {
		t.Errorf("expired entry should be deleted on read, len=%d", s.Len())
	}
}

func TestStore_SetOverwrites(t *testing.T) {
	s, clock := newTestStore(10)

	s.Set("k", "old", TierPrice)
	clock.Advance(30 * time.Second)
	s.Set("k", "new", TierPrice)

	data, stale, ok := s.Get("k")
	if !ok || stale {
		t.Fatalf("overwrite should restart freshness, got ok=%v stale=%v", ok, stale)
	}
	if data != "new" {
		t.Errorf("expected new, got %v", data)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", s.Len())
	}
}

func TestStore_StaleTimeClampedToMaxAge(t *testing.T) {
	s, clock := newTestStore(10)
	inverted := Tier{Name: "bad", StaleTime: time.Minute, MaxAge: time.Second}

	s.Set("k", "v", inverted)
	clock.Advance(2 * time.Second)

	// MaxAge wins: the entry must be gone, not fresh.
	if _, _, ok := s.Get("k"); ok {
		t.Error("entry should expire at MaxAge even when StaleTime exceeds it")
	}
}

func TestStore_EvictsLeastRecentlyUsed(t *testing.T) {
	s, _ := newTestStore(3)

	s.Set("a", 1, TierDefault)
	s.Set("b", 2, TierDefault)
	s.Set("c", 3, TierDefault)
	s.Set("d", 4, TierDefault)

	if _, _, ok := s.Get("a"); ok {
		t.Error("oldest key should have been evicted")
	}
	for _, key := range []string{"b", "c", "d"} {
		if _, _, ok := s.Get(key); !ok {
			t.Errorf("key %s should still be resident", key)
		}
	}
	if s.Len() != 3 {
		t.Errorf("expected len 3, got %d", s.Len())
	}
}

func TestStore_EvictionHookFires(t *testing.T) {
	s, _ := newTestStore(2)

	var evictions int
	s.onEvict = func() { evictions++ }

	s.Set("a", 1, TierDefault)
	s.Set("b", 2, TierDefault)
	if evictions != 0 {
		t.Fatalf("expected no evictions below capacity, got %d", evictions)
	}

	// Overwrites never evict.
	s.Set("a", 10, TierDefault)
	if evictions != 0 {
		t.Fatalf("expected no evictions on overwrite, got %d", evictions)
	}

	s.Set("c", 3, TierDefault)
	s.Set("d", 4, TierDefault)
	if evictions != 2 {
		t.Errorf("expected 2 evictions, got %d", evictions)
	}

	// Invalidation is not an eviction.
	s.Invalidate("d")
	if evictions != 2 {
		t.Errorf("invalidate must not count as eviction, got %d", evictions)
	}
}

func TestStore_ReadRefreshesRecency(t *testing.T) {
	s, _ := newTestStore(3)

	s.Set("a", 1, TierDefault)
	s.Set("b", 2, TierDefault)
	s.Set("c", 3, TierDefault)

	// Touch a so b becomes the eviction victim.
	if _, _, ok := s.Get("a"); !ok {
		t.Fatal("a should be resident")
	}
	s.Set("d", 4, TierDefault)

	if _, _, ok := s.Get("b"); ok {
		t.Error("b should have been evicted after a was touched")
	}
	if _, _, ok := s.Get("a"); !ok {
		t.Error("a should survive eviction")
	}
}

func TestStore_NewKeyNeverEvictsItself(t *testing.T) {
	s, _ := newTestStore(1)

	s.Set("a", 1, TierDefault)
	s.Set("b", 2, TierDefault)

	if _, _, ok := s.Get("b"); !ok {
		t.Error("the newly inserted key must survive eviction")
	}
	if _, _, ok := s.Get("a"); ok {
		t.Error("a should have been evicted")
	}
}

func TestStore_InvalidatePrefix(t *testing.T) {
	s, _ := newTestStore(10)

	s.Set(PriceKey("1", "0xabc"), 1.0, TierPrice)
	s.Set(PriceKey("1", "0xdef"), 2.0, TierPrice)
	s.Set(PriceKey("56", "0xabc"), 3.0, TierPrice)
	s.Set(TokenListKey("1"), []string{"0xabc"}, TierTokenList)

	s.InvalidatePrefix("price:1:")

	if _, _, ok := s.Get(PriceKey("1", "0xabc")); ok {
		t.Error("price:1:0xabc should be gone")
	}
	if _, _, ok := s.Get(PriceKey("1", "0xdef")); ok {
		t.Error("price:1:0xdef should be gone")
	}
	if _, _, ok := s.Get(PriceKey("56", "0xabc")); !ok {
		t.Error("price:56:0xabc should be unaffected")
	}
	if _, _, ok := s.Get(TokenListKey("1")); !ok {
		t.Error("token-list:1 should be unaffected")
	}
}

func TestStore_InvalidateAndClear(t *testing.T) {
	s, _ := newTestStore(10)

	s.Set("a", 1, TierDefault)
	s.Set("b", 2, TierDefault)

	s.Invalidate("a")
	if _, _, ok := s.Get("a"); ok {
		t.Error("a should be invalidated")
	}
	if _, _, ok := s.Get("b"); !ok {
		t.Error("b should remain")
	}

	s.Clear()
	if s.Len() != 0 {
		t.Errorf("expected empty store after Clear, len=%d", s.Len())
	}
}

func TestStore_DefaultCapacity(t *testing.T) {
	s := NewStore(0)
	if _, capacity := s.Stats(); capacity != DefaultCapacity {
		t.Errorf("expected default capacity %d, got %d", DefaultCapacity, capacity)
	}
}
