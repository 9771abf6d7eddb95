package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/driftchat/relay/internal/domain"
)

// fakeCache is an in-memory HistoryCache counting its calls. onSet, when
// non-nil, runs after an entry is stored, to interleave work with a populate.
type fakeCache struct {
	mu          sync.Mutex
	entries     map[string][]domain.PrivateMessage
	sets        int
	invalidates int
	onSet       func()
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]domain.PrivateMessage)}
}

func (f *fakeCache) BuildKey(pairKey string) string {
	return "test:pair:" + pairKey
}

func (f *fakeCache) Get(_ context.Context, key string) ([]domain.PrivateMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	out := make([]domain.PrivateMessage, len(entry))
	copy(out, entry)
	return out, nil
}

func (f *fakeCache) Set(_ context.Context, key string, messages []domain.PrivateMessage, _ time.Duration) error {
	f.mu.Lock()
	f.entries[key] = messages
	f.sets++
	hook := f.onSet
	f.onSet = nil
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (f *fakeCache) Invalidate(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, key)
	f.invalidates++
	return nil
}

func (f *fakeCache) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.entries[key]
	return ok
}

// countingStore counts pair-history fetches against the backing store.
type countingStore struct {
	MessageStore
	mu      sync.Mutex
	fetches int
}

func (c *countingStore) PrivateMessagesBetween(ctx context.Context, nameA, nameB string) ([]domain.PrivateMessage, error) {
	c.mu.Lock()
	c.fetches++
	c.mu.Unlock()
	return c.MessageStore.PrivateMessagesBetween(ctx, nameA, nameB)
}

func (c *countingStore) fetchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

func TestCachedStoreMissThenHit(t *testing.T) {
	backing := &countingStore{MessageStore: NewMemoryStore()}
	cache := newFakeCache()
	s := NewCachedStore(backing, cache, time.Minute)
	ctx := context.Background()

	appendPrivate(t, s, "alice", "bob", "hi bob")

	// First read misses and populates the cache from the backing store.
	got, err := s.PrivateMessagesBetween(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("PrivateMessagesBetween: %v", err)
	}
	assertPrivateTexts(t, got, "hi bob")
	if backing.fetchCount() != 1 || cache.sets != 1 {
		t.Errorf("after miss: fetches = %d sets = %d, want 1 and 1", backing.fetchCount(), cache.sets)
	}

	// Second read is served from the cache.
	got, err = s.PrivateMessagesBetween(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("PrivateMessagesBetween: %v", err)
	}
	assertPrivateTexts(t, got, "hi bob")
	if backing.fetchCount() != 1 {
		t.Errorf("after hit: fetches = %d, want still 1", backing.fetchCount())
	}
}

func TestCachedStoreAppendInvalidates(t *testing.T) {
	backing := &countingStore{MessageStore: NewMemoryStore()}
	cache := newFakeCache()
	s := NewCachedStore(backing, cache, time.Minute)
	ctx := context.Background()

	appendPrivate(t, s, "alice", "bob", "first")
	if _, err := s.PrivateMessagesBetween(ctx, "alice", "bob"); err != nil {
		t.Fatalf("PrivateMessagesBetween: %v", err)
	}

	key := cache.BuildKey(domain.PairKey("alice", "bob"))
	if !cache.has(key) {
		t.Fatal("conversation should be cached after the first read")
	}

	appendPrivate(t, s, "bob", "alice", "second")
	if cache.has(key) {
		t.Error("append should invalidate the cached conversation")
	}

	got, err := s.PrivateMessagesBetween(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("PrivateMessagesBetween: %v", err)
	}
	assertPrivateTexts(t, got, "first", "second")
}

func TestCachedStorePopulateRacingAppend(t *testing.T) {
	backing := &countingStore{MessageStore: NewMemoryStore()}
	cache := newFakeCache()
	s := NewCachedStore(backing, cache, time.Minute)
	ctx := context.Background()

	appendPrivate(t, s, "alice", "bob", "first")

	// An append lands between the backing-store fetch and the cache store;
	// the populated entry is missing "second" and must not survive.
	cache.onSet = func() {
		appendPrivate(t, s, "bob", "alice", "second")
	}

	got, err := s.PrivateMessagesBetween(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("PrivateMessagesBetween: %v", err)
	}
	assertPrivateTexts(t, got, "first")

	key := cache.BuildKey(domain.PairKey("alice", "bob"))
	if cache.has(key) {
		t.Error("populate that raced an append should not pin stale history")
	}

	// The next read sees both messages.
	got, err = s.PrivateMessagesBetween(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("PrivateMessagesBetween: %v", err)
	}
	assertPrivateTexts(t, got, "first", "second")
}

func TestCachedStoreRoomPassThrough(t *testing.T) {
	cache := newFakeCache()
	s := NewCachedStore(NewMemoryStore(), cache, time.Minute)

	appendRoom(t, s, "alice", "hello")
	got, err := s.RecentRoomMessages(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentRoomMessages: %v", err)
	}
	assertRoomTexts(t, got, "hello")
	if cache.sets != 0 {
		t.Errorf("room operations should not touch the cache, sets = %d", cache.sets)
	}
}
