package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/driftchat/relay/internal/domain"
	"github.com/driftchat/relay/pkg/log"
)

// HistoryCache is the cache contract the decorator consumes. The Redis cache
// implements it; tests supply an in-memory fake.
type HistoryCache interface {
	BuildKey(pairKey string) string
	Get(ctx context.Context, key string) ([]domain.PrivateMessage, error)
	Set(ctx context.Context, key string, messages []domain.PrivateMessage, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// CachedStore decorates a MessageStore with a conversation cache.
// Room operations pass straight through; private-history reads are served
// from the cache when possible, with singleflight collapsing concurrent
// requests for the same pair into one database query.
type CachedStore struct {
	next  MessageStore
	cache HistoryCache
	ttl   time.Duration
	sf    singleflight.Group

	// gen counts appends per cache key. A populate that raced an append is
	// detected by the counter moving and dropped instead of pinning
	// pre-append history until the TTL.
	mu  sync.Mutex
	gen map[string]uint64
}

func NewCachedStore(next MessageStore, cache HistoryCache, ttl time.Duration) *CachedStore {
	return &CachedStore{
		next:  next,
		cache: cache,
		ttl:   ttl,
		gen:   make(map[string]uint64),
	}
}

func (s *CachedStore) AppendRoomMessage(ctx context.Context, msg *domain.RoomMessage) error {
	return s.next.AppendRoomMessage(ctx, msg)
}

func (s *CachedStore) RecentRoomMessages(ctx context.Context, limit int) ([]domain.RoomMessage, error) {
	return s.next.RecentRoomMessages(ctx, limit)
}

func (s *CachedStore) AppendPrivateMessage(ctx context.Context, msg *domain.PrivateMessage) error {
	if err := s.next.AppendPrivateMessage(ctx, msg); err != nil {
		return err
	}

	// The cached conversation is now stale; drop it so the next history
	// request includes this message.
	key := s.cache.BuildKey(msg.PairKey())
	s.bumpGeneration(key)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Str("cache_key", key).Msg("cache invalidation failed")
	}
	return nil
}

func (s *CachedStore) PrivateMessagesBetween(ctx context.Context, nameA, nameB string) ([]domain.PrivateMessage, error) {
	key := s.cache.BuildKey(domain.PairKey(nameA, nameB))

	result, err, _ := s.sf.Do(key, func() (interface{}, error) {
		return s.fetchWithCache(ctx, nameA, nameB, key)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.PrivateMessage), nil
}

func (s *CachedStore) fetchWithCache(ctx context.Context, nameA, nameB, key string) ([]domain.PrivateMessage, error) {
	cached, err := s.cache.Get(ctx, key)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache get error")
	}

	before := s.generation(key)
	messages, err := s.next.PrivateMessagesBetween(ctx, nameA, nameB)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, messages, s.ttl); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Msg("cache set error")
	} else if s.generation(key) != before {
		// An append landed while the entry was being populated.
		if err := s.cache.Invalidate(ctx, key); err != nil {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Str("cache_key", key).Msg("cache invalidation failed")
		}
	}

	return messages, nil
}

func (s *CachedStore) generation(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen[key]
}

func (s *CachedStore) bumpGeneration(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen[key]++
}
