package store

import (
	"context"
	"sync"

	"github.com/driftchat/relay/internal/domain"
)

// MemoryStore keeps message history in process memory. Used when the relay
// runs without a database; everything is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	room    []domain.RoomMessage
	private map[string][]domain.PrivateMessage // pair key -> conversation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		private: make(map[string][]domain.PrivateMessage),
	}
}

func (s *MemoryStore) AppendRoomMessage(ctx context.Context, msg *domain.RoomMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = append(s.room, *msg)
	return nil
}

func (s *MemoryStore) RecentRoomMessages(ctx context.Context, limit int) ([]domain.RoomMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.room) {
		limit = len(s.room)
	}
	out := make([]domain.RoomMessage, limit)
	copy(out, s.room[len(s.room)-limit:])
	return out, nil
}

func (s *MemoryStore) AppendPrivateMessage(ctx context.Context, msg *domain.PrivateMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := msg.PairKey()
	s.private[key] = append(s.private[key], *msg)
	return nil
}

func (s *MemoryStore) PrivateMessagesBetween(ctx context.Context, nameA, nameB string) ([]domain.PrivateMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv := s.private[domain.PairKey(nameA, nameB)]
	out := make([]domain.PrivateMessage, len(conv))
	copy(out, conv)
	return out, nil
}
