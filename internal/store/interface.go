package store

import (
	"context"

	"github.com/driftchat/relay/internal/domain"
)

// MessageStore is the persistence contract for the relay's message history.
// The room log is append-only and replayed by recency; private messages are
// keyed by the unordered participant pair. Append and read operations on the
// same key are linearizable with respect to each other.
//
// Two adapters satisfy the contract: an in-memory store that lives and dies
// with the process, and a GORM-backed store for history that must survive a
// restart.
type MessageStore interface {
	AppendRoomMessage(ctx context.Context, msg *domain.RoomMessage) error
	// RecentRoomMessages returns the most recent limit entries in
	// chronological (oldest-first) order.
	RecentRoomMessages(ctx context.Context, limit int) ([]domain.RoomMessage, error)

	AppendPrivateMessage(ctx context.Context, msg *domain.PrivateMessage) error
	// PrivateMessagesBetween returns the conversation for the unordered pair
	// {nameA, nameB} in chronological order, regardless of argument order.
	PrivateMessagesBetween(ctx context.Context, nameA, nameB string) ([]domain.PrivateMessage, error)
}
