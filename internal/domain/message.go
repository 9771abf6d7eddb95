package domain

import (
	"fmt"
	"strings"
	"time"
)

// RoomMessage is a broadcast message visible to every connection.
// Immutable once created; the server assigns MessageID and Timestamp.
type RoomMessage struct {
	MessageID string
	Sender    string
	Text      string
	Timestamp time.Time
}

// PrivateMessage is a message addressed to one display name. Conversations
// are keyed by the unordered pair {Sender, Recipient}.
type PrivateMessage struct {
	MessageID string
	Sender    string
	Recipient string
	Text      string
	Timestamp time.Time
}

// PairKey returns the canonical storage key for the unordered pair {a, b},
// so a conversation is retrievable regardless of which party queries it.
// The first name is length-prefixed: the separator is a legal display-name
// character, so without the prefix two distinct pairs could share a key.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d|%s|%s", len(a), a, b)
}

// PairKey returns the canonical pair key of an existing private message.
func (m *PrivateMessage) PairKey() string {
	return PairKey(m.Sender, m.Recipient)
}

// RoomMessageModel is the GORM persistence model for room messages.
// Seq provides the authoritative append order; Timestamp ties are broken by it.
type RoomMessageModel struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement"`
	MessageID string    `gorm:"size:36;uniqueIndex"`
	Sender    string    `gorm:"size:64;index"`
	Text      string    `gorm:"type:text"`
	Timestamp time.Time `gorm:"index"`
}

func (RoomMessageModel) TableName() string { return "room_messages" }

func (m *RoomMessageModel) ToDomain() *RoomMessage {
	return &RoomMessage{
		MessageID: m.MessageID,
		Sender:    m.Sender,
		Text:      m.Text,
		Timestamp: m.Timestamp,
	}
}

func RoomMessageToModel(m *RoomMessage) *RoomMessageModel {
	return &RoomMessageModel{
		MessageID: m.MessageID,
		Sender:    m.Sender,
		Text:      m.Text,
		Timestamp: m.Timestamp,
	}
}

// PrivateMessageModel is the GORM persistence model for private messages.
type PrivateMessageModel struct {
	Seq       uint64    `gorm:"primaryKey;autoIncrement"`
	MessageID string    `gorm:"size:36;uniqueIndex"`
	PairKey   string    `gorm:"size:160;index"`
	Sender    string    `gorm:"size:64"`
	Recipient string    `gorm:"size:64"`
	Text      string    `gorm:"type:text"`
	Timestamp time.Time `gorm:"index"`
}

func (PrivateMessageModel) TableName() string { return "private_messages" }

func (m *PrivateMessageModel) ToDomain() *PrivateMessage {
	return &PrivateMessage{
		MessageID: m.MessageID,
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Text:      m.Text,
		Timestamp: m.Timestamp,
	}
}

func PrivateMessageToModel(m *PrivateMessage) *PrivateMessageModel {
	return &PrivateMessageModel{
		MessageID: m.MessageID,
		PairKey:   m.PairKey(),
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Text:      m.Text,
		Timestamp: m.Timestamp,
	}
}

// NormalizeDisplayName trims the surrounding whitespace clients tend to send
// in recipient fields.
func NormalizeDisplayName(name string) string {
	return strings.TrimSpace(name)
}
