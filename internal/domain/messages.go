package domain

// WebSocket message types from client.
const (
	MsgTypeAuthenticate   = "authenticate"
	MsgTypeRoomMessage    = "room_message"
	MsgTypePrivateMessage = "private_message"
	MsgTypeHistoryRequest = "history_request"
	MsgTypePing           = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeAuthResult     = "auth_result"
	MsgTypePresenceUpdate = "presence_update"
	MsgTypeRoomHistory    = "room_history"
	MsgTypePrivateHistory = "private_history"
	MsgTypeError          = "error"
	MsgTypePong           = "pong"
)

// Error codes
const (
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeStoreUnavailable = "STORE_UNAVAILABLE"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type AuthenticateMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type RoomMessageIn struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type PrivateMessageIn struct {
	Type      string `json:"type"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
}

type HistoryRequestMessage struct {
	Type        string `json:"type"`
	Counterpart string `json:"counterpart"`
}

// Server -> Client messages

type AuthResultMessage struct {
	Type        string `json:"type"`
	Success     bool   `json:"success"`
	UserID      string `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Message     string `json:"message,omitempty"`
}

type PresenceUpdateMessage struct {
	Type   string   `json:"type"`
	Online []string `json:"online"`
}

type RoomMessageOut struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type RoomHistoryMessage struct {
	Type     string           `json:"type"`
	Messages []RoomMessageOut `json:"messages"`
}

type PrivateMessageOut struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type PrivateHistoryMessage struct {
	Type        string              `json:"type"`
	Counterpart string              `json:"counterpart"`
	Messages    []PrivateMessageOut `json:"messages"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}

// RoomMessagePayload converts a stored room message to its wire form.
func RoomMessagePayload(m *RoomMessage) RoomMessageOut {
	return RoomMessageOut{
		Type:      MsgTypeRoomMessage,
		MessageID: m.MessageID,
		Sender:    m.Sender,
		Text:      m.Text,
		Timestamp: m.Timestamp.UnixMilli(),
	}
}

// PrivateMessagePayload converts a stored private message to its wire form.
func PrivateMessagePayload(m *PrivateMessage) PrivateMessageOut {
	return PrivateMessageOut{
		Type:      MsgTypePrivateMessage,
		MessageID: m.MessageID,
		Sender:    m.Sender,
		Recipient: m.Recipient,
		Text:      m.Text,
		Timestamp: m.Timestamp.UnixMilli(),
	}
}
