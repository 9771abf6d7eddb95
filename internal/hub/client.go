package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/driftchat/relay/internal/config"
	"github.com/driftchat/relay/internal/domain"
	"github.com/driftchat/relay/pkg/log"
)

const sendBufferSize = 256

// Conn is the subset of *websocket.Conn the client uses. Narrowed to an
// interface so tests can drive a client without a live transport.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one live transport connection. It owns the read loop for inbound
// events and a buffered send channel that serializes all outbound writes to
// the peer.
type Client struct {
	ID      string
	Session *domain.Session
	Send    chan []byte

	conn   Conn
	config config.WebSocketConfig

	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(id string, conn Conn, cfg config.WebSocketConfig) *Client {
	return &Client{
		ID:      id,
		Session: domain.NewSession(id),
		Send:    make(chan []byte, sendBufferSize),
		conn:    conn,
		config:  cfg,
		done:    make(chan struct{}),
	}
}

// ReadPump reads inbound events sequentially and hands each to handler.
// It returns when the transport closes or errors.
func (c *Client) ReadPump(handler func(*Client, []byte)) {
	defer c.Close()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				l := log.L()
				l.Warn().Str(log.FieldConnID, c.ID).Err(err).Msg("websocket read error")
			}
			return
		}

		c.Session.UpdateActivity()
		handler(c, message)
	}
}

// WritePump drains the send channel onto the transport and keeps the
// connection alive with pings. Outbound delivery order equals enqueue order.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case message := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// SendMessage marshals message and enqueues it for delivery. A client whose
// buffer is full has the message dropped rather than stalling the sender's
// event loop.
func (c *Client) SendMessage(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	select {
	case c.Send <- data:
	default:
		l := log.L()
		l.Warn().Str(log.FieldConnID, c.ID).Msg("send buffer full, dropping message")
	}
	return nil
}

// Close shuts the transport down. Safe to call more than once and from any
// goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	})
}
