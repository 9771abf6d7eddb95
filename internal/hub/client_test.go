package hub

import (
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/driftchat/relay/internal/config"
	"github.com/driftchat/relay/internal/domain"
)

// fakeConn is an in-memory Conn that serves scripted inbound frames and
// records outbound writes.
type fakeConn struct {
	mu       sync.Mutex
	inbound  [][]byte
	written  [][]byte
	closed   bool
	readErr  error
	writeErr error
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inbound) == 0 {
		if f.readErr != nil {
			return 0, nil, f.readErr
		}
		return 0, nil, io.EOF
	}
	msg := f.inbound[0]
	f.inbound = f.inbound[1:]
	return 1, msg, nil
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, data)
	return nil
}

func (f *fakeConn) SetReadLimit(int64) {}

func (f *fakeConn) SetReadDeadline(time.Time) error { return nil }

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) SetPongHandler(func(string) error) {}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) writtenFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   time.Minute,
		PongWait:       time.Minute,
		WriteWait:      time.Second,
		MaxMessageSize: 4096,
	}
}

func TestReadPumpDispatchesInOrder(t *testing.T) {
	conn := &fakeConn{inbound: [][]byte{[]byte(`{"type":"ping"}`), []byte(`{"type":"pong"}`)}}
	c := NewClient("conn-1", conn, testWSConfig())

	var got []string
	c.ReadPump(func(_ *Client, message []byte) {
		var base domain.BaseMessage
		json.Unmarshal(message, &base)
		got = append(got, base.Type)
	})

	if len(got) != 2 || got[0] != "ping" || got[1] != "pong" {
		t.Errorf("dispatched %v, want [ping pong]", got)
	}
	if !conn.closed {
		t.Error("read pump exit should close the transport")
	}
}

func TestReadPumpStopsOnError(t *testing.T) {
	conn := &fakeConn{readErr: errors.New("broken pipe")}
	c := NewClient("conn-1", conn, testWSConfig())

	calls := 0
	c.ReadPump(func(_ *Client, _ []byte) { calls++ })

	if calls != 0 {
		t.Errorf("handler called %d times on a dead transport, want 0", calls)
	}
}

func TestWritePumpDeliversEnqueuedMessages(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient("conn-1", conn, testWSConfig())

	done := make(chan struct{})
	go func() {
		c.WritePump()
		close(done)
	}()

	c.SendMessage(&domain.BaseMessage{Type: "pong"})
	c.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "test"))

	deadline := time.After(2 * time.Second)
	for {
		if len(conn.writtenFrames()) >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("wrote %d frames, want 2", len(conn.writtenFrames()))
		case <-time.After(10 * time.Millisecond):
		}
	}

	c.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("write pump did not stop after Close")
	}

	frames := conn.writtenFrames()
	var first domain.BaseMessage
	if err := json.Unmarshal(frames[0], &first); err != nil || first.Type != "pong" {
		t.Errorf("first frame = %s, want pong event", frames[0])
	}
}

func TestSendMessageDropsWhenBufferFull(t *testing.T) {
	c := NewClient("conn-1", &fakeConn{}, testWSConfig())

	// No write pump is draining, so the buffer eventually fills; the extra
	// messages must be dropped without blocking.
	for i := 0; i < sendBufferSize+10; i++ {
		if err := c.SendMessage(&domain.BaseMessage{Type: "pong"}); err != nil {
			t.Fatalf("SendMessage: %v", err)
		}
	}
	if got := len(c.Send); got != sendBufferSize {
		t.Errorf("buffered %d messages, want %d", got, sendBufferSize)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	conn := &fakeConn{}
	c := NewClient("conn-1", conn, testWSConfig())

	c.Close()
	c.Close()

	if !conn.closed {
		t.Error("transport should be closed")
	}
}
