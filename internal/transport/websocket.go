package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/result"
)

// WebSocketTransport is a StreamingTransport over a gorilla/websocket
// connection, matching the request/response and push framing of the
// local-IPC transport but carried over ws(s)://.
type WebSocketTransport struct {
	url    string
	header http.Header

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	streaming bool
	onMessage func(result.Message)
}

// NewWebSocketTransport dials url (e.g. "ws://host:port/ws") on Connect.
func NewWebSocketTransport(url string) *WebSocketTransport {
	return &WebSocketTransport{url: url, header: http.Header{}}
}

func (t *WebSocketTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, t.url, t.header)
	if err != nil {
		return fmt.Errorf("connect %s: %w", t.url, err)
	}
	t.conn = conn
	t.connected = true
	return nil
}

func (t *WebSocketTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		t.connected = false
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.connected = false
	t.streaming = false
	return err
}

func (t *WebSocketTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *WebSocketTransport) Send(ctx context.Context, cmd command.ParsedCommand) result.CommandResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return result.Fail("Not connected")
	}
	if err := t.conn.WriteJSON(commandFrame(cmd)); err != nil {
		t.markDisconnectedLocked()
		return result.Fail(fmt.Sprintf("Connection failed: %s", err.Error()))
	}
	var cr result.CommandResult
	if err := t.conn.ReadJSON(&cr); err != nil {
		t.markDisconnectedLocked()
		return result.Fail("Invalid JSON response")
	}
	return cr
}

func (t *WebSocketTransport) Ping(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return false
	}
	deadline := time.Now().Add(2 * time.Second)
	if err := t.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		return false
	}
	return true
}

func (t *WebSocketTransport) GetInfo(ctx context.Context) map[string]any {
	return map[string]any{"transport": "websocket", "endpoint": t.url, "connected": t.IsConnected()}
}

func (t *WebSocketTransport) GetEndpoint() string { return t.url }

func (t *WebSocketTransport) SendAsync(ctx context.Context, cmd command.ParsedCommand) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return fmt.Errorf("not connected")
	}
	if err := t.conn.WriteJSON(commandFrame(cmd)); err != nil {
		t.markDisconnectedLocked()
		return err
	}
	return nil
}

func (t *WebSocketTransport) Receive(timeout time.Duration) (*result.Message, error) {
	t.mu.Lock()
	conn, connected := t.conn, t.connected
	t.mu.Unlock()

	if !connected {
		return nil, fmt.Errorf("not connected")
	}

	if timeout >= 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		defer conn.SetReadDeadline(time.Time{})
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
			return nil, nil
		}
		t.mu.Lock()
		t.markDisconnectedLocked()
		t.mu.Unlock()
		return nil, nil
	}
	msg := decodeMessage(string(data) + "\n")
	return &msg, nil
}

func (t *WebSocketTransport) OnMessage(cb func(result.Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = cb
}

func (t *WebSocketTransport) DispatchMessage(msg result.Message) {
	t.mu.Lock()
	cb := t.onMessage
	t.mu.Unlock()
	if cb != nil {
		cb(msg)
	}
}

func (t *WebSocketTransport) StartStreaming(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return fmt.Errorf("not connected")
	}
	if err := t.conn.WriteJSON(requestFrame{Type: frameSubscribe}); err != nil {
		return err
	}
	t.streaming = true
	return nil
}

func (t *WebSocketTransport) StopStreaming(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streaming = false
	if !t.connected {
		return nil
	}
	return t.conn.WriteJSON(requestFrame{Type: frameUnsubscribe})
}

func (t *WebSocketTransport) IsStreaming() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streaming
}

func (t *WebSocketTransport) SupportsStreaming() bool { return true }

func (t *WebSocketTransport) markDisconnectedLocked() {
	t.connected = false
	t.streaming = false
}

var _ StreamingTransport = (*WebSocketTransport)(nil)
