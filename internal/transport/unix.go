package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/result"
)

// UnixTransport is a StreamingTransport over a Unix domain stream socket,
// the local-IPC transport named in spec §4.6.
type UnixTransport struct {
	path string

	mu        sync.Mutex
	conn      net.Conn
	reader    *bufio.Reader
	connected bool
	streaming bool

	onMessage func(result.Message)
}

// NewUnixTransport returns a transport that dials the Unix socket at path
// on Connect.
func NewUnixTransport(path string) *UnixTransport {
	return &UnixTransport{path: path}
}

// DefaultSocketPath returns the default Unix socket path for the
// reference server and its clients, preferring XDG_RUNTIME_DIR and
// falling back to the system temp directory.
func DefaultSocketPath() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "shellbridge.sock")
	}
	return filepath.Join(os.TempDir(), "shellbridge.sock")
}

func (t *UnixTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "unix", t.path)
	if err != nil {
		return fmt.Errorf("connect %s: %w", t.path, err)
	}
	t.conn = conn
	t.reader = bufio.NewReader(conn)
	t.connected = true

	// Drain a welcome line if the server sends one; absence of one within
	// a short window is not an error.
	_ = conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _ = t.reader.ReadString('\n')
	_ = conn.SetReadDeadline(time.Time{})
	return nil
}

func (t *UnixTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		t.connected = false
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.reader = nil
	t.connected = false
	t.streaming = false
	return err
}

func (t *UnixTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *UnixTransport) Send(ctx context.Context, cmd command.ParsedCommand) result.CommandResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return result.Fail("Not connected")
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = t.conn.SetDeadline(dl)
	}
	if err := writeFrame(t.conn, commandFrame(cmd)); err != nil {
		t.markDisconnectedLocked()
		return result.Fail(fmt.Sprintf("Connection failed: %s", err.Error()))
	}
	r := readResult(t.reader)
	if !r.Success && r.Error != nil && isConnectionLost(*r.Error) {
		t.markDisconnectedLocked()
	}
	return r
}

func (t *UnixTransport) Ping(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return false
	}
	if err := writeFrame(t.conn, requestFrame{Type: framePing}); err != nil {
		t.markDisconnectedLocked()
		return false
	}
	_ = readResult(t.reader)
	return true
}

func (t *UnixTransport) GetInfo(ctx context.Context) map[string]any {
	return map[string]any{"transport": "unix", "endpoint": t.path, "connected": t.IsConnected()}
}

func (t *UnixTransport) GetEndpoint() string { return t.path }

func (t *UnixTransport) SendAsync(ctx context.Context, cmd command.ParsedCommand) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return fmt.Errorf("not connected")
	}
	if err := writeFrame(t.conn, commandFrame(cmd)); err != nil {
		t.markDisconnectedLocked()
		return err
	}
	return nil
}

func (t *UnixTransport) Receive(timeout time.Duration) (*result.Message, error) {
	t.mu.Lock()
	conn, reader, connected := t.conn, t.reader, t.connected
	t.mu.Unlock()

	if !connected {
		return nil, fmt.Errorf("not connected")
	}

	if timeout >= 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		defer conn.SetReadDeadline(time.Time{})
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, nil
		}
		t.mu.Lock()
		t.markDisconnectedLocked()
		t.mu.Unlock()
		return nil, nil
	}
	msg := decodeMessage(line)
	return &msg, nil
}

func (t *UnixTransport) OnMessage(cb func(result.Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = cb
}

func (t *UnixTransport) DispatchMessage(msg result.Message) {
	t.mu.Lock()
	cb := t.onMessage
	t.mu.Unlock()
	if cb != nil {
		cb(msg)
	}
}

func (t *UnixTransport) StartStreaming(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return fmt.Errorf("not connected")
	}
	if err := writeFrame(t.conn, requestFrame{Type: frameSubscribe}); err != nil {
		return err
	}
	t.streaming = true
	return nil
}

func (t *UnixTransport) StopStreaming(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streaming = false
	if !t.connected {
		return nil
	}
	return writeFrame(t.conn, requestFrame{Type: frameUnsubscribe})
}

func (t *UnixTransport) IsStreaming() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streaming
}

func (t *UnixTransport) SupportsStreaming() bool { return true }

// markDisconnectedLocked records a connection as lost. Caller must hold t.mu.
func (t *UnixTransport) markDisconnectedLocked() {
	t.connected = false
	t.streaming = false
}

func isConnectionLost(errMsg string) bool {
	if errMsg == "" {
		return false
	}
	for _, sub := range []string{"EOF", "broken pipe", "connection reset", "use of closed"} {
		if strings.Contains(errMsg, sub) {
			return true
		}
	}
	return false
}

var _ StreamingTransport = (*UnixTransport)(nil)
