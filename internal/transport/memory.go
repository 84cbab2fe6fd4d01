package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/result"
)

var errNotConnected = errors.New("not connected")

// MemoryTransport dispatches directly to a local Dispatcher, with no I/O.
// It is used in tests to exercise the shell and registry without a socket
// or HTTP server, and defines correctness for the other implementations
// to match.
type MemoryTransport struct {
	dispatcher Dispatcher

	mu        sync.Mutex
	connected bool
	streaming bool
	onMessage func(result.Message)
	pushed    chan result.Message
}

// NewMemoryTransport wraps dispatcher. Messages pushed via Push are
// queued (up to 64; further pushes are dropped while the queue is full)
// and delivered to a subsequent Receive. Push does not invoke the
// OnMessage callback; DispatchMessage does.
func NewMemoryTransport(dispatcher Dispatcher) *MemoryTransport {
	return &MemoryTransport{
		dispatcher: dispatcher,
		pushed:     make(chan result.Message, 64),
	}
}

func (t *MemoryTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = true
	return nil
}

func (t *MemoryTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	t.streaming = false
	return nil
}

func (t *MemoryTransport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *MemoryTransport) Send(ctx context.Context, cmd command.ParsedCommand) result.CommandResult {
	if !t.IsConnected() {
		return result.Fail("Not connected")
	}
	return t.dispatcher.Dispatch(ctx, cmd)
}

func (t *MemoryTransport) Ping(ctx context.Context) bool {
	return t.IsConnected()
}

func (t *MemoryTransport) GetInfo(ctx context.Context) map[string]any {
	return map[string]any{"transport": "memory", "connected": t.IsConnected()}
}

func (t *MemoryTransport) GetEndpoint() string { return "memory://local" }

func (t *MemoryTransport) SendAsync(ctx context.Context, cmd command.ParsedCommand) error {
	if !t.IsConnected() {
		return errNotConnected
	}
	go func() {
		r := t.dispatcher.Dispatch(ctx, cmd)
		msg := result.DataMessage(cmd.Command, r)
		t.Push(msg)
	}()
	return nil
}

// Push injects a message as though it arrived from a remote peer — the
// test-facing hook that stands in for a socket/HTTP server's push.
func (t *MemoryTransport) Push(msg result.Message) {
	select {
	case t.pushed <- msg:
	default:
	}
}

func (t *MemoryTransport) Receive(timeout time.Duration) (*result.Message, error) {
	if timeout < 0 {
		msg := <-t.pushed
		return &msg, nil
	}
	select {
	case msg := <-t.pushed:
		return &msg, nil
	case <-time.After(timeout):
		return nil, nil
	}
}

func (t *MemoryTransport) OnMessage(cb func(result.Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = cb
}

func (t *MemoryTransport) DispatchMessage(msg result.Message) {
	t.mu.Lock()
	cb := t.onMessage
	t.mu.Unlock()
	if cb != nil {
		cb(msg)
	}
}

func (t *MemoryTransport) StartStreaming(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streaming = true
	return nil
}

func (t *MemoryTransport) StopStreaming(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.streaming = false
	return nil
}

func (t *MemoryTransport) IsStreaming() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.streaming
}

func (t *MemoryTransport) SupportsStreaming() bool { return true }

var _ StreamingTransport = (*MemoryTransport)(nil)
