// Package transport defines the request/response and streaming transport
// contracts used by the shell, plus concrete implementations over a Unix
// domain socket, HTTP, an in-process dispatcher, and WebSocket.
package transport

import (
	"context"
	"time"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/result"
)

// Transport is the synchronous request/response contract every shell
// speaks to a backend. Implementations never let an I/O failure escape
// Send as an error return from outside their own package boundary — it is
// converted to a failure CommandResult, matching spec §4.6/§7.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
	Send(ctx context.Context, cmd command.ParsedCommand) result.CommandResult
	Ping(ctx context.Context) bool
	GetInfo(ctx context.Context) map[string]any
	GetEndpoint() string
}

// StreamingTransport extends Transport with a fire-and-forget send, a
// polling receive, and subscribe/unsubscribe framing.
type StreamingTransport interface {
	Transport

	// SendAsync writes a request without waiting for or consuming its
	// response. Unlike Send, a fatal write failure is returned as an
	// error rather than folded into a CommandResult, since there is no
	// response slot to carry it.
	SendAsync(ctx context.Context, cmd command.ParsedCommand) error

	// Receive reads one framed Message, blocking up to timeout. A
	// negative timeout waits indefinitely. Returns (nil, nil) on a
	// timeout with nothing available.
	Receive(timeout time.Duration) (*result.Message, error)

	// OnMessage registers a single callback invoked by DispatchMessage
	// for each message read via Receive. Registering again replaces the
	// previous callback.
	OnMessage(cb func(result.Message))

	// DispatchMessage invokes the registered OnMessage callback, if any.
	DispatchMessage(msg result.Message)

	StartStreaming(ctx context.Context) error
	StopStreaming(ctx context.Context) error
	IsStreaming() bool
	SupportsStreaming() bool
}

// Dispatcher is the minimal surface a command registry exposes to the
// in-memory transport: execute one parsed command and return its result.
// Defined here (rather than imported from internal/registry) to keep
// transport free of a dependency on the registry package; registry's
// CommandRegistry satisfies this directly.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd command.ParsedCommand) result.CommandResult
}
