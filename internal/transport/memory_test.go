package transport

import (
	"context"
	"testing"
	"time"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/result"
)

type fakeDispatcher struct {
	fn func(cmd command.ParsedCommand) result.CommandResult
}

func (f fakeDispatcher) Dispatch(ctx context.Context, cmd command.ParsedCommand) result.CommandResult {
	return f.fn(cmd)
}

func TestMemoryTransport_SendRoundTrip(t *testing.T) {
	d := fakeDispatcher{fn: func(cmd command.ParsedCommand) result.CommandResult {
		return result.Ok(cmd.Command)
	}}
	tr := NewMemoryTransport(d)
	ctx := context.Background()

	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !tr.IsConnected() {
		t.Fatal("expected connected")
	}

	r := tr.Send(ctx, command.ParsedCommand{Command: "ping"})
	if !r.Success || r.Data != "ping" {
		t.Errorf("Send() = %+v", r)
	}
}

func TestMemoryTransport_SendWhileDisconnected(t *testing.T) {
	tr := NewMemoryTransport(fakeDispatcher{fn: func(command.ParsedCommand) result.CommandResult {
		return result.Ok(nil)
	}})
	r := tr.Send(context.Background(), command.ParsedCommand{Command: "ping"})
	if r.Success || r.Error == nil || *r.Error != "Not connected" {
		t.Errorf("Send() while disconnected = %+v", r)
	}
}

func TestMemoryTransport_SendAsyncAndReceive(t *testing.T) {
	d := fakeDispatcher{fn: func(cmd command.ParsedCommand) result.CommandResult {
		return result.Ok("done:" + cmd.Command)
	}}
	tr := NewMemoryTransport(d)
	ctx := context.Background()
	_ = tr.Connect(ctx)

	if err := tr.SendAsync(ctx, command.ParsedCommand{Command: "work"}); err != nil {
		t.Fatalf("SendAsync() error = %v", err)
	}

	msg, err := tr.Receive(2 * time.Second)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if msg == nil {
		t.Fatal("expected a message")
	}
	if msg.Source != "work" {
		t.Errorf("message source = %q", msg.Source)
	}
}

func TestMemoryTransport_ReceiveTimesOutWithNoMessage(t *testing.T) {
	tr := NewMemoryTransport(fakeDispatcher{fn: func(command.ParsedCommand) result.CommandResult {
		return result.Ok(nil)
	}})
	_ = tr.Connect(context.Background())

	msg, err := tr.Receive(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if msg != nil {
		t.Errorf("expected nil message on timeout, got %+v", msg)
	}
}

func TestMemoryTransport_DisconnectIsIdempotent(t *testing.T) {
	tr := NewMemoryTransport(fakeDispatcher{fn: func(command.ParsedCommand) result.CommandResult {
		return result.Ok(nil)
	}})
	_ = tr.Connect(context.Background())
	if err := tr.Disconnect(); err != nil {
		t.Fatalf("first Disconnect() error = %v", err)
	}
	if err := tr.Disconnect(); err != nil {
		t.Fatalf("second Disconnect() error = %v", err)
	}
	if tr.IsConnected() {
		t.Fatal("expected disconnected")
	}
}
