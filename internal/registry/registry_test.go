package registry

import (
	"context"
	"testing"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/result"
)

type echoHandler struct{ name string }

func (h echoHandler) GetCommand() string     { return h.name }
func (h echoHandler) GetDescription() string { return "echoes its arguments" }
func (h echoHandler) GetUsage() string       { return h.name + " [args...]" }
func (h echoHandler) Handle(ctx Context, cmd command.ParsedCommand) result.CommandResult {
	return result.Ok(cmd.Arguments)
}

func TestRegistry_ExactMatch(t *testing.T) {
	r := New(nil)
	r.Register(echoHandler{name: "echo"})

	out := r.Execute(command.ParsedCommand{Command: "echo", Arguments: []string{"hi"}})
	if !out.Success {
		t.Fatalf("Execute() = %+v", out)
	}
}

// TestRegistry_UnknownCommand exercises property P9: dispatch falls back
// then reports unknown with the available-commands metadata.
func TestRegistry_UnknownCommand(t *testing.T) {
	r := New(nil)
	r.Register(echoHandler{name: "echo"})

	out := r.Execute(command.ParsedCommand{Command: "nope"})
	if out.Success {
		t.Fatal("expected failure for unknown command")
	}
	if out.Metadata == nil {
		t.Fatal("expected available-commands metadata")
	}
	avail, ok := out.Metadata["available"].([]string)
	if !ok || len(avail) != 1 || avail[0] != "echo" {
		t.Errorf("available = %v", out.Metadata["available"])
	}
}

func TestRegistry_FallbackHandler(t *testing.T) {
	r := New(nil)
	r.SetFallbackHandler(echoHandler{name: FallbackCommand})

	out := r.Execute(command.ParsedCommand{Command: "whatever", Arguments: []string{"a", "b"}})
	if !out.Success {
		t.Fatalf("expected fallback to handle, got %+v", out)
	}
}

func TestRegistry_RemoveAndClear(t *testing.T) {
	r := New(nil)
	r.Register(echoHandler{name: "a"})
	r.Register(echoHandler{name: "b"})
	if r.Count() != 2 {
		t.Fatalf("Count() = %d", r.Count())
	}
	r.Remove("a")
	if r.Has("a") {
		t.Fatal("expected a removed")
	}
	r.Clear()
	if r.Count() != 0 {
		t.Fatalf("Count() after Clear() = %d", r.Count())
	}
}

type panicHandler struct{}

func (panicHandler) GetCommand() string     { return "boom" }
func (panicHandler) GetDescription() string { return "" }
func (panicHandler) GetUsage() string       { return "boom" }
func (panicHandler) Handle(ctx Context, cmd command.ParsedCommand) result.CommandResult {
	panic("handler exploded")
}

func TestRegistry_HandlerPanicBecomesFailure(t *testing.T) {
	r := New(nil)
	r.Register(panicHandler{})

	out := r.Execute(command.ParsedCommand{Command: "boom"})
	if out.Success {
		t.Fatal("expected panic to be converted to failure")
	}
}

func TestRegistry_DispatchSatisfiesTransportDispatcher(t *testing.T) {
	r := New(nil)
	r.Register(echoHandler{name: "echo"})
	out := r.Dispatch(context.Background(), command.ParsedCommand{Command: "echo"})
	if !out.Success {
		t.Fatalf("Dispatch() = %+v", out)
	}
}
