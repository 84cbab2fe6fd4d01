// Package registry implements server-side command dispatch: a name →
// Handler table with a fallback, plus a small set of illustrative
// built-in handlers a reference server can register.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/result"
)

// FallbackCommand is the sentinel name a Handler returns from GetCommand
// to register itself as the registry's fallback.
const FallbackCommand = "*"

// Context is the service-locator surface handed to every Handler. It
// decouples handlers from how the server wires its dependencies.
type Context interface {
	Get(key string) (any, bool)
	Has(key string) bool
	GetConfig() map[string]any
	GetContainer() any
}

// Handler implements one named server-side command.
type Handler interface {
	GetCommand() string
	Handle(ctx Context, cmd command.ParsedCommand) result.CommandResult
	GetDescription() string
	GetUsage() string
}

// CommandRegistry routes a ParsedCommand's name to its Handler, with an
// optional fallback for anything unmatched.
type CommandRegistry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	fallback Handler
	ctx      Context
}

// New returns an empty registry. ctx is the Context passed to every
// handler's Handle call; it may be nil if no handler needs one.
func New(ctx Context) *CommandRegistry {
	return &CommandRegistry{
		handlers: make(map[string]Handler),
		ctx:      ctx,
	}
}

// Register adds or replaces the handler for its own GetCommand() name.
func (r *CommandRegistry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.GetCommand()] = h
}

// RegisterMany registers each handler in order.
func (r *CommandRegistry) RegisterMany(hs ...Handler) {
	for _, h := range hs {
		r.Register(h)
	}
}

// Has reports whether name has a registered handler (the fallback does
// not count).
func (r *CommandRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Get returns the handler registered for name, if any.
func (r *CommandRegistry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// SetFallbackHandler installs h as the handler used when no exact match
// is found. Pass nil to remove it.
func (r *CommandRegistry) SetFallbackHandler(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = h
}

// Remove deletes the handler registered under name.
func (r *CommandRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, name)
}

// Clear removes every registered handler and the fallback.
func (r *CommandRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[string]Handler)
	r.fallback = nil
}

// Count returns the number of explicitly registered handlers (excluding
// the fallback).
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// GetCommandList returns registered command names, sorted.
func (r *CommandRegistry) GetCommandList() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetCommandDescriptions returns a name → description mapping for every
// registered handler.
func (r *CommandRegistry) GetCommandDescriptions() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.handlers))
	for name, h := range r.handlers {
		out[name] = h.GetDescription()
	}
	return out
}

// Execute dispatches cmd against the registry's own Context (set in New).
// It is the single-context convenience form; servers that need a
// different Context per caller (e.g. one per connection) use
// ExecuteWithContext instead.
func (r *CommandRegistry) Execute(cmd command.ParsedCommand) result.CommandResult {
	return r.ExecuteWithContext(r.ctx, cmd)
}

// ExecuteWithContext dispatches cmd exactly as Execute does, but against
// an explicit Context instead of the registry's own — letting a caller
// (for instance one command-dispatching server connection) supply its own
// service-locator scope per call. An exact name match wins, then the
// fallback, then an "Unknown command" failure listing available commands.
// A handler that panics is recovered and converted to a failure result so
// the server never crashes on a faulty handler (spec's handler-error
// guarantee).
func (r *CommandRegistry) ExecuteWithContext(ctx Context, cmd command.ParsedCommand) (res result.CommandResult) {
	h, fallback := r.resolve(cmd.Command)
	if h == nil {
		return result.FailWithMetadata(
			fmt.Sprintf("Unknown command: '%s'. Type 'help' for available commands.", cmd.Command),
			map[string]any{"available": r.GetCommandList()},
		)
	}

	defer func() {
		if p := recover(); p != nil {
			res = result.Fail(fmt.Sprintf("handler error: %v", p))
		}
	}()

	_ = fallback
	return h.Handle(ctx, cmd)
}

func (r *CommandRegistry) resolve(name string) (h Handler, usedFallback bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if h, ok := r.handlers[name]; ok {
		return h, false
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// Dispatch satisfies transport.Dispatcher so a CommandRegistry can back an
// in-memory transport directly.
func (r *CommandRegistry) Dispatch(ctx context.Context, cmd command.ParsedCommand) result.CommandResult {
	return r.Execute(cmd)
}
