package shell

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/result"
)

type builtinFunc func(s *Shell, ctx context.Context, cmd command.ParsedCommand) (loopSignal, result.CommandResult)

// BuiltinSet is the client-side command table consulted before a
// command is sent over the transport. Matching is case-insensitive on
// the head token.
type BuiltinSet struct {
	handlers map[string]builtinFunc
}

// Lookup returns the handler for name, if it is a registered built-in.
func (b *BuiltinSet) Lookup(name string) (builtinFunc, bool) {
	h, ok := b.handlers[strings.ToLower(name)]
	return h, ok
}

// Names lists the registered built-in command names, sorted.
func (b *BuiltinSet) Names() []string {
	names := make([]string, 0, len(b.handlers))
	for n := range b.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultBuiltins returns the minimum built-in set spec §4.7 requires:
// help, exit/quit, status, clear, history, alias, unalias.
func DefaultBuiltins() *BuiltinSet {
	b := &BuiltinSet{handlers: map[string]builtinFunc{}}
	b.handlers["help"] = builtinHelp
	b.handlers["exit"] = builtinExit
	b.handlers["quit"] = builtinExit
	b.handlers["status"] = builtinStatus
	b.handlers["clear"] = builtinClear
	b.handlers["history"] = builtinHistory
	b.handlers["alias"] = builtinAlias
	b.handlers["unalias"] = builtinUnalias
	return b
}

func builtinHelp(s *Shell, ctx context.Context, cmd command.ParsedCommand) (loopSignal, result.CommandResult) {
	names := s.Builtins.Names()
	if len(cmd.Arguments) == 0 {
		return continueLoop, result.Ok(names)
	}
	target := cmd.Arguments[0]
	for _, n := range names {
		if n == strings.ToLower(target) {
			return continueLoop, result.OkWithMessage(n, "built-in command")
		}
	}
	return continueLoop, result.Fail("no help available for: " + target)
}

// builtinExit stops the shell; Run persists session and history on the
// way out regardless of how the loop ends, so exit itself only needs to
// signal the stop.
func builtinExit(s *Shell, ctx context.Context, cmd command.ParsedCommand) (loopSignal, result.CommandResult) {
	s.Stop()
	return exitRequested, result.Ok("bye")
}

func builtinStatus(s *Shell, ctx context.Context, cmd command.ParsedCommand) (loopSignal, result.CommandResult) {
	values, commandsThisRun, elapsed := s.State.Snapshot()
	data := map[string]any{
		"endpoint":          s.Transport.GetEndpoint(),
		"connected":         s.Transport.IsConnected(),
		"commands_this_run": commandsThisRun,
		"elapsed_seconds":   elapsed.Seconds(),
		"session":           values,
	}
	return continueLoop, result.Ok(data)
}

func builtinClear(s *Shell, ctx context.Context, cmd command.ParsedCommand) (loopSignal, result.CommandResult) {
	fmt.Fprint(s.out, "\x1b[2J\x1b[H")
	return continueLoop, result.Ok(nil)
}

func builtinHistory(s *Shell, ctx context.Context, cmd command.ParsedCommand) (loopSignal, result.CommandResult) {
	return continueLoop, result.Ok(s.History.GetHistory())
}

func builtinAlias(s *Shell, ctx context.Context, cmd command.ParsedCommand) (loopSignal, result.CommandResult) {
	if len(cmd.Arguments) == 0 {
		return continueLoop, result.Ok(s.Aliases.All())
	}
	name := cmd.Arguments[0]
	if len(cmd.Arguments) == 1 {
		if v, ok := s.Aliases.Get(name); ok {
			return continueLoop, result.Ok(v)
		}
		return continueLoop, result.Fail("no such alias: " + name)
	}
	value := strings.Join(cmd.Arguments[1:], " ")
	s.Aliases.SetAlias(name, value)
	return continueLoop, result.Ok(nil)
}

func builtinUnalias(s *Shell, ctx context.Context, cmd command.ParsedCommand) (loopSignal, result.CommandResult) {
	if len(cmd.Arguments) == 0 {
		return continueLoop, result.Fail("usage: unalias <name>")
	}
	s.Aliases.RemoveAlias(cmd.Arguments[0])
	return continueLoop, result.Ok(nil)
}
