// Package shell implements the synchronous request/response REPL and its
// concurrent streaming variant: the loop that ties together parsing,
// aliases, history, session state, transport dispatch, and output
// formatting.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/format"
	"github.com/shellbridge/shellbridge/internal/history"
	"github.com/shellbridge/shellbridge/internal/result"
	"github.com/shellbridge/shellbridge/internal/shellstate"
	"github.com/shellbridge/shellbridge/internal/transport"
)

// ContinuationPrompt is printed while the multi-line buffer is open.
const ContinuationPrompt = "...> "

// Shell is the synchronous request/response REPL. It owns its transport,
// history, aliases, and session state, and is not safe for concurrent
// use by design — see StreamingShell for the concurrent variant.
type Shell struct {
	Transport transport.Transport
	Prompt    string
	Aliases   *command.AliasManager
	History   *history.Manager
	State     *shellstate.State
	Builtins  *BuiltinSet

	parser     *command.Parser
	in         *bufio.Scanner
	out        io.Writer
	running    atomic.Bool
	lastFailed atomic.Bool
}

// New builds a Shell. historyFile and sessionFile may be empty to disable
// persistence.
func New(t transport.Transport, prompt string, aliases *command.AliasManager, historyFile, sessionFile string) *Shell {
	s := &Shell{
		Transport: t,
		Prompt:    prompt,
		Aliases:   aliases,
		History:   history.NewManager(historyFile, history.DefaultCapacity),
		State:     shellstate.New(sessionFile, ""),
		parser:    command.NewParser(),
		in:        bufio.NewScanner(os.Stdin),
		out:       os.Stdout,
	}
	s.Builtins = DefaultBuiltins()
	return s
}

// SetIO overrides stdin/stdout, used by tests to drive the shell without
// touching the real terminal.
func (s *Shell) SetIO(in io.Reader, out io.Writer) {
	s.in = bufio.NewScanner(in)
	s.in.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	s.out = out
}

// Run loads persisted state/history and drives the read-eval-print loop
// until stdin reaches end-of-stream, the user issues exit/quit, or Stop
// is called. It always returns through the shutdown path. The return
// value is the process exit code: 0 unless the last command executed
// failed or was attempted against a disconnected transport (spec §6.2).
func (s *Shell) Run(ctx context.Context) int {
	_ = s.State.LoadSession()
	_ = s.History.Load()
	s.running.Store(true)
	defer s.shutdown()

	for s.running.Load() {
		fmt.Fprint(s.out, s.currentPrompt())
		if !s.in.Scan() {
			return s.exitCode() // end-of-stream
		}
		line := s.in.Text()
		completed, ok := s.State.ProcessInput(line)
		if !ok {
			continue
		}
		if s.ExecuteLine(ctx, completed) == exitRequested {
			return s.exitCode()
		}
	}
	return s.exitCode()
}

// exitCode reports the process exit status implied by the last command
// executed: 1 if it failed or found the transport disconnected, 0
// otherwise.
func (s *Shell) exitCode() int {
	if s.lastFailed.Load() {
		return 1
	}
	return 0
}

type loopSignal int

const (
	continueLoop loopSignal = iota
	exitRequested
)

// ExecuteLine runs the full pipeline on a single already-assembled
// command line: history, alias expansion, parse, builtin-or-transport
// dispatch, and rendering. This is the entry point used directly by
// tests, bypassing stdin and multi-line buffering.
func (s *Shell) ExecuteLine(ctx context.Context, line string) loopSignal {
	s.History.Add(line)
	s.State.RecordCommand()

	expanded := s.Aliases.Expand(line)
	cmd := s.parser.Parse(expanded)

	if cmd.Command == "" {
		return continueLoop
	}

	if b, ok := s.Builtins.Lookup(cmd.Command); ok {
		sig, res := b(s, ctx, cmd)
		s.lastFailed.Store(!res.Success)
		s.render(cmd, res)
		return sig
	}

	if !s.Transport.IsConnected() {
		fmt.Fprintln(s.out, "Not connected")
		s.lastFailed.Store(true)
		return continueLoop
	}

	res := s.safeSend(ctx, cmd)
	s.lastFailed.Store(!res.Success)
	s.render(cmd, res)
	return continueLoop
}

// safeSend calls Transport.Send, recovering from any panic a faulty
// transport implementation raises so a transport exception can never
// terminate the shell (spec §4.9 step 10).
func (s *Shell) safeSend(ctx context.Context, cmd command.ParsedCommand) (res result.CommandResult) {
	defer func() {
		if p := recover(); p != nil {
			res = result.Fail(fmt.Sprintf("%v", p))
		}
	}()
	return s.Transport.Send(ctx, cmd)
}

// render picks the output format — explicit --format, then \G, then the
// session default — and writes it.
func (s *Shell) render(cmd command.ParsedCommand, res result.CommandResult) {
	f := s.resolveFormat(cmd)
	fmt.Fprint(s.out, format.Render(res, f))
}

func (s *Shell) resolveFormat(cmd command.ParsedCommand) format.OutputFormat {
	if name, ok := cmd.StringOption("format"); ok {
		return format.Parse(name)
	}
	if cmd.HasVerticalTerminator {
		return format.Vertical
	}
	if def, ok := s.State.Get("default_format"); ok {
		return format.Parse(def)
	}
	return format.Table
}

func (s *Shell) currentPrompt() string {
	if s.State.InMultiLine() {
		return ContinuationPrompt
	}
	if s.Prompt != "" {
		return s.Prompt
	}
	p, _ := s.State.Get("prompt")
	return p
}

// Stop flips the running flag; the loop exits at its next iteration.
func (s *Shell) Stop() {
	s.running.Store(false)
}

func (s *Shell) shutdown() {
	_ = s.Transport.Disconnect()
	_ = s.State.SaveSession()
	_ = s.History.Save()
}
