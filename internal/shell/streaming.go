package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/filter"
	"github.com/shellbridge/shellbridge/internal/format"
	"github.com/shellbridge/shellbridge/internal/history"
	"github.com/shellbridge/shellbridge/internal/result"
	"github.com/shellbridge/shellbridge/internal/shellstate"
	"github.com/shellbridge/shellbridge/internal/transport"
)

// receiveTimeout bounds how long the receive task blocks in
// transport.Receive before re-checking the running flag.
const receiveTimeout = time.Second

// StreamingShell layers an asynchronous broadcast/receive pair of
// cooperative tasks on top of Shell: the input task sends every
// non-builtin command via SendAsync instead of waiting for a response,
// and a receive task drains pushed messages, applying a pause gate, a
// message counter, and an optional filter.
type StreamingShell struct {
	*Shell

	streamTransport transport.StreamingTransport

	paused       atomic.Bool
	messageCount atomic.Int64

	filterMu sync.Mutex
	filter   filter.Matcher

	outMu sync.Mutex

	wg sync.WaitGroup
}

// NewStreaming builds a StreamingShell over a StreamingTransport.
func NewStreaming(t transport.StreamingTransport, prompt string, aliases *command.AliasManager, historyFile, sessionFile string) *StreamingShell {
	base := &Shell{
		Transport: t,
		Prompt:    prompt,
		Aliases:   aliases,
		History:   history.NewManager(historyFile, history.DefaultCapacity),
		State:     shellstate.New(sessionFile, ""),
		parser:    command.NewParser(),
		in:        bufio.NewScanner(os.Stdin),
		out:       os.Stdout,
	}
	ss := &StreamingShell{
		Shell:           base,
		streamTransport: t,
		filter:          filter.NewFilterExpression(),
	}
	base.Builtins = ss.streamingBuiltins()
	return ss
}

// SetIO overrides stdin/stdout as Shell.SetIO does.
func (ss *StreamingShell) SetIO(in io.Reader, out io.Writer) {
	ss.Shell.SetIO(in, out)
}

// Run starts the input and receive tasks and blocks until both exit
// (end-of-stream on stdin, exit/quit, or Stop).
func (ss *StreamingShell) Run(ctx context.Context) int {
	_ = ss.State.LoadSession()
	_ = ss.History.Load()
	ss.running.Store(true)

	ss.wg.Add(1)
	go ss.receiveLoop(ctx)

	code := ss.inputLoop(ctx)

	ss.running.Store(false)
	_ = ss.streamTransport.StopStreaming(ctx)
	ss.wg.Wait()
	ss.shutdown()
	return code
}

// Stop flips the shared running flag observed by both tasks.
func (ss *StreamingShell) Stop() {
	ss.running.Store(false)
}

func (ss *StreamingShell) inputLoop(ctx context.Context) int {
	for ss.running.Load() {
		ss.writeOut(ss.currentPrompt())
		if !ss.in.Scan() {
			ss.running.Store(false)
			return ss.exitCode()
		}
		line := ss.in.Text()
		completed, ok := ss.State.ProcessInput(line)
		if !ok {
			continue
		}
		if ss.executeStreamingLine(ctx, completed) == exitRequested {
			ss.running.Store(false)
			return ss.exitCode()
		}
	}
	return ss.exitCode()
}

// executeStreamingLine mirrors Shell.ExecuteLine, but dispatches
// non-builtin commands via SendAsync and acknowledges them inline
// instead of blocking for a response.
func (ss *StreamingShell) executeStreamingLine(ctx context.Context, line string) loopSignal {
	ss.History.Add(line)
	ss.State.RecordCommand()

	expanded := ss.Aliases.Expand(line)
	cmd := ss.parser.Parse(expanded)
	if cmd.Command == "" {
		return continueLoop
	}

	if b, ok := ss.Builtins.Lookup(cmd.Command); ok {
		sig, res := b(ss.Shell, ctx, cmd)
		ss.lastFailed.Store(!res.Success)
		ss.writeOut(format.Render(res, ss.resolveFormat(cmd)))
		return sig
	}

	if !ss.streamTransport.IsConnected() {
		ss.writeOut("Not connected\n")
		ss.lastFailed.Store(true)
		return continueLoop
	}

	if err := ss.streamTransport.SendAsync(ctx, cmd); err != nil {
		ss.writeOut(fmt.Sprintf("ERROR: %s\n", err.Error()))
		ss.lastFailed.Store(true)
		return continueLoop
	}
	ss.lastFailed.Store(false)
	ss.writeOut(fmt.Sprintf("Command sent: %s\n", cmd.Command))
	return continueLoop
}

func (ss *StreamingShell) receiveLoop(ctx context.Context) {
	defer ss.wg.Done()
	for ss.running.Load() {
		msg, err := ss.streamTransport.Receive(receiveTimeout)
		if err != nil {
			return // transport disconnected; receive task exits cleanly
		}
		if msg == nil {
			continue // timeout: re-check running
		}
		if ss.paused.Load() {
			continue // dropped, no buffering
		}
		ss.messageCount.Add(1)

		f := ss.currentFilter()
		if f != nil && !f.Matches(*msg) {
			continue
		}
		ss.writeOut(renderMessage(*msg))
	}
}

func (ss *StreamingShell) currentFilter() filter.Matcher {
	ss.filterMu.Lock()
	defer ss.filterMu.Unlock()
	if ss.filter.IsEmpty() {
		return nil
	}
	return ss.filter
}

// writeOut serializes output so a message from the receive task never
// tears against a line from the input task.
func (ss *StreamingShell) writeOut(s string) {
	ss.outMu.Lock()
	defer ss.outMu.Unlock()
	fmt.Fprint(ss.out, s)
	if !strings.HasSuffix(s, "\n") {
		fmt.Fprintln(ss.out)
	}
}

// renderMessage is the message formatter, distinct from the
// CommandResult formatter: a compact one-line-per-message rendering
// ("[time] source: payload") suitable for an interleaved stream.
func renderMessage(msg result.Message) string {
	return fmt.Sprintf("[%s] %s: %v\n", msg.Timestamp.Format("15:04:05"), msg.Source, msg.Payload)
}

// streamingBuiltins extends the base built-in set with the
// streaming-only commands, each closing over ss so they can reach its
// pause flag, message counter, and filter.
func (ss *StreamingShell) streamingBuiltins() *BuiltinSet {
	b := DefaultBuiltins()

	b.handlers["pause"] = func(s *Shell, ctx context.Context, cmd command.ParsedCommand) (loopSignal, result.CommandResult) {
		ss.paused.Store(true)
		return continueLoop, result.OkWithMessage(nil, "Streaming paused")
	}

	b.handlers["resume"] = func(s *Shell, ctx context.Context, cmd command.ParsedCommand) (loopSignal, result.CommandResult) {
		ss.paused.Store(false)
		return continueLoop, result.OkWithMessage(nil, "Streaming resumed")
	}

	b.handlers["stats"] = func(s *Shell, ctx context.Context, cmd command.ParsedCommand) (loopSignal, result.CommandResult) {
		ss.filterMu.Lock()
		filterState := ss.filter.String()
		ss.filterMu.Unlock()
		data := map[string]any{
			"messages_received": ss.messageCount.Load(),
			"paused":            ss.paused.Load(),
			"filter":            filterState,
		}
		return continueLoop, result.Ok(data)
	}

	b.handlers["filter"] = func(s *Shell, ctx context.Context, cmd command.ParsedCommand) (loopSignal, result.CommandResult) {
		tail := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cmd.Raw), cmd.Command))
		sub := strings.ToLower(strings.TrimSpace(firstWord(tail)))

		ss.filterMu.Lock()
		defer ss.filterMu.Unlock()

		switch sub {
		case "show", "":
			return continueLoop, result.Ok(ss.filter.String())
		case "clear", "none":
			ss.filter = filter.NewFilterExpression()
			return continueLoop, result.OkWithMessage(nil, "filter cleared")
		default:
			// A tail shaped like "field:glob field:glob ..." (the
			// client-side glob filter's own grammar) is tried first;
			// anything else falls back to the SQL WHERE form.
			if glob, err := filter.ParseGlobFilter(tail); err == nil && !glob.IsEmpty() {
				ss.filter = glob
				return continueLoop, result.OkWithMessage(nil, "filter set")
			}
			next := filter.NewFilterExpression()
			if err := next.Where(tail); err != nil {
				return continueLoop, result.Fail(err.Error())
			}
			ss.filter = next
			return continueLoop, result.OkWithMessage(nil, "filter set")
		}
	}

	b.handlers["subscribe"] = func(s *Shell, ctx context.Context, cmd command.ParsedCommand) (loopSignal, result.CommandResult) {
		_ = ss.streamTransport.SendAsync(ctx, cmd)
		return continueLoop, result.OkWithMessage(nil, "subscribe requested")
	}

	b.handlers["unsubscribe"] = func(s *Shell, ctx context.Context, cmd command.ParsedCommand) (loopSignal, result.CommandResult) {
		_ = ss.streamTransport.SendAsync(ctx, cmd)
		return continueLoop, result.OkWithMessage(nil, "unsubscribe requested")
	}

	return b
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
