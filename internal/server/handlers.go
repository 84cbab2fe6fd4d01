package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/filter"
	"github.com/shellbridge/shellbridge/internal/registry"
	"github.com/shellbridge/shellbridge/internal/result"
)

// statusHandler reports server-side liveness and connection statistics,
// the server-side analogue of the shell's client-only "status" built-in.
type statusHandler struct{ server *Server }

func (h *statusHandler) GetCommand() string     { return "status" }
func (h *statusHandler) GetDescription() string { return "Report server status and connection counts" }
func (h *statusHandler) GetUsage() string       { return "status" }
func (h *statusHandler) Handle(ctx registry.Context, cmd command.ParsedCommand) result.CommandResult {
	return result.Ok(h.server.Info())
}

// echoHandler joins its arguments back as data and, as a side effect,
// publishes the same payload to the "echo" topic — a minimal illustration
// of a command that is also a push source, for exercising subscribe.
type echoHandler struct{ server *Server }

func (h *echoHandler) GetCommand() string     { return "echo" }
func (h *echoHandler) GetDescription() string { return "Echo arguments back, publishing to topic 'echo'" }
func (h *echoHandler) GetUsage() string       { return "echo [words...]" }
func (h *echoHandler) Handle(ctx registry.Context, cmd command.ParsedCommand) result.CommandResult {
	text := strings.Join(cmd.Arguments, " ")
	h.server.hub.Publish("echo", "echo", text)
	return result.Ok(text)
}

// sleepHandler blocks for a duration given as its first argument
// (seconds, default 1) — a minimal illustration of a long-running
// handler, useful for exercising client-side timeouts against the
// reference server.
type sleepHandler struct{}

func (h *sleepHandler) GetCommand() string     { return "sleep" }
func (h *sleepHandler) GetDescription() string { return "Sleep for N seconds (default 1)" }
func (h *sleepHandler) GetUsage() string       { return "sleep [seconds]" }
func (h *sleepHandler) Handle(ctx registry.Context, cmd command.ParsedCommand) result.CommandResult {
	secs := 1.0
	if len(cmd.Arguments) > 0 {
		if parsed, ok := parseSeconds(cmd.Arguments[0]); ok {
			secs = parsed
		}
	}
	time.Sleep(time.Duration(secs * float64(time.Second)))
	return result.OkWithMessage(nil, "slept")
}

func parseSeconds(s string) (float64, bool) {
	var f float64
	n, err := fmt.Sscan(s, &f)
	return f, err == nil && n == 1
}

// subscribeHandler registers the calling connection's interest in a
// topic, optionally narrowed by a WHERE clause: "subscribe <topic> [WHERE
// <condition>]".
type subscribeHandler struct{ server *Server }

func (h *subscribeHandler) GetCommand() string     { return "subscribe" }
func (h *subscribeHandler) GetDescription() string { return "Subscribe the connection to a topic" }
func (h *subscribeHandler) GetUsage() string       { return "subscribe <topic> [where <condition>]" }
func (h *subscribeHandler) Handle(ctx registry.Context, cmd command.ParsedCommand) result.CommandResult {
	cc, ok := connFromContext(ctx)
	if !ok {
		return result.Fail("subscribe requires a streaming connection")
	}
	if len(cmd.Arguments) == 0 {
		return result.Fail("usage: subscribe <topic> [where <condition>]")
	}
	topic := cmd.Arguments[0]

	var rule *filter.Rule
	if rest := strings.TrimSpace(strings.Join(cmd.Arguments[1:], " ")); rest != "" {
		if strings.HasPrefix(strings.ToLower(rest), "where") {
			rest = strings.TrimSpace(rest[len("where"):])
		}
		cond, err := filter.NewFilterParser().Parse(rest)
		if err != nil {
			return result.Fail("invalid filter: " + err.Error())
		}
		rule = &filter.Rule{Topic: topic, Condition: cond}
	}

	id := h.server.hub.Subscribe(topic, rule, cc.push)
	cc.addSub(topic, id)
	return result.OkWithMessage(nil, "subscribed to "+topic)
}

// unsubscribeHandler removes the calling connection's interest in a
// topic previously registered with subscribeHandler.
type unsubscribeHandler struct{ server *Server }

func (h *unsubscribeHandler) GetCommand() string     { return "unsubscribe" }
func (h *unsubscribeHandler) GetDescription() string { return "Unsubscribe the connection from a topic" }
func (h *unsubscribeHandler) GetUsage() string       { return "unsubscribe <topic>" }
func (h *unsubscribeHandler) Handle(ctx registry.Context, cmd command.ParsedCommand) result.CommandResult {
	cc, ok := connFromContext(ctx)
	if !ok {
		return result.Fail("unsubscribe requires a streaming connection")
	}
	if len(cmd.Arguments) == 0 {
		return result.Fail("usage: unsubscribe <topic>")
	}
	topic := cmd.Arguments[0]
	id, ok := cc.removeSub(topic)
	if !ok {
		return result.Fail("not subscribed to " + topic)
	}
	h.server.hub.Unsubscribe(topic, id)
	return result.OkWithMessage(nil, "unsubscribed from "+topic)
}

func connFromContext(ctx registry.Context) (*connContext, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Get("conn")
	if !ok {
		return nil, false
	}
	cc, ok := v.(*connContext)
	return cc, ok
}
