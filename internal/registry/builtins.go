package registry

import (
	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/result"
)

// PingHandler answers liveness checks.
type PingHandler struct{}

func (PingHandler) GetCommand() string     { return "ping" }
func (PingHandler) GetDescription() string { return "Check server liveness" }
func (PingHandler) GetUsage() string       { return "ping" }
func (PingHandler) Handle(ctx Context, cmd command.ParsedCommand) result.CommandResult {
	return result.Ok("pong")
}

// ConfigHandler surfaces the server's configuration map, as exposed
// through the Context.
type ConfigHandler struct{}

func (ConfigHandler) GetCommand() string     { return "config" }
func (ConfigHandler) GetDescription() string { return "Show server configuration" }
func (ConfigHandler) GetUsage() string       { return "config [key]" }
func (ConfigHandler) Handle(ctx Context, cmd command.ParsedCommand) result.CommandResult {
	if ctx == nil {
		return result.Fail("no configuration context available")
	}
	cfg := ctx.GetConfig()
	if len(cmd.Arguments) == 0 {
		return result.Ok(cfg)
	}
	key := cmd.Arguments[0]
	v, ok := cfg[key]
	if !ok {
		return result.Fail("unknown configuration key: " + key)
	}
	return result.Ok(v)
}

// RoutesHandler lists the registry's own registered commands — useful as
// a server-side analogue of the client's `help`.
type RoutesHandler struct {
	registry *CommandRegistry
}

// NewRoutesHandler returns a handler that reports reg's command list.
func NewRoutesHandler(reg *CommandRegistry) *RoutesHandler {
	return &RoutesHandler{registry: reg}
}

func (h *RoutesHandler) GetCommand() string     { return "routes" }
func (h *RoutesHandler) GetDescription() string { return "List registered server commands" }
func (h *RoutesHandler) GetUsage() string       { return "routes" }
func (h *RoutesHandler) Handle(ctx Context, cmd command.ParsedCommand) result.CommandResult {
	return result.Ok(h.registry.GetCommandDescriptions())
}

// ContainerHandler looks up an arbitrary named dependency out of the
// Context's service locator and reports only whether it is present,
// since the container's concrete value is opaque to the wire protocol.
type ContainerHandler struct{}

func (ContainerHandler) GetCommand() string     { return "container" }
func (ContainerHandler) GetDescription() string { return "Inspect service container bindings" }
func (ContainerHandler) GetUsage() string       { return "container <name>" }
func (ContainerHandler) Handle(ctx Context, cmd command.ParsedCommand) result.CommandResult {
	if ctx == nil {
		return result.Fail("no container context available")
	}
	if len(cmd.Arguments) == 0 {
		_ = ctx.GetContainer()
		return result.Ok(map[string]any{"bound": ctx.GetContainer() != nil})
	}
	name := cmd.Arguments[0]
	_, ok := ctx.Get(name)
	return result.Ok(map[string]any{"name": name, "bound": ok})
}

// CommandHandler reports metadata about another registered command,
// modeling the "command" introspection built-in.
type CommandHandler struct {
	registry *CommandRegistry
}

// NewCommandHandler returns a handler that describes entries in reg.
func NewCommandHandler(reg *CommandRegistry) *CommandHandler {
	return &CommandHandler{registry: reg}
}

func (h *CommandHandler) GetCommand() string     { return "command" }
func (h *CommandHandler) GetDescription() string { return "Describe a registered command" }
func (h *CommandHandler) GetUsage() string       { return "command <name>" }
func (h *CommandHandler) Handle(ctx Context, cmd command.ParsedCommand) result.CommandResult {
	if len(cmd.Arguments) == 0 {
		return result.Fail("usage: command <name>")
	}
	name := cmd.Arguments[0]
	target, ok := h.registry.Get(name)
	if !ok {
		return result.Fail("unknown command: " + name)
	}
	return result.Ok(map[string]any{
		"command":     target.GetCommand(),
		"description": target.GetDescription(),
		"usage":       target.GetUsage(),
	})
}
