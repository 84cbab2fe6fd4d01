package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shellbridge/shellbridge/internal/command"
	"github.com/shellbridge/shellbridge/internal/result"
)

// frameType discriminates the small set of request-side frames the wire
// protocol carries.
type frameType string

const (
	frameCommand     frameType = "command"
	framePing        frameType = "ping"
	frameSubscribe   frameType = "subscribe"
	frameUnsubscribe frameType = "unsubscribe"
)

// requestFrame is the JSON shape written for every outbound request.
type requestFrame struct {
	Type      frameType      `json:"type"`
	Command   string         `json:"command,omitempty"`
	Arguments []string       `json:"arguments,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

func commandFrame(cmd command.ParsedCommand) requestFrame {
	args := cmd.Arguments
	if args == nil {
		args = []string{}
	}
	return requestFrame{
		Type:      frameCommand,
		Command:   cmd.Command,
		Arguments: args,
		Options:   cmd.Options,
	}
}

// writeFrame marshals v and writes it followed by a single newline.
func writeFrame(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// readResult reads one line from r and decodes it as a CommandResult. I/O
// and decode failures are folded into a failure result, never returned as
// an error, per the Transport.Send contract.
func readResult(r *bufio.Reader) result.CommandResult {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return result.Fail(fmt.Sprintf("Connection failed: %s", err.Error()))
	}
	var cr result.CommandResult
	if err := json.Unmarshal([]byte(line), &cr); err != nil {
		return result.Fail("Invalid JSON response")
	}
	return cr
}

// pushFrame is the shape of an asynchronous server push, matching §6.1's
// `{"type":"message", ...}` control frame.
type pushFrame struct {
	Type      string         `json:"type"`
	Topic     string         `json:"topic,omitempty"`
	Source    string         `json:"source,omitempty"`
	Payload   any            `json:"payload,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// decodeMessage turns one line of wire JSON into a Message. A line that
// fails to parse becomes a MessageError carrying the offending text
// (protocol error, per spec §7 item 5), never a Go error.
func decodeMessage(line string) result.Message {
	var pf pushFrame
	if err := json.Unmarshal([]byte(line), &pf); err != nil {
		return result.ErrorMessage(fmt.Sprintf("Invalid message format: %s", line))
	}
	ts := time.Now()
	if pf.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, pf.Timestamp); err == nil {
			ts = parsed
		}
	}
	source := pf.Source
	if source == "" {
		source = pf.Topic
	}
	mt := result.MessageData
	switch pf.Type {
	case "error":
		mt = result.MessageError
	case "system":
		mt = result.MessageSystem
	}
	msg := result.Message{
		Type:      mt,
		Payload:   pf.Payload,
		Source:    source,
		Timestamp: ts,
		Metadata:  pf.Metadata,
	}
	if pf.Topic != "" {
		msg = msg.WithMetadata(map[string]any{"topic": pf.Topic})
	}
	return msg
}

// Server-side wire helpers. A listening server reads the same
// newline-delimited JSON frames a Transport writes, so these mirror the
// unexported client-side encode/decode pair above rather than introduce a
// second framing.

// RequestKind identifies which of the four client request shapes a server
// just read off the wire.
type RequestKind string

const (
	RequestCommand     RequestKind = RequestKind(frameCommand)
	RequestPing        RequestKind = RequestKind(framePing)
	RequestSubscribe   RequestKind = RequestKind(frameSubscribe)
	RequestUnsubscribe RequestKind = RequestKind(frameUnsubscribe)
)

// ServerRequest is the server-side decoding of requestFrame.
type ServerRequest struct {
	Kind    RequestKind
	Command command.ParsedCommand
}

// ReadRequest reads and decodes one newline-terminated request frame. io.EOF
// is returned unwrapped so callers can detect a clean client disconnect.
func ReadRequest(r *bufio.Reader) (ServerRequest, error) {
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return ServerRequest{}, err
	}
	return DecodeRequestFrame([]byte(line))
}

// DecodeRequestFrame decodes one already-framed JSON request (e.g. a
// single WebSocket message), without the newline-delimited buffering
// ReadRequest does for stream-oriented transports.
func DecodeRequestFrame(data []byte) (ServerRequest, error) {
	var rf requestFrame
	if err := json.Unmarshal(data, &rf); err != nil {
		return ServerRequest{}, fmt.Errorf("invalid request frame: %w", err)
	}
	return ServerRequest{
		Kind: RequestKind(rf.Type),
		Command: command.ParsedCommand{
			Command:   rf.Command,
			Arguments: rf.Arguments,
			Options:   rf.Options,
		},
	}, nil
}

// WriteResult writes res as one newline-terminated JSON frame, the shape
// readResult expects on the client side.
func WriteResult(w io.Writer, res result.CommandResult) error {
	return writeFrame(w, res)
}

// WritePush writes a server-initiated push in the pushFrame shape
// decodeMessage expects on the client side.
func WritePush(w io.Writer, topic, source string, payload any, metadata map[string]any) error {
	return writeFrame(w, pushFrame{
		Type:      "message",
		Topic:     topic,
		Source:    source,
		Payload:   payload,
		Timestamp: time.Now().Format(time.RFC3339),
		Metadata:  metadata,
	})
}
