// Package result defines the two wire-level value types shared across the
// parser, transports, registry, and shell: the synchronous CommandResult
// and the asynchronous, typed Message.
package result

import "time"

// CommandResult is what every handler returns and every transport's Send
// carries back. Exactly one of Data or Error is meaningful: a failed
// result always sets Error and leaves Data nil, and vice versa. Message is
// an optional human-readable note attached to either outcome (for example
// a warning alongside a successful result).
type CommandResult struct {
	Success  bool           `json:"success"`
	Data     any            `json:"data,omitempty"`
	Error    *string        `json:"error,omitempty"`
	Message  *string        `json:"message,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Ok builds a successful result carrying data.
func Ok(data any) CommandResult {
	return CommandResult{Success: true, Data: data}
}

// OkWithMessage builds a successful result carrying data and a note.
func OkWithMessage(data any, message string) CommandResult {
	return CommandResult{Success: true, Data: data, Message: &message}
}

// Fail builds a failed result.
func Fail(errMsg string) CommandResult {
	return CommandResult{Success: false, Error: &errMsg}
}

// FailWithMetadata builds a failed result annotated with structured
// detail, e.g. the list of available commands on an unknown-command
// dispatch failure.
func FailWithMetadata(errMsg string, metadata map[string]any) CommandResult {
	return CommandResult{Success: false, Error: &errMsg, Metadata: metadata}
}

// WithMetadata returns a copy of r with metadata merged in.
func (r CommandResult) WithMetadata(metadata map[string]any) CommandResult {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any, len(metadata))
	}
	for k, v := range metadata {
		r.Metadata[k] = v
	}
	return r
}

// MessageType distinguishes the kind of payload carried by a streamed
// Message.
type MessageType string

const (
	// MessageData carries a regular data payload pushed from a topic.
	MessageData MessageType = "data"
	// MessageSystem carries a system notice (connect/disconnect, pause/resume ack).
	MessageSystem MessageType = "system"
	// MessageError carries an out-of-band error unrelated to a specific request.
	MessageError MessageType = "error"
)

// Message is the unit of traffic on a StreamingTransport: server-pushed
// events as well as client acknowledgements all travel as a Message.
type Message struct {
	Type      MessageType    `json:"type"`
	Payload   any            `json:"payload,omitempty"`
	Source    string         `json:"source,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// DataMessage builds a MessageData message from source carrying payload.
func DataMessage(source string, payload any) Message {
	return Message{
		Type:      MessageData,
		Payload:   payload,
		Source:    source,
		Timestamp: time.Now(),
	}
}

// SystemMessage builds a MessageSystem message describing an event.
func SystemMessage(event string) Message {
	return Message{
		Type:      MessageSystem,
		Payload:   event,
		Timestamp: time.Now(),
	}
}

// ErrorMessage builds a MessageError message.
func ErrorMessage(err string) Message {
	return Message{
		Type:      MessageError,
		Payload:   err,
		Timestamp: time.Now(),
	}
}

// WithMetadata returns a copy of m with metadata merged in.
func (m Message) WithMetadata(metadata map[string]any) Message {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any, len(metadata))
	}
	for k, v := range metadata {
		m.Metadata[k] = v
	}
	return m
}
