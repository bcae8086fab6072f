package scout

// EventType identifies the kind of streaming event.
type EventType string

const (
	// EventMessage replays a stored message when a stream connects.
	EventMessage EventType = "message"
	// EventReady signals that history replay is complete and live
	// processing begins.
	EventReady EventType = "ready"
	// EventTextDelta carries an incremental text chunk from the model.
	EventTextDelta EventType = "text-delta"
	// EventToolCall signals the model requested a tool invocation.
	EventToolCall EventType = "tool-call"
	// EventToolConfirm asks the client to approve a sensitive tool call.
	EventToolConfirm EventType = "tool-confirm"
	// EventToolResult carries the outcome of a completed tool call.
	EventToolResult EventType = "tool-result"
	// EventDone ends a turn successfully.
	EventDone EventType = "done"
	// EventError ends a turn with a failure.
	EventError EventType = "error"
)

// Event is a typed event emitted on a session's stream. Data holds the
// event-specific payload struct and is what gets serialized on the wire.
type Event struct {
	Type EventType
	Data any
}

// TextDeltaEvent is the payload of EventTextDelta.
type TextDeltaEvent struct {
	Content string `json:"content"`
}

// ToolCallEvent is the payload of EventToolCall and EventToolConfirm.
type ToolCallEvent struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolResultEvent is the payload of EventToolResult.
type ToolResultEvent struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// DoneEvent is the payload of EventDone.
type DoneEvent struct {
	Model string `json:"model"`
}

// ErrorEvent is the payload of EventError.
type ErrorEvent struct {
	Message string `json:"message"`
}

// ReadyEvent is the payload of EventReady.
type ReadyEvent struct{}
