package scout

import "context"

// Finish reasons reported by a provider at the end of a turn.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
)

// Fragment is one incremental unit of a streamed provider response. Any
// combination of fields may be set; zero values mean "not present in this
// fragment".
type Fragment struct {
	// TextDelta is an incremental chunk of assistant text.
	TextDelta string
	// ToolCallDeltas are incremental tool-call updates, keyed by Index.
	ToolCallDeltas []ToolCallDelta
	// FinishReason is set on the fragment that ends the turn
	// (FinishStop, FinishToolCalls, or a provider-specific value).
	FinishReason string
	// Model is the resolved model name, when the provider reports it.
	Model string
}

// ToolCallDelta is a partial update to one tool call within a turn.
// Index identifies the call; the id may arrive after the first delta, so
// accumulation is positional. ArgumentsDelta fragments concatenate; ID and
// Name are last-write-wins.
type ToolCallDelta struct {
	Index          int
	ID             string
	Name           string
	ArgumentsDelta string
}

// FragmentStream is a finite sequence of fragments from one provider call.
// Recv returns io.EOF when the stream is exhausted. Close releases the
// underlying connection and is safe to call more than once.
type FragmentStream interface {
	Recv() (Fragment, error)
	Close() error
}

// StreamProvider abstracts the text-generation backend. One call yields one
// fragment stream; the agent loop consumes it to completion or abandons it
// early on client disconnect.
type StreamProvider interface {
	StreamChat(ctx context.Context, req ChatRequest) (FragmentStream, error)
}
