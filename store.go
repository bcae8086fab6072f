package scout

import "context"

// SessionStore abstracts session and message persistence. Each write is an
// independent, immediately committed statement; the agent loop relies on
// that, not on transactions spanning an iteration.
type SessionStore interface {
	// --- Sessions ---
	CreateSession(ctx context.Context) (SessionSummary, error)
	ListSessions(ctx context.Context) ([]SessionSummary, error)
	// GetSession loads a session with all of its messages, or nil if absent.
	GetSession(ctx context.Context, sessionID string) (*SessionDetail, error)
	// DeleteSession removes a session and its messages, reporting whether
	// the session existed.
	DeleteSession(ctx context.Context, sessionID string) (bool, error)
	// UpdateSessionTitle renames a session, or returns nil if absent.
	UpdateSessionTitle(ctx context.Context, sessionID, title string) (*SessionSummary, error)
	SessionExists(ctx context.Context, sessionID string) (bool, error)
	// AutoTitleIfNeeded sets the title from the first user message when the
	// session is still untitled.
	AutoTitleIfNeeded(ctx context.Context, sessionID, content string) error

	// --- Messages ---
	// AddMessage appends a message and bumps the session's updated_at.
	// toolCalls and toolCallID may be nil/empty depending on role.
	AddMessage(ctx context.Context, sessionID, role, content string, toolCalls []ToolCall, toolCallID string) error
	// GetMessages returns the conversation in insertion order, shaped for
	// the next provider call.
	GetMessages(ctx context.Context, sessionID string) ([]ChatMessage, error)
	// GetMessageEvents returns the conversation with timestamps, for
	// history replay on stream connect.
	GetMessageEvents(ctx context.Context, sessionID string) ([]MessageEvent, error)

	// --- Lifecycle ---
	Init(ctx context.Context) error
	Close() error
}
