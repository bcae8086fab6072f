package scout

import (
	"errors"
	"sync"
)

// Send failure modes. The HTTP layer reports them to the submitter with
// distinct messages.
var (
	ErrNoStream  = errors.New("no active stream for session")
	ErrQueueFull = errors.New("message queue is full")
)

// MessagePayload is one inbound user message submitted out-of-band while a
// stream is connected. A nil *MessagePayload on the queue is the sentinel
// that tells the stream handler to close.
type MessagePayload struct {
	Content string
	Model   string
	Token   string
}

// messageQueueCap bounds the inbound message channel. Submissions are
// processed strictly FIFO by a single consumer, so the buffer only has to
// absorb a burst; Send reports failure rather than block when it is full.
const messageQueueCap = 128

// StreamRegistry bridges the out-of-band submit-message and
// submit-confirmation requests into the single long-lived handler that owns
// a session's event stream. It is the only state shared across a session's
// request handlers; every method is safe for concurrent use.
//
// Single consumer per session: registering a stream replaces any previous
// queue, and the second registrant simply wins.
type StreamRegistry struct {
	mu       sync.Mutex
	messages map[string]chan *MessagePayload
	confirms map[string]chan bool
	// pending holds the one tool call id currently awaiting confirmation
	// per session. A resolution is accepted only if its id matches, and
	// acceptance clears the entry in the same critical section.
	pending map[string]string
}

// NewStreamRegistry creates an empty registry.
func NewStreamRegistry() *StreamRegistry {
	return &StreamRegistry{
		messages: make(map[string]chan *MessagePayload),
		confirms: make(map[string]chan bool),
		pending:  make(map[string]string),
	}
}

// Register creates (or replaces) the inbound message queue for a session
// and returns it.
func (r *StreamRegistry) Register(sessionID string) chan *MessagePayload {
	ch := make(chan *MessagePayload, messageQueueCap)
	r.mu.Lock()
	r.messages[sessionID] = ch
	r.mu.Unlock()
	return ch
}

// Unregister removes the message queue for a session. No-op if absent.
func (r *StreamRegistry) Unregister(sessionID string) {
	r.mu.Lock()
	delete(r.messages, sessionID)
	r.mu.Unlock()
}

// Send enqueues a payload (or the nil close sentinel) on the session's
// message queue. Fails without side effect with ErrNoStream when no stream
// is registered and ErrQueueFull when the buffer cannot absorb the payload.
func (r *StreamRegistry) Send(sessionID string, payload *MessagePayload) error {
	r.mu.Lock()
	ch, ok := r.messages[sessionID]
	r.mu.Unlock()
	if !ok {
		return ErrNoStream
	}
	select {
	case ch <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

// RegisterConfirm creates a fresh confirmation queue for a session and
// clears any stale pending id left by a previous stream.
func (r *StreamRegistry) RegisterConfirm(sessionID string) chan bool {
	ch := make(chan bool, 1)
	r.mu.Lock()
	r.confirms[sessionID] = ch
	delete(r.pending, sessionID)
	r.mu.Unlock()
	return ch
}

// UnregisterConfirm removes the confirmation queue and clears the pending
// id. No-op if absent.
func (r *StreamRegistry) UnregisterConfirm(sessionID string) {
	r.mu.Lock()
	delete(r.confirms, sessionID)
	delete(r.pending, sessionID)
	r.mu.Unlock()
}

// SetPendingConfirm records the tool call id currently awaiting resolution,
// overwriting any previous value. The loop blocks on one confirmation at a
// time, so at most one id is ever outstanding.
func (r *StreamRegistry) SetPendingConfirm(sessionID, toolCallID string) {
	r.mu.Lock()
	r.pending[sessionID] = toolCallID
	r.mu.Unlock()
}

// ClearPendingConfirm drops the pending id without resolving it. The stream
// handler calls this when a confirmation wait times out, so a late client
// response cannot resolve an already-denied call.
func (r *StreamRegistry) ClearPendingConfirm(sessionID string) {
	r.mu.Lock()
	delete(r.pending, sessionID)
	r.mu.Unlock()
}

// ResolveConfirm delivers an approval or denial for the pending tool call.
// It succeeds only when a confirmation queue exists, a pending id exists,
// and the id matches; the pending id is cleared atomically with the match,
// so a stale or duplicate resolution returns false with no side effect.
func (r *StreamRegistry) ResolveConfirm(sessionID, toolCallID string, approved bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.confirms[sessionID]
	if !ok {
		return false
	}
	pending, ok := r.pending[sessionID]
	if !ok || pending != toolCallID {
		return false
	}
	delete(r.pending, sessionID)

	select {
	case ch <- approved:
		return true
	default:
		// Queue full means an earlier resolution was never consumed;
		// treat as stale rather than overwrite.
		return false
	}
}
