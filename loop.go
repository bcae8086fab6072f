package scout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// DefaultMaxIterations caps the number of provider calls per turn when
// LoopConfig.MaxIterations is zero.
const DefaultMaxIterations = 25

// Fixed tool-result texts for failures resolved inside the loop. The model
// sees these verbatim and can adapt its next call.
const (
	declinedResultText = "Error: user declined to run this tool."
)

// LoopConfig holds everything RunLoop needs for one session turn.
type LoopConfig struct {
	Provider  StreamProvider
	Registry  *Registry
	Store     SessionStore
	SessionID string
	// Model is the requested model name; the resolved name reported by the
	// provider is what the final done event carries.
	Model string
	// WorkDir is the sandbox root passed to every tool execution.
	WorkDir string
	// MaxIterations bounds full provider-call/tool-dispatch passes.
	// Zero means DefaultMaxIterations.
	MaxIterations int
	// IsDisconnected is polled before each fragment is processed. When it
	// reports true the loop exits silently: no error, no done event.
	IsDisconnected func() bool
	// Confirm blocks until the user approves or denies the tool call with
	// the given id, or the wait times out (a timeout is a denial). When
	// nil, confirmation-required tools are denied with a warning log.
	Confirm func(ctx context.Context, toolCallID string) bool
	Logger  *slog.Logger
	Tracer  Tracer // nil = no tracing
}

// streamedToolCall accumulates incremental tool-call deltas from provider
// fragments. Slots are addressed by turn-local index because the id may
// arrive after the first delta.
type streamedToolCall struct {
	id        string
	name      string
	arguments string
}

// RunLoop executes the agentic loop for one submitted message: call the
// provider with the running history, stream text deltas, execute requested
// tools (gated by confirmation where required), feed results back, and
// repeat until a natural stop, a disconnect, a provider failure, or the
// iteration cap. Events are emitted on ch in strict order; the channel is
// left open for the caller to close.
func RunLoop(ctx context.Context, cfg LoopConfig, history []ChatMessage, ch chan<- Event) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	emit := func(ev Event) {
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	}

	messages := make([]ChatMessage, len(history))
	copy(messages, history)
	toolDefs := cfg.Registry.Definitions()

	for i := 0; i < maxIter; i++ {
		iterCtx := ctx
		var iterSpan Span
		if cfg.Tracer != nil {
			iterCtx, iterSpan = cfg.Tracer.Start(ctx, SpanIteration,
				IntAttr("iteration", i),
				StringAttr("session_id", cfg.SessionID))
		}
		endIter := func() {
			if iterSpan != nil {
				iterSpan.End()
			}
		}

		modelName := cfg.Model
		var accumulated string
		var toolCalls []*streamedToolCall
		var finishReason string

		// The full tool specification list rides along on every call;
		// later iterations are not narrowed.
		stream, err := cfg.Provider.StreamChat(iterCtx, ChatRequest{
			Model:    cfg.Model,
			Messages: messages,
			Tools:    toolDefs,
		})
		if err != nil {
			logger.Error("provider call failed", "session_id", cfg.SessionID, "error", err)
			if iterSpan != nil {
				iterSpan.Error(err)
			}
			endIter()
			emit(Event{Type: EventError, Data: ErrorEvent{Message: err.Error()}})
			return
		}

		streamErr := func() error {
			defer stream.Close()
			for {
				frag, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}

				// Client gone: abandon cleanly, no further events.
				if cfg.IsDisconnected != nil && cfg.IsDisconnected() {
					return errAbandoned
				}

				if frag.TextDelta != "" {
					accumulated += frag.TextDelta
					emit(Event{Type: EventTextDelta, Data: TextDeltaEvent{Content: frag.TextDelta}})
				}

				for _, d := range frag.ToolCallDeltas {
					for len(toolCalls) <= d.Index {
						toolCalls = append(toolCalls, &streamedToolCall{})
					}
					tc := toolCalls[d.Index]
					if d.ID != "" {
						tc.id = d.ID
					}
					if d.Name != "" {
						tc.name = d.Name
					}
					tc.arguments += d.ArgumentsDelta
				}

				if frag.FinishReason != "" {
					finishReason = frag.FinishReason
				}
				if frag.Model != "" {
					modelName = frag.Model
				}
			}
		}()
		if errors.Is(streamErr, errAbandoned) {
			endIter()
			return
		}
		if streamErr != nil {
			logger.Error("provider stream failed", "session_id", cfg.SessionID, "error", streamErr)
			if iterSpan != nil {
				iterSpan.Error(streamErr)
			}
			// Salvage whatever assistant text arrived before the failure.
			if accumulated != "" {
				cfg.persist(iterCtx, logger, "assistant", accumulated, nil, "")
			}
			endIter()
			emit(Event{Type: EventError, Data: ErrorEvent{Message: streamErr.Error()}})
			return
		}

		if finishReason == FinishToolCalls && len(toolCalls) > 0 {
			if iterSpan != nil {
				iterSpan.SetAttr(IntAttr("tool_count", len(toolCalls)))
			}

			calls := make([]ToolCall, len(toolCalls))
			for j, tc := range toolCalls {
				calls[j] = ToolCall{ID: tc.id, Name: tc.name, Arguments: tc.arguments}
			}

			// One assistant turn carrying the text (possibly empty) and the
			// finalized tool calls, both persisted and appended to the
			// running history for the next call.
			cfg.persist(iterCtx, logger, "assistant", accumulated, calls, "")
			messages = append(messages, ChatMessage{
				Role:      "assistant",
				Content:   accumulated,
				ToolCalls: calls,
			})

			for _, tc := range calls {
				emit(Event{Type: EventToolCall, Data: ToolCallEvent{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}})

				result := cfg.dispatch(iterCtx, logger, tc, emit)
				isError := IsErrorResult(result)

				emit(Event{Type: EventToolResult, Data: ToolResultEvent{
					ID:      tc.ID,
					Name:    tc.Name,
					Content: result,
					IsError: isError,
				}})
				cfg.persist(iterCtx, logger, "tool", result, nil, tc.ID)
				messages = append(messages, ToolResultMessage(tc.ID, result))
			}

			endIter()
			continue
		}

		// Natural stop (or any non-tool-call finish).
		if accumulated != "" {
			cfg.persist(iterCtx, logger, "assistant", accumulated, nil, "")
		}
		endIter()
		emit(Event{Type: EventDone, Data: DoneEvent{Model: modelName}})
		return
	}

	logger.Warn("agent loop hit iteration limit", "session_id", cfg.SessionID, "max_iterations", maxIter)
	emit(Event{Type: EventError, Data: ErrorEvent{
		Message: fmt.Sprintf("Agent loop exceeded maximum iterations (%d).", maxIter),
	}})
}

// errAbandoned is the internal signal that the client disconnected
// mid-stream. It never surfaces as an event.
var errAbandoned = errors.New("stream abandoned: client disconnected")

// dispatch resolves and runs one tool call, translating every failure mode
// (unknown tool, denied confirmation, malformed arguments) into result text.
// This is the only place a tool failure is converted to a result string;
// tools themselves never return errors.
func (cfg *LoopConfig) dispatch(ctx context.Context, logger *slog.Logger, tc ToolCall, emit func(Event)) string {
	tool := cfg.Registry.Get(tc.Name)
	if tool == nil {
		return fmt.Sprintf("Error: unknown tool '%s'.", tc.Name)
	}

	if tool.RequiresConfirmation() {
		emit(Event{Type: EventToolConfirm, Data: ToolCallEvent{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}})

		approved := false
		if cfg.Confirm == nil {
			logger.Warn("tool requires confirmation but no resolver configured, auto-declining",
				"tool", tc.Name, "session_id", cfg.SessionID)
		} else {
			approved = cfg.Confirm(ctx, tc.ID)
		}
		if !approved {
			return declinedResultText
		}
	}

	args := tc.Arguments
	if args == "" {
		args = "{}"
	}
	if !json.Valid([]byte(args)) {
		return fmt.Sprintf("Error: failed to parse arguments for tool '%s': %s", tc.Name, tc.Arguments)
	}

	execCtx := ctx
	var span Span
	if cfg.Tracer != nil {
		execCtx, span = cfg.Tracer.Start(ctx, SpanToolExecute,
			StringAttr("tool", tc.Name),
			BoolAttr("confirmed", tool.RequiresConfirmation()))
		defer span.End()
	}
	result := tool.Execute(execCtx, json.RawMessage(args), cfg.WorkDir)
	if span != nil {
		span.SetAttr(BoolAttr("is_error", IsErrorResult(result)))
	}
	return result
}

// persist appends a message to the store, logging rather than failing the
// turn when the write does not land. The event stream is the sole channel
// for outcomes; a storage hiccup should not kill an otherwise healthy loop.
func (cfg *LoopConfig) persist(ctx context.Context, logger *slog.Logger, role, content string, toolCalls []ToolCall, toolCallID string) {
	if err := cfg.Store.AddMessage(ctx, cfg.SessionID, role, content, toolCalls, toolCallID); err != nil {
		logger.Error("persist message failed",
			"session_id", cfg.SessionID, "role", role, "error", err)
	}
}
