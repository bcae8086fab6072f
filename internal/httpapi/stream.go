package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/nevindra/scout"
)

// handleStream owns a session's event stream for the life of the
// connection: it replays stored history, signals readiness, then waits for
// out-of-band message submissions and runs one agent turn per message.
// Idle periods are bridged with SSE keepalive comments.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.requireSession(w, r, id) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// Registering replaces any previous stream for this session; the old
	// handler keeps draining a queue nobody sends to and exits on its own
	// disconnect.
	msgCh := s.registry.Register(id)
	confirmCh := s.registry.RegisterConfirm(id)
	defer s.registry.Unregister(id)
	defer s.registry.UnregisterConfirm(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sse := newSSEWriter(w, flusher)
	ctx := r.Context()

	// History replay, then the ready marker. A client that reconnects gets
	// the whole conversation back before any live events.
	history, err := s.store.GetMessageEvents(ctx, id)
	if err != nil {
		s.logger.Error("history replay failed", "session_id", id, "error", err)
		sse.writeEvent(scout.EventError, scout.ErrorEvent{Message: "failed to load history"})
		return
	}
	for _, ev := range history {
		if err := sse.writeEvent(scout.EventMessage, ev); err != nil {
			return
		}
	}
	if err := sse.writeEvent(scout.EventReady, scout.ReadyEvent{}); err != nil {
		return
	}

	s.logger.Info("stream connected", "session_id", id)
	defer s.logger.Info("stream closed", "session_id", id)

	keepalive := time.NewTimer(s.keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-keepalive.C:
			if err := sse.writeComment("ping"); err != nil {
				return
			}
			keepalive.Reset(s.keepaliveInterval)

		case payload := <-msgCh:
			if payload == nil {
				// Explicit close requested via POST /close.
				return
			}
			s.runTurn(ctx, sse, id, payload, confirmCh)

			if !keepalive.Stop() {
				select {
				case <-keepalive.C:
				default:
				}
			}
			keepalive.Reset(s.keepaliveInterval)
		}
	}
}

// runTurn persists the user message and drives one full agent loop,
// forwarding every loop event onto the stream.
func (s *Server) runTurn(ctx context.Context, sse *sseWriter, sessionID string, payload *scout.MessagePayload, confirmCh chan bool) {
	if err := s.store.AddMessage(ctx, sessionID, "user", payload.Content, nil, ""); err != nil {
		s.logger.Error("persist user message failed", "session_id", sessionID, "error", err)
		sse.writeEvent(scout.EventError, scout.ErrorEvent{Message: "failed to persist message"})
		return
	}
	if err := s.store.AutoTitleIfNeeded(ctx, sessionID, payload.Content); err != nil {
		s.logger.Error("auto title failed", "session_id", sessionID, "error", err)
	}

	history, err := s.store.GetMessages(ctx, sessionID)
	if err != nil {
		s.logger.Error("load history failed", "session_id", sessionID, "error", err)
		sse.writeEvent(scout.EventError, scout.ErrorEvent{Message: "failed to load history"})
		return
	}

	model := payload.Model
	if model == "" {
		model = s.defaultModel
	}

	turnCtx := ctx
	var runSpan scout.Span
	if s.tracer != nil {
		turnCtx, runSpan = s.tracer.Start(ctx, scout.SpanRun,
			scout.StringAttr("session_id", sessionID),
			scout.StringAttr("model", model))
	}

	cfg := scout.LoopConfig{
		Provider:      s.newProvider(payload.Token),
		Registry:      s.tools,
		Store:         s.store,
		SessionID:     sessionID,
		Model:         model,
		WorkDir:       s.workDir,
		MaxIterations: s.maxIterations,
		IsDisconnected: func() bool {
			return ctx.Err() != nil
		},
		Confirm: func(ctx context.Context, toolCallID string) bool {
			return s.awaitConfirm(ctx, sessionID, toolCallID, confirmCh)
		},
		Logger: s.logger,
		Tracer: s.tracer,
	}

	ch := make(chan scout.Event)
	go func() {
		scout.RunLoop(turnCtx, cfg, history, ch)
		close(ch)
	}()

	status := "completed"
	for ev := range ch {
		if ev.Type == scout.EventError {
			status = "error"
		}
		if err := sse.writeEvent(ev.Type, ev.Data); err != nil {
			// Client is gone. Keep draining so the loop can observe the
			// disconnect and wind down instead of blocking on the channel.
			continue
		}
	}

	if runSpan != nil {
		runSpan.SetAttr(scout.StringAttr("status", status))
		runSpan.End()
	}
}

// awaitConfirm arms the pending-confirmation slot and blocks until the
// client resolves it, the wait times out, or the stream context ends.
// Timeout and disconnect both count as denial.
func (s *Server) awaitConfirm(ctx context.Context, sessionID, toolCallID string, confirmCh chan bool) bool {
	// Drop any unconsumed resolution from a previous call.
	select {
	case <-confirmCh:
	default:
	}

	s.registry.SetPendingConfirm(sessionID, toolCallID)

	timer := time.NewTimer(s.confirmTimeout)
	defer timer.Stop()

	select {
	case approved := <-confirmCh:
		return approved
	case <-timer.C:
		s.logger.Warn("confirmation timed out, denying",
			"session_id", sessionID, "tool_call_id", toolCallID)
		s.registry.ClearPendingConfirm(sessionID)
		return false
	case <-ctx.Done():
		s.registry.ClearPendingConfirm(sessionID)
		return false
	}
}
