package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nevindra/scout"
)

// requireSession verifies the session exists, writing 404/500 otherwise.
// Returns false when the response has already been written.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request, id string) bool {
	exists, err := s.store.SessionExists(r.Context(), id)
	if err != nil {
		s.logger.Error("session lookup failed", "session_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to look up session")
		return false
	}
	if !exists {
		writeError(w, http.StatusNotFound, "Session not found")
		return false
	}
	return true
}

// bearerToken extracts the per-message provider credential: the
// Authorization header when present, the gh_token cookie otherwise.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie("gh_token"); err == nil {
		return c.Value
	}
	return ""
}

func (s *Server) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.requireSession(w, r, id) {
		return
	}

	var body struct {
		Content string `json:"content"`
		Model   string `json:"model"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if body.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	err := s.registry.Send(id, &scout.MessagePayload{
		Content: body.Content,
		Model:   body.Model,
		Token:   bearerToken(r),
	})
	switch {
	case errors.Is(err, scout.ErrQueueFull):
		writeError(w, http.StatusConflict, "Message queue is full for this session")
		return
	case err != nil:
		writeError(w, http.StatusConflict, "No active stream for this session")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleSubmitConfirm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.requireSession(w, r, id) {
		return
	}

	var body struct {
		ToolCallID string `json:"tool_call_id"`
		Approved   bool   `json:"approved"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if body.ToolCallID == "" {
		writeError(w, http.StatusBadRequest, "tool_call_id is required")
		return
	}

	if !s.registry.ResolveConfirm(id, body.ToolCallID, body.Approved) {
		writeError(w, http.StatusConflict, "No pending confirmation for this tool call")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleCloseStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.requireSession(w, r, id) {
		return
	}

	switch err := s.registry.Send(id, nil); {
	case errors.Is(err, scout.ErrQueueFull):
		writeError(w, http.StatusConflict, "Message queue is full for this session")
		return
	case err != nil:
		writeError(w, http.StatusConflict, "No active stream for this session")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "closing"})
}
