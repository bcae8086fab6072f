package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nevindra/scout"
)

// sseWriter frames events for one text/event-stream response. Not safe for
// concurrent use; each stream has exactly one writer goroutine.
type sseWriter struct {
	w io.Writer
	f http.Flusher
}

func newSSEWriter(w io.Writer, f http.Flusher) *sseWriter {
	return &sseWriter{w: w, f: f}
}

// writeEvent sends one named event with a JSON payload.
func (s *sseWriter) writeEvent(typ scout.EventType, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", typ, payload); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}

// writeComment sends an SSE comment line, used as a keepalive. Comments are
// ignored by EventSource clients but keep intermediaries from timing out
// the connection.
func (s *sseWriter) writeComment(text string) error {
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return err
	}
	s.f.Flush()
	return nil
}
