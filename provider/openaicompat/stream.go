package openaicompat

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/nevindra/scout"
)

// Stream decodes an SSE chat completions response into scout.Fragments,
// one fragment per data chunk. Recv returns io.EOF at the [DONE] sentinel
// or when the body is exhausted.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	data: [DONE]\n
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

// NewStream wraps an SSE response body. Callers normally get a Stream from
// Client.StreamChat; this constructor exists for tests and custom transports.
func NewStream(body io.ReadCloser) *Stream {
	scanner := bufio.NewScanner(body)
	// Large tool-call argument chunks can exceed the default token size.
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	return &Stream{body: body, scanner: scanner}
}

// Recv returns the next fragment. Malformed data chunks are skipped, not
// surfaced as errors, matching how lenient SSE consumers treat provider
// keepalives and vendor extensions.
func (s *Stream) Recv() (scout.Fragment, error) {
	if s.done {
		return scout.Fragment{}, io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Text()

		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		if data == "[DONE]" {
			s.done = true
			return scout.Fragment{}, io.EOF
		}

		var chunk ChatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		frag := scout.Fragment{Model: chunk.Model}
		if len(chunk.Choices) == 0 {
			return frag, nil
		}

		choice := chunk.Choices[0]
		frag.FinishReason = choice.FinishReason
		if choice.Delta != nil {
			frag.TextDelta = choice.Delta.Content
			for _, tc := range choice.Delta.ToolCalls {
				frag.ToolCallDeltas = append(frag.ToolCallDeltas, scout.ToolCallDelta{
					Index:          tc.Index,
					ID:             tc.ID,
					Name:           tc.Function.Name,
					ArgumentsDelta: tc.Function.Arguments,
				})
			}
		}
		return frag, nil
	}

	s.done = true
	if err := s.scanner.Err(); err != nil {
		return scout.Fragment{}, err
	}
	return scout.Fragment{}, io.EOF
}

// Close releases the underlying response body. Safe to call repeatedly.
func (s *Stream) Close() error {
	s.done = true
	return s.body.Close()
}

// Compile-time interface check.
var _ scout.FragmentStream = (*Stream)(nil)
