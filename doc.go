// Package scout is the core of an agentic filesystem-inspection backend:
// a text-generation model autonomously drives a bounded set of read-only
// filesystem tools while its output streams to a single connected client,
// with an optional human-in-the-loop gate before sensitive tool calls.
//
// The package holds the provider-agnostic pieces: conversation and tool
// types, the Tool interface and Registry, the fragment-streaming provider
// contract, the per-session StreamRegistry that bridges out-of-band message
// and confirmation submissions into the long-lived stream handler, and
// RunLoop, the iterative model-call/tool-dispatch loop.
//
// Concrete collaborators live in subpackages: provider/openaicompat (the
// OpenAI-compatible streaming client), tools/fs (the five built-in tools),
// store/sqlite and store/postgres (session persistence), observer (OTEL
// tracing and metrics), and internal/httpapi plus cmd/scoutd (the HTTP
// surface and server binary).
package scout
