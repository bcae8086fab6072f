package scout

import (
	"context"
	"encoding/json"
	"strings"
)

// ErrorPrefix marks a tool result as an error. Tools never return Go errors;
// every failure is encoded as result text starting with this marker, which
// is also how the loop derives the is_error flag on tool-result events.
const ErrorPrefix = "Error:"

// Tool is a single agent capability. Execute must not fail: anything that
// goes wrong is reported as returned text beginning with ErrorPrefix.
// workDir is the sandbox root that path arguments resolve against.
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
	// RequiresConfirmation reports whether the user must approve each
	// invocation before Execute runs.
	RequiresConfirmation() bool
	Execute(ctx context.Context, args json.RawMessage, workDir string) string
}

// IsErrorResult reports whether a tool result text carries the error marker.
func IsErrorResult(result string) bool {
	return strings.HasPrefix(result, ErrorPrefix)
}

// Registry maps tool names to Tool instances and projects them into the
// function-declaration format sent to the provider on every call.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a name twice replaces the earlier tool
// while keeping its original position in the definition order.
func (r *Registry) Register(t Tool) {
	name := t.Name()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = t
}

// Get returns the tool with the given name, or nil.
func (r *Registry) Get(name string) Tool {
	return r.tools[name]
}

// All returns the registered tools in registration order.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Definitions returns all tools as ToolDefinitions in registration order.
func (r *Registry) Definitions() []ToolDefinition {
	out := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return out
}
