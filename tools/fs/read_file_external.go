package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/nevindra/scout"
)

// ReadFileExternal reads a file anywhere on the filesystem by absolute
// path. It bypasses the sandbox, so each invocation requires explicit user
// approval before it runs.
type ReadFileExternal struct{}

// NewReadFileExternal returns the read_file_external tool.
func NewReadFileExternal() *ReadFileExternal { return &ReadFileExternal{} }

func (t *ReadFileExternal) Name() string { return "read_file_external" }

func (t *ReadFileExternal) Description() string {
	return "Read a file anywhere on the filesystem by absolute path. " +
		"Use this when you need to read files outside the project working directory " +
		"(e.g. system config files, files in other projects). " +
		"Requires user approval before execution. " +
		"Returns the file contents with line numbers."
}

func (t *ReadFileExternal) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Absolute file path (e.g. /etc/hosts, /home/user/other-project/file.py)."
			},
			"start_line": {
				"type": "integer",
				"description": "First line to read (1-based, inclusive). Omit to start from the beginning."
			},
			"end_line": {
				"type": "integer",
				"description": "Last line to read (1-based, inclusive). Omit to read to the end."
			}
		},
		"required": ["path"],
		"additionalProperties": false
	}`)
}

func (t *ReadFileExternal) RequiresConfirmation() bool { return true }

func (t *ReadFileExternal) Execute(ctx context.Context, args json.RawMessage, workDir string) string {
	var a struct {
		Path      string `json:"path"`
		StartLine *int   `json:"start_line"`
		EndLine   *int   `json:"end_line"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err)
	}
	if a.Path == "" {
		return "Error: 'path' argument is required."
	}
	if !filepath.IsAbs(a.Path) {
		return fmt.Sprintf("Error: path '%s' must be absolute.", a.Path)
	}

	resolved := filepath.Clean(a.Path)
	if real, err := filepath.EvalSymlinks(resolved); err == nil {
		resolved = real
	}

	return readWithLineNumbers(resolved, a.Path, a.StartLine, a.EndLine)
}

var _ scout.Tool = (*ReadFileExternal)(nil)
