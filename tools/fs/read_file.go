package fs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nevindra/scout"
)

// ReadFile reads a file inside the working directory with line numbers.
type ReadFile struct{}

// NewReadFile returns the read_file tool.
func NewReadFile() *ReadFile { return &ReadFile{} }

func (t *ReadFile) Name() string { return "read_file" }

func (t *ReadFile) Description() string {
	return "Read the contents of a file relative to the working directory. " +
		"Returns the file contents with line numbers. " +
		"Optionally specify start_line and end_line (1-based, inclusive) to read a range."
}

func (t *ReadFile) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "File path relative to the working directory."
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

func (t *ReadFile) RequiresConfirmation() bool { return false }

func (t *ReadFile) Execute(ctx context.Context, args json.RawMessage, workDir string) string {
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

	resolved, _, err := resolveInSandbox(a.Path, workDir)
	if err != nil {
		if err == errOutsideSandbox {
			return fmt.Sprintf("Error: path '%s' is outside the working directory.", a.Path)
		}
		return fmt.Sprintf("Error reading '%s': %v", a.Path, err)
	}

	return readWithLineNumbers(resolved, a.Path, a.StartLine, a.EndLine)
}

var _ scout.Tool = (*ReadFile)(nil)
