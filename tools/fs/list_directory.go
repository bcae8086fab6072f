package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nevindra/scout"
)

// maxListEntries caps a single directory listing.
const maxListEntries = 500

// ListDirectory lists the entries of a directory inside the working
// directory, directories first, noise directories skipped.
type ListDirectory struct{}

// NewListDirectory returns the list_directory tool.
func NewListDirectory() *ListDirectory { return &ListDirectory{} }

func (t *ListDirectory) Name() string { return "list_directory" }

func (t *ListDirectory) Description() string {
	return "List the contents of a directory relative to the working directory. " +
		"Returns file and subdirectory names (directories end with '/'). " +
		"Common noise directories (.git, __pycache__, node_modules, etc.) are skipped."
}

func (t *ListDirectory) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Directory path relative to the working directory. Defaults to '.' (the working directory itself)."
			}
		},
		"additionalProperties": false
	}`)
}

func (t *ListDirectory) RequiresConfirmation() bool { return false }

func (t *ListDirectory) Execute(ctx context.Context, args json.RawMessage, workDir string) string {
	var a struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err)
	}
	if a.Path == "" {
		a.Path = "."
	}

	resolved, root, err := resolveInSandbox(a.Path, workDir)
	if err != nil {
		if err == errOutsideSandbox {
			return fmt.Sprintf("Error: path '%s' is outside the working directory.", a.Path)
		}
		return fmt.Sprintf("Error listing '%s': %v", a.Path, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Sprintf("Error: directory '%s' does not exist.", a.Path)
		}
		return fmt.Sprintf("Error listing '%s': %v", a.Path, err)
	}
	if !info.IsDir() {
		return fmt.Sprintf("Error: '%s' is not a directory.", a.Path)
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return fmt.Sprintf("Error listing '%s': %v", a.Path, err)
	}

	// Directories first, then case-insensitive by name.
	sort.SliceStable(entries, func(i, j int) bool {
		di, dj := entries[i].IsDir(), entries[j].IsDir()
		if di != dj {
			return di
		}
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	var lines []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() && skipDirs[name] {
			continue
		}
		if entry.IsDir() {
			lines = append(lines, name+"/")
		} else {
			lines = append(lines, name)
		}
		if len(lines) >= maxListEntries {
			lines = append(lines, fmt.Sprintf("... (truncated at %d entries)", maxListEntries))
			break
		}
	}

	if len(lines) == 0 {
		return fmt.Sprintf("Directory '%s' is empty.", a.Path)
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil {
		rel = a.Path
	}
	return fmt.Sprintf("Directory: %s/\n", rel) + strings.Join(lines, "\n")
}

var _ scout.Tool = (*ListDirectory)(nil)
