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

	"github.com/bmatcuk/doublestar/v4"
	"github.com/nevindra/scout"
)

// maxGlobResults caps a single glob expansion.
const maxGlobResults = 500

// GlobSearch finds files matching a glob pattern within the working
// directory. Supports '**' for recursive matching.
type GlobSearch struct{}

// NewGlobSearch returns the glob_search tool.
func NewGlobSearch() *GlobSearch { return &GlobSearch{} }

func (t *GlobSearch) Name() string { return "glob_search" }

func (t *GlobSearch) Description() string {
	return "Find files matching a glob pattern within the working directory. " +
		"Returns matching file paths relative to the working directory. " +
		"Use '**/' for recursive matching (e.g., '**/*.py' finds all Python files)."
}

func (t *GlobSearch) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {
				"type": "string",
				"description": "Glob pattern to match files (e.g., '**/*.py', 'src/**/*.ts')."
			},
			"path": {
				"type": "string",
				"description": "Subdirectory to search within (relative to working directory). Defaults to '.' (entire working directory)."
			}
		},
		"required": ["pattern"],
		"additionalProperties": false
	}`)
}

func (t *GlobSearch) RequiresConfirmation() bool { return false }

func (t *GlobSearch) Execute(ctx context.Context, args json.RawMessage, workDir string) string {
	var a struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err)
	}
	if a.Pattern == "" {
		return "Error: 'pattern' argument is required."
	}

	rawPath := a.Path
	if rawPath == "" {
		rawPath = "."
	}
	resolved, root, err := resolveInSandbox(rawPath, workDir)
	if err != nil {
		if err == errOutsideSandbox {
			return fmt.Sprintf("Error: path '%s' is outside the working directory.", rawPath)
		}
		return fmt.Sprintf("Error: path '%s' does not exist.", rawPath)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Sprintf("Error: path '%s' does not exist.", rawPath)
		}
		return fmt.Sprintf("Error: path '%s' does not exist.", rawPath)
	}
	if !info.IsDir() {
		return fmt.Sprintf("Error: '%s' is not a directory.", rawPath)
	}

	fsys := os.DirFS(resolved)
	raw, err := doublestar.Glob(fsys, a.Pattern)
	if err != nil {
		return fmt.Sprintf("Error: invalid glob pattern '%s': %v", a.Pattern, err)
	}
	sort.Strings(raw)

	relBase, err := filepath.Rel(root, resolved)
	if err != nil {
		relBase = "."
	}

	var results []string
	for _, m := range raw {
		if hasSkipDirComponent(m) {
			continue
		}
		fi, statErr := fs.Stat(fsys, m)
		if statErr != nil || !fi.Mode().IsRegular() {
			continue
		}
		rel := filepath.Join(relBase, filepath.FromSlash(m))
		results = append(results, rel)
		if len(results) >= maxGlobResults {
			results = append(results, fmt.Sprintf("... (truncated at %d results)", maxGlobResults))
			break
		}
	}

	if len(results) == 0 {
		return fmt.Sprintf("No files found matching pattern '%s'.", a.Pattern)
	}

	header := fmt.Sprintf("Found %d file(s) matching '%s':\n", len(results), a.Pattern)
	return header + strings.Join(results, "\n")
}

// hasSkipDirComponent reports whether any component of the slash-separated
// path is a noise directory.
func hasSkipDirComponent(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if skipDirs[part] {
			return true
		}
	}
	return false
}

var _ scout.Tool = (*GlobSearch)(nil)
