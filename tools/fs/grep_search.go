package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/nevindra/scout"
)

const (
	maxGrepMatches    = 200
	maxGrepLineLength = 500
)

// binaryExts lists extensions grep skips as likely binary.
var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".svg": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".zip": true, ".tar": true, ".gz": true, ".bz2": true, ".xz": true, ".7z": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".o": true, ".a": true,
	".pyc": true, ".pyo": true, ".class": true, ".jar": true,
	".db": true, ".sqlite": true, ".sqlite3": true,
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wav": true,
}

// GrepSearch searches file contents by case-insensitive regex within the
// working directory.
type GrepSearch struct{}

// NewGrepSearch returns the grep_search tool.
func NewGrepSearch() *GrepSearch { return &GrepSearch{} }

func (t *GrepSearch) Name() string { return "grep_search" }

func (t *GrepSearch) Description() string {
	return "Search for a regex pattern in file contents within the working directory. " +
		"Returns matching lines with file paths and line numbers. " +
		"Optionally restrict to a subdirectory and/or glob file pattern."
}

func (t *GrepSearch) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {
				"type": "string",
				"description": "Regular expression pattern to search for."
			},
			"path": {
				"type": "string",
				"description": "Subdirectory to search within (relative to working directory). Defaults to '.' (entire working directory)."
			},
			"include": {
				"type": "string",
				"description": "Glob pattern to filter files (e.g., '*.py', '*.ts'). If omitted, searches all text files."
			}
		},
		"required": ["pattern"],
		"additionalProperties": false
	}`)
}

func (t *GrepSearch) RequiresConfirmation() bool { return false }

func (t *GrepSearch) Execute(ctx context.Context, args json.RawMessage, workDir string) string {
	var a struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
		Include string `json:"include"`
	}
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Sprintf("Error: invalid arguments: %v", err)
	}
	if a.Pattern == "" {
		return "Error: 'pattern' argument is required."
	}

	re, err := regexp.Compile("(?i)" + a.Pattern)
	if err != nil {
		return fmt.Sprintf("Error: invalid regex pattern '%s': %v", a.Pattern, err)
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
	if _, statErr := os.Stat(resolved); errors.Is(statErr, fs.ErrNotExist) {
		return fmt.Sprintf("Error: path '%s' does not exist.", rawPath)
	}

	var matches []string
	filesSearched := 0

	for _, file := range collectFiles(resolved, a.Include) {
		filesSearched++

		data, readErr := os.ReadFile(file)
		if readErr != nil {
			continue
		}

		rel, relErr := filepath.Rel(root, file)
		if relErr != nil {
			rel = file
		}

		for lineNo, line := range splitLines(decodeLossy(data)) {
			if !re.MatchString(line) {
				continue
			}
			display := line
			if runes := []rune(line); len(runes) > maxGrepLineLength {
				display = string(runes[:maxGrepLineLength]) + "..."
			}
			matches = append(matches, fmt.Sprintf("%s:%d: %s", rel, lineNo+1, display))
			if len(matches) >= maxGrepMatches {
				matches = append(matches, fmt.Sprintf("... (truncated at %d matches)", maxGrepMatches))
				return formatGrepResult(a.Pattern, matches, filesSearched)
			}
		}
	}

	return formatGrepResult(a.Pattern, matches, filesSearched)
}

// collectFiles walks root, skipping noise directories and likely-binary
// files, applying the optional include glob. A root that is itself a file
// is searched as-is, unfiltered.
func collectFiles(root, include string) []string {
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		return []string{root}
	}

	var files []string
	filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if include != "" && !matchesInclude(p, root, include) {
			return nil
		}
		if binaryExts[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		files = append(files, p)
		return nil
	})
	return files
}

// matchesInclude applies the include glob: bare patterns ("*.go") match the
// basename, patterns with a separator match the trailing components of the
// path relative to the search root, so "src/*.py" hits a/src/x.py too.
func matchesInclude(file, root, include string) bool {
	if !strings.Contains(include, "/") {
		ok, err := path.Match(include, filepath.Base(file))
		return err == nil && ok
	}
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return false
	}
	slashRel := filepath.ToSlash(rel)
	if ok, err := doublestar.Match(include, slashRel); err == nil && ok {
		return true
	}
	ok, err := doublestar.Match("**/"+include, slashRel)
	return err == nil && ok
}

func formatGrepResult(pattern string, matches []string, filesSearched int) string {
	if len(matches) == 0 {
		return fmt.Sprintf("No matches found for pattern '%s' (%d files searched).", pattern, filesSearched)
	}
	header := fmt.Sprintf("Found %d match(es) for '%s' (%d files searched):\n",
		len(matches), pattern, filesSearched)
	return header + strings.Join(matches, "\n")
}

var _ scout.Tool = (*GrepSearch)(nil)
