// Package fs provides the built-in filesystem inspection tools: read_file,
// list_directory, grep_search, glob_search (all sandboxed to the working
// directory), and read_file_external (absolute paths, gated behind user
// confirmation).
//
// Every tool encodes failures as returned text starting with "Error:".
// Path arguments are resolved against the sandbox root and canonicalized
// with symlinks followed, so a symlink inside the sandbox pointing outside
// it is still rejected.
package fs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// maxFileSize is the ceiling for file reads, in bytes. Larger files are
// rejected with guidance to read a line range instead.
const maxFileSize = 100_000

// skipDirs are noise directories excluded from listings, walks, and globs.
var skipDirs = map[string]bool{
	".git":          true,
	"__pycache__":   true,
	"node_modules":  true,
	".venv":         true,
	"venv":          true,
	".mypy_cache":   true,
	".pytest_cache": true,
	".ruff_cache":   true,
}

// errOutsideSandbox marks a path that escapes the working directory after
// canonicalization.
var errOutsideSandbox = errors.New("path outside working directory")

// resolveInSandbox resolves raw against workDir, follows symlinks, and
// verifies the canonical result stays inside the canonical workDir. It
// returns the resolved path and the canonical sandbox root. A path that
// does not exist yet is checked lexically so the caller can report
// not-found instead of leaking whether out-of-sandbox paths exist.
func resolveInSandbox(raw, workDir string) (resolved, root string, err error) {
	root, err = filepath.EvalSymlinks(workDir)
	if err != nil {
		return "", "", err
	}

	joined := raw
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(root, raw)
	}

	resolved, err = filepath.EvalSymlinks(joined)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			clean := filepath.Clean(joined)
			if !within(root, clean) {
				return "", "", errOutsideSandbox
			}
			return clean, root, nil
		}
		return "", "", err
	}

	if !within(root, resolved) {
		return "", "", errOutsideSandbox
	}
	return resolved, root, nil
}

// within reports whether path equals root or lies under it.
func within(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// decodeLossy converts file bytes to text, replacing undecodable byte
// sequences so a stray binary run never aborts a read.
func decodeLossy(data []byte) string {
	return strings.ToValidUTF8(string(data), "�")
}

// splitLines splits text the way a line-numbered display expects: no
// phantom empty line after a trailing newline, CRLF tolerated.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// groupThousands renders n with comma separators ("100000" -> "100,000").
func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// readWithLineNumbers implements the shared line-numbered read used by both
// read_file and read_file_external. display is the path as the model wrote
// it; start/end are 1-based inclusive bounds, nil meaning "from the
// beginning" / "to the end". Bounds are clamped to the file's line count;
// start > end after clamping is an error.
func readWithLineNumbers(resolved, display string, start, end *int) string {
	info, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Sprintf("Error: file '%s' does not exist.", display)
		}
		return fmt.Sprintf("Error reading '%s': %v", display, err)
	}
	if info.IsDir() || !info.Mode().IsRegular() {
		return fmt.Sprintf("Error: '%s' is not a file.", display)
	}

	if info.Size() > maxFileSize {
		return fmt.Sprintf(
			"Error: file '%s' is %s bytes (limit is %s bytes). Use start_line/end_line to read a portion.",
			display, groupThousands(info.Size()), groupThousands(maxFileSize))
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return fmt.Sprintf("Error reading '%s': %v", display, err)
	}

	lines := splitLines(decodeLossy(data))
	total := len(lines)

	s, e := 1, total
	if start != nil {
		s = *start
	}
	if end != nil {
		e = *end
	}
	if s < 1 {
		s = 1
	}
	if e > total {
		e = total
	}
	if s > e {
		return fmt.Sprintf("Error: start_line (%d) > end_line (%d). File has %d lines.", s, e, total)
	}

	width := len(strconv.Itoa(e))
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s (lines %d-%d of %d)\n", display, s, e, total)
	for i := s; i <= e; i++ {
		fmt.Fprintf(&b, "%*d | %s", width, i, lines[i-1])
		if i < e {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
