package fs

import (
	"strings"
	"testing"
)

func TestGlobSearchRecursive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "x")
	writeFile(t, dir, "pkg/util.go", "x")
	writeFile(t, dir, "pkg/util_test.go", "x")
	writeFile(t, dir, "README.md", "x")

	got := execTool(t, NewGlobSearch(), dir, map[string]any{"pattern": "**/*.go"})
	if !strings.HasPrefix(got, "Found 3 file(s) matching '**/*.go':") {
		t.Fatalf("header wrong: %q", got)
	}
	for _, want := range []string{"main.go", "pkg/util.go", "pkg/util_test.go"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
	if strings.Contains(got, "README.md") {
		t.Errorf("non-matching file leaked: %q", got)
	}
}

func TestGlobSearchResultsSorted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.go", "x")
	writeFile(t, dir, "a.go", "x")

	got := execTool(t, NewGlobSearch(), dir, map[string]any{"pattern": "*.go"})
	lines := strings.Split(got, "\n")
	if len(lines) != 3 || lines[1] != "a.go" || lines[2] != "b.go" {
		t.Errorf("results not sorted: %v", lines)
	}
}

func TestGlobSearchSkipsNoiseDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.js", "x")
	writeFile(t, dir, "node_modules/dep/index.js", "x")

	got := execTool(t, NewGlobSearch(), dir, map[string]any{"pattern": "**/*.js"})
	if strings.Contains(got, "node_modules") {
		t.Errorf("noise dir leaked: %q", got)
	}
	if !strings.HasPrefix(got, "Found 1 file(s)") {
		t.Errorf("got %q", got)
	}
}

func TestGlobSearchSubdirectoryScope(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/a.ts", "x")
	writeFile(t, dir, "other/b.ts", "x")

	got := execTool(t, NewGlobSearch(), dir, map[string]any{
		"pattern": "**/*.ts", "path": "src",
	})
	// Paths come back relative to the work root, not the subdirectory.
	if !strings.Contains(got, "src/a.ts") {
		t.Errorf("missing scoped match: %q", got)
	}
	if strings.Contains(got, "other/b.ts") {
		t.Errorf("out-of-scope file matched: %q", got)
	}
}

func TestGlobSearchExcludesDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/a.go", "x")

	got := execTool(t, NewGlobSearch(), dir, map[string]any{"pattern": "**"})
	if strings.Contains(got+"\n", "\nsrc\n") {
		t.Errorf("directory itself listed as a result: %q", got)
	}
	if !strings.Contains(got, "src/a.go") {
		t.Errorf("file under directory missing: %q", got)
	}
}

func TestGlobSearchNoMatches(t *testing.T) {
	got := execTool(t, NewGlobSearch(), t.TempDir(), map[string]any{"pattern": "*.rs"})
	if got != "No files found matching pattern '*.rs'." {
		t.Errorf("got %q", got)
	}
}

func TestGlobSearchMissingPattern(t *testing.T) {
	got := execTool(t, NewGlobSearch(), t.TempDir(), map[string]any{})
	if got != "Error: 'pattern' argument is required." {
		t.Errorf("got %q", got)
	}
}

func TestGlobSearchPathNotDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "x")

	got := execTool(t, NewGlobSearch(), dir, map[string]any{
		"pattern": "*", "path": "a.txt",
	})
	if got != "Error: 'a.txt' is not a directory." {
		t.Errorf("got %q", got)
	}
}

func TestGlobSearchOutsideSandbox(t *testing.T) {
	got := execTool(t, NewGlobSearch(), t.TempDir(), map[string]any{
		"pattern": "*", "path": "../..",
	})
	if got != "Error: path '../..' is outside the working directory." {
		t.Errorf("got %q", got)
	}
}
