package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execTool(t *testing.T, tool interface {
	Execute(context.Context, json.RawMessage, string) string
}, workDir string, args map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatal(err)
	}
	return tool.Execute(context.Background(), raw, workDir)
}

func TestReadFileBasic(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "one\ntwo\n")

	got := execTool(t, NewReadFile(), dir, map[string]any{"path": "a.txt"})
	want := "File: a.txt (lines 1-2 of 2)\n1 | one\n2 | two"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReadFileLineRange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "one\ntwo\nthree\nfour\n")

	got := execTool(t, NewReadFile(), dir, map[string]any{
		"path": "a.txt", "start_line": 2, "end_line": 3,
	})
	want := "File: a.txt (lines 2-3 of 4)\n2 | two\n3 | three"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReadFileClampsOutOfRangeBounds(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "one\ntwo\n")

	got := execTool(t, NewReadFile(), dir, map[string]any{
		"path": "a.txt", "start_line": 0, "end_line": 99,
	})
	want := "File: a.txt (lines 1-2 of 2)\n1 | one\n2 | two"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestReadFileStartAfterEnd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "one\ntwo\n")

	got := execTool(t, NewReadFile(), dir, map[string]any{
		"path": "a.txt", "start_line": 2, "end_line": 1,
	})
	if got != "Error: start_line (2) > end_line (1). File has 2 lines." {
		t.Errorf("got %q", got)
	}
}

func TestReadFileEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.txt", "")

	got := execTool(t, NewReadFile(), dir, map[string]any{"path": "empty.txt"})
	if got != "Error: start_line (1) > end_line (0). File has 0 lines." {
		t.Errorf("got %q", got)
	}
}

func TestReadFileMissing(t *testing.T) {
	dir := t.TempDir()

	got := execTool(t, NewReadFile(), dir, map[string]any{"path": "gone.txt"})
	if got != "Error: file 'gone.txt' does not exist." {
		t.Errorf("got %q", got)
	}
}

func TestReadFileDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	got := execTool(t, NewReadFile(), dir, map[string]any{"path": "sub"})
	if got != "Error: 'sub' is not a file." {
		t.Errorf("got %q", got)
	}
}

func TestReadFileMissingPathArgument(t *testing.T) {
	got := execTool(t, NewReadFile(), t.TempDir(), map[string]any{})
	if got != "Error: 'path' argument is required." {
		t.Errorf("got %q", got)
	}
}

func TestReadFileTooLarge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "big.txt", strings.Repeat("x", maxFileSize+1))

	got := execTool(t, NewReadFile(), dir, map[string]any{"path": "big.txt"})
	if !strings.HasPrefix(got, "Error: file 'big.txt' is 100,001 bytes (limit is 100,000 bytes).") {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(got, "start_line/end_line") {
		t.Errorf("size error should point at range reads: %q", got)
	}
}

func TestReadFileEscapeViaDotDot(t *testing.T) {
	outer := t.TempDir()
	work := filepath.Join(outer, "work")
	if err := os.Mkdir(work, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, outer, "secret.txt", "hidden")

	got := execTool(t, NewReadFile(), work, map[string]any{"path": "../secret.txt"})
	if got != "Error: path '../secret.txt' is outside the working directory." {
		t.Errorf("got %q", got)
	}
}

func TestReadFileEscapeViaSymlink(t *testing.T) {
	outer := t.TempDir()
	work := filepath.Join(outer, "work")
	if err := os.Mkdir(work, 0o755); err != nil {
		t.Fatal(err)
	}
	target := writeFile(t, outer, "secret.txt", "hidden")
	if err := os.Symlink(target, filepath.Join(work, "link.txt")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	got := execTool(t, NewReadFile(), work, map[string]any{"path": "link.txt"})
	if got != "Error: path 'link.txt' is outside the working directory." {
		t.Errorf("got %q", got)
	}
}

func TestReadFileIsRepeatable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "stable\n")

	first := execTool(t, NewReadFile(), dir, map[string]any{"path": "a.txt"})
	second := execTool(t, NewReadFile(), dir, map[string]any{"path": "a.txt"})
	if first != second {
		t.Errorf("reads differ: %q vs %q", first, second)
	}
}

func TestReadFileWidePadding(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	for i := 0; i < 12; i++ {
		b.WriteString("line\n")
	}
	writeFile(t, dir, "a.txt", b.String())

	got := execTool(t, NewReadFile(), dir, map[string]any{"path": "a.txt"})
	if !strings.Contains(got, " 1 | line") || !strings.Contains(got, "12 | line") {
		t.Errorf("line numbers not padded to width: %q", got)
	}
}
