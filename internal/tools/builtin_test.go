package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wardenlabs/warden/internal/autonomy"
)

func newTestWorkspace(t *testing.T, level autonomy.Level) *Workspace {
	t.Helper()
	auto := autonomy.DefaultConfig()
	auto.Level = level
	auto.WriteCooldown = 0
	return &Workspace{Root: t.TempDir(), Auto: auto, Logger: discardLogger()}
}

func TestWriteReadRoundtrip(t *testing.T) {
	w := newTestWorkspace(t, autonomy.LevelWorkspace)
	ctx := context.Background()

	out, err := w.writeFile(ctx, "notes/a.txt\nhello world")
	if err != nil {
		t.Fatalf("write_file: %v", err)
	}
	if !strings.Contains(out, "11 bytes") {
		t.Errorf("unexpected write summary: %q", out)
	}

	got, err := w.readFile(ctx, "notes/a.txt")
	if err != nil {
		t.Fatalf("read_file: %v", err)
	}
	if got != "hello world" {
		t.Errorf("read back %q", got)
	}
}

func TestAppendFile(t *testing.T) {
	w := newTestWorkspace(t, autonomy.LevelWorkspace)
	ctx := context.Background()

	if _, err := w.writeFile(ctx, "log.txt\none\n"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.appendFile(ctx, "log.txt\ntwo\n"); err != nil {
		t.Fatal(err)
	}
	got, err := w.readFile(ctx, "log.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "one\ntwo\n" {
		t.Errorf("appended content = %q", got)
	}
}

func TestWriteOutsideWorkspaceRefused(t *testing.T) {
	w := newTestWorkspace(t, autonomy.LevelWorkspace)
	outside := filepath.Join(t.TempDir(), "x.txt")

	_, err := w.writeFile(context.Background(), outside+"\ndata")
	var ref *RefusalError
	if !errors.As(err, &ref) || ref.Gate != "scope" {
		t.Fatalf("expected scope refusal, got %v", err)
	}
	if _, statErr := os.Stat(outside); statErr == nil {
		t.Error("file outside the workspace must not be created")
	}
}

func TestFullLevelWritesAnywhere(t *testing.T) {
	w := newTestWorkspace(t, autonomy.LevelFull)
	outside := filepath.Join(t.TempDir(), "x.txt")
	if _, err := w.writeFile(context.Background(), outside+"\ndata"); err != nil {
		t.Fatalf("full level write outside workspace: %v", err)
	}
}

func TestRelativePathEscapeIsContained(t *testing.T) {
	w := newTestWorkspace(t, autonomy.LevelWorkspace)
	_, err := w.writeFile(context.Background(), "../../escape.txt\ndata")
	var ref *RefusalError
	if !errors.As(err, &ref) || ref.Gate != "scope" {
		t.Fatalf("dot-dot escape should hit the scope gate, got %v", err)
	}
}

func TestWriteQuota(t *testing.T) {
	w := newTestWorkspace(t, autonomy.LevelWorkspace)
	w.Auto.SessionWriteLimit = 10
	ctx := context.Background()

	if _, err := w.writeFile(ctx, "a.txt\n1234567890"); err != nil {
		t.Fatalf("write at the limit should pass: %v", err)
	}
	_, err := w.writeFile(ctx, "b.txt\nmore")
	var ref *RefusalError
	if !errors.As(err, &ref) || ref.Gate != "quota" {
		t.Fatalf("expected quota refusal, got %v", err)
	}
}

func TestFileCreationQuota(t *testing.T) {
	w := newTestWorkspace(t, autonomy.LevelWorkspace)
	w.Auto.SessionFileLimit = 1
	ctx := context.Background()

	if _, err := w.writeFile(ctx, "a.txt\nx"); err != nil {
		t.Fatal(err)
	}
	// Overwriting the existing file creates nothing and stays legal.
	if _, err := w.writeFile(ctx, "a.txt\ny"); err != nil {
		t.Fatalf("overwrite should not count against the file quota: %v", err)
	}
	_, err := w.writeFile(ctx, "b.txt\nx")
	var ref *RefusalError
	if !errors.As(err, &ref) || ref.Gate != "quota" {
		t.Fatalf("expected quota refusal on second created file, got %v", err)
	}
}

func TestListDir(t *testing.T) {
	w := newTestWorkspace(t, autonomy.LevelWorkspace)
	ctx := context.Background()
	if _, err := w.makeDir(ctx, "sub"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.writeFile(ctx, "a.txt\nhello"); err != nil {
		t.Fatal(err)
	}
	out, err := w.listDir(ctx, ".")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "sub/") || !strings.Contains(out, "a.txt\t5") {
		t.Errorf("listing missing entries:\n%s", out)
	}
}

func TestMoveAndDelete(t *testing.T) {
	w := newTestWorkspace(t, autonomy.LevelWorkspace)
	ctx := context.Background()
	if _, err := w.writeFile(ctx, "a.txt\nx"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.movePath(ctx, "a.txt\nb.txt"); err != nil {
		t.Fatalf("move_path: %v", err)
	}
	if _, err := w.readFile(ctx, "a.txt"); err == nil {
		t.Error("source should be gone after move")
	}
	if _, err := w.deleteFile(ctx, "b.txt"); err != nil {
		t.Fatalf("delete_file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(w.Root, "b.txt")); err == nil {
		t.Error("file should be gone after delete")
	}
}

func TestDeleteRefusesNonEmptyDir(t *testing.T) {
	w := newTestWorkspace(t, autonomy.LevelWorkspace)
	ctx := context.Background()
	if _, err := w.writeFile(ctx, "d/a.txt\nx"); err != nil {
		t.Fatal(err)
	}
	if _, err := w.deleteFile(ctx, "d"); err == nil {
		t.Error("deleting a non-empty directory must fail")
	}
}

func TestSearchFiles(t *testing.T) {
	w := newTestWorkspace(t, autonomy.LevelWorkspace)
	ctx := context.Background()
	for _, p := range []string{"a/one.go\nx", "a/b/two.go\nx", "a/readme.md\nx"} {
		if _, err := w.writeFile(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	out, err := w.searchFiles(ctx, ".\n*.go")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "one.go") || !strings.Contains(out, "two.go") {
		t.Errorf("glob search missed files:\n%s", out)
	}
	if strings.Contains(out, "readme.md") {
		t.Errorf("glob search matched too much:\n%s", out)
	}

	out, err = w.searchFiles(ctx, ".\nreadme")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "readme.md") {
		t.Errorf("substring search missed file:\n%s", out)
	}
}

func TestStatPath(t *testing.T) {
	w := newTestWorkspace(t, autonomy.LevelWorkspace)
	ctx := context.Background()
	if _, err := w.writeFile(ctx, "a.txt\nhello"); err != nil {
		t.Fatal(err)
	}
	out, err := w.statPath(ctx, "a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "file") || !strings.Contains(out, "5 bytes") {
		t.Errorf("unexpected stat output: %q", out)
	}
}
