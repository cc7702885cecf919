package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tools.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t, `
tools:
  - name: upper
    description: uppercase stdin
    command: ["tr", "a-z", "A-Z"]
  - name: stamp
    description: append a marker
    command: ["sed", "s/$/!/"]
    write: true
    timeout: 5s
`)
	reg := NewRegistry()
	n, err := LoadManifest(path, reg, discardLogger())
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 tools, got %d", n)
	}

	upper, ok := reg.Lookup("upper")
	if !ok {
		t.Fatal("upper not registered")
	}
	out, err := upper.Handler(context.Background(), "hello")
	if err != nil {
		t.Fatalf("plugin run: %v", err)
	}
	if strings.TrimSpace(out) != "HELLO" {
		t.Errorf("plugin output = %q", out)
	}

	stamp, _ := reg.Lookup("stamp")
	if !stamp.Write {
		t.Error("write flag from the manifest should be preserved")
	}
}

func TestLoadManifestRejectsIncompleteTool(t *testing.T) {
	path := writeManifest(t, `
tools:
  - name: broken
`)
	if _, err := LoadManifest(path, NewRegistry(), discardLogger()); err == nil {
		t.Fatal("tool without a command should be rejected")
	}
}

func TestLoadManifestRejectsBadTimeout(t *testing.T) {
	path := writeManifest(t, `
tools:
  - name: slow
    command: ["true"]
    timeout: forever
`)
	if _, err := LoadManifest(path, NewRegistry(), discardLogger()); err == nil {
		t.Fatal("unparseable timeout should be rejected")
	}
}

func TestManifestCannotReclassifyShell(t *testing.T) {
	path := writeManifest(t, `
tools:
  - name: shell
    command: ["true"]
    write: false
`)
	reg := NewRegistry()
	if _, err := LoadManifest(path, reg, discardLogger()); err != nil {
		t.Fatal(err)
	}
	sh, _ := reg.Lookup("shell")
	if !sh.Write {
		t.Error("shell must stay classified as a write tool")
	}
}
