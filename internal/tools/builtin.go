package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/wardenlabs/warden/internal/autonomy"
)

const (
	// maxReadBytes bounds read_file output.
	maxReadBytes = 1 << 20
	// maxSearchResults bounds search_files output.
	maxSearchResults = 200
)

// Workspace provides the built-in filesystem tools, scoped to a root
// directory. Relative paths resolve under the root; absolute paths are
// allowed only where the autonomy level permits them.
type Workspace struct {
	Root   string
	Auto   *autonomy.Config
	Logger *slog.Logger
}

// RegisterAll registers the built-in tools.
func (w *Workspace) RegisterAll(reg *Registry) {
	for _, t := range []Tool{
		{Name: "read_file", Description: "read a file; input: path", Handler: w.readFile},
		{Name: "write_file", Description: "write a file; input: path, then content", Handler: w.writeFile},
		{Name: "append_file", Description: "append to a file; input: path, then content", Handler: w.appendFile},
		{Name: "list_dir", Description: "list a directory; input: path", Handler: w.listDir},
		{Name: "delete_file", Description: "delete a file or empty directory; input: path", Handler: w.deleteFile},
		{Name: "make_dir", Description: "create a directory; input: path", Handler: w.makeDir},
		{Name: "move_path", Description: "rename or move; input: source, then destination", Handler: w.movePath},
		{Name: "search_files", Description: "find files by name; input: root, then pattern", Handler: w.searchFiles},
		{Name: "stat_path", Description: "describe a path; input: path", Handler: w.statPath},
		{Name: "sys_info", Description: "host and process information", Handler: w.sysInfo},
	} {
		reg.Register(t)
	}
}

// resolve expands ~ and anchors relative paths under the workspace root.
func (w *Workspace) resolve(p string) string {
	p = strings.TrimSpace(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(w.Root, p)
	}
	return filepath.Clean(p)
}

func within(p, root string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// checkWriteScope enforces the path boundary of the current autonomy
// level on mutating file tools. The OS sandbox enforces the same
// boundary on the shell; this is the equivalent for structured tools.
func (w *Workspace) checkWriteScope(p string) error {
	switch w.Auto.Level {
	case autonomy.LevelFull:
		return nil
	case autonomy.LevelHome:
		home, err := os.UserHomeDir()
		if err == nil && within(p, home) {
			return nil
		}
		if within(p, w.Root) {
			return nil
		}
		return &RefusalError{Gate: "scope", Reason: fmt.Sprintf("%s is outside the home directory", p)}
	default:
		if within(p, w.Root) {
			return nil
		}
		return &RefusalError{Gate: "scope", Reason: fmt.Sprintf("%s is outside the workspace root", p)}
	}
}

func (w *Workspace) readFile(_ context.Context, input string) (string, error) {
	p := w.resolve(input)
	data, err := os.ReadFile(p)
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	if len(data) > maxReadBytes {
		return string(data[:maxReadBytes]) +
			fmt.Sprintf("\n[file truncated: showing %d of %d bytes]", maxReadBytes, len(data)), nil
	}
	return string(data), nil
}

func (w *Workspace) writeFile(_ context.Context, input string) (string, error) {
	rawPath, content, _ := strings.Cut(input, "\n")
	p := w.resolve(rawPath)
	if err := w.checkWriteScope(p); err != nil {
		return "", err
	}
	_, statErr := os.Stat(p)
	creating := errors.Is(statErr, fs.ErrNotExist)
	if !w.Auto.RateCheckWrite(int64(len(content))) {
		return "", &RefusalError{Gate: "quota", Reason: "session write budget exhausted"}
	}
	if creating && !w.Auto.RateCheckFile() {
		return "", &RefusalError{Gate: "quota", Reason: "session file-creation budget exhausted"}
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("write_file: %w", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write_file: %w", err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), p), nil
}

func (w *Workspace) appendFile(_ context.Context, input string) (string, error) {
	rawPath, content, _ := strings.Cut(input, "\n")
	p := w.resolve(rawPath)
	if err := w.checkWriteScope(p); err != nil {
		return "", err
	}
	_, statErr := os.Stat(p)
	creating := errors.Is(statErr, fs.ErrNotExist)
	if !w.Auto.RateCheckWrite(int64(len(content))) {
		return "", &RefusalError{Gate: "quota", Reason: "session write budget exhausted"}
	}
	if creating && !w.Auto.RateCheckFile() {
		return "", &RefusalError{Gate: "quota", Reason: "session file-creation budget exhausted"}
	}
	f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("append_file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return "", fmt.Errorf("append_file: %w", err)
	}
	return fmt.Sprintf("appended %d bytes to %s", len(content), p), nil
}

func (w *Workspace) listDir(_ context.Context, input string) (string, error) {
	p := w.resolve(input)
	entries, err := os.ReadDir(p)
	if err != nil {
		return "", fmt.Errorf("list_dir: %w", err)
	}
	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(&b, "%s/\n", e.Name())
			continue
		}
		info, err := e.Info()
		if err != nil {
			fmt.Fprintf(&b, "%s\n", e.Name())
			continue
		}
		fmt.Fprintf(&b, "%s\t%d\n", e.Name(), info.Size())
	}
	return b.String(), nil
}

// deleteFile removes a single file or an empty directory. There is
// deliberately no recursive variant; bulk deletion goes through the
// shell where the policy engine sees the full command.
func (w *Workspace) deleteFile(_ context.Context, input string) (string, error) {
	p := w.resolve(input)
	if err := w.checkWriteScope(p); err != nil {
		return "", err
	}
	if err := os.Remove(p); err != nil {
		return "", fmt.Errorf("delete_file: %w", err)
	}
	return "deleted " + p, nil
}

func (w *Workspace) makeDir(_ context.Context, input string) (string, error) {
	p := w.resolve(input)
	if err := w.checkWriteScope(p); err != nil {
		return "", err
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return "", fmt.Errorf("make_dir: %w", err)
	}
	return "created " + p, nil
}

func (w *Workspace) movePath(_ context.Context, input string) (string, error) {
	src, dst, ok := strings.Cut(input, "\n")
	if !ok {
		return "", fmt.Errorf("move_path: input needs source and destination lines")
	}
	from := w.resolve(src)
	to := w.resolve(dst)
	if err := w.checkWriteScope(from); err != nil {
		return "", err
	}
	if err := w.checkWriteScope(to); err != nil {
		return "", err
	}
	if autonomy.IsSensitivePath(to) {
		return "", &RefusalError{Gate: "sensitive-path", Reason: to + " is a protected path"}
	}
	if err := os.Rename(from, to); err != nil {
		return "", fmt.Errorf("move_path: %w", err)
	}
	return fmt.Sprintf("moved %s to %s", from, to), nil
}

func (w *Workspace) searchFiles(ctx context.Context, input string) (string, error) {
	rawRoot, pattern, ok := strings.Cut(input, "\n")
	if !ok || strings.TrimSpace(pattern) == "" {
		return "", fmt.Errorf("search_files: input needs root and pattern lines")
	}
	root := w.resolve(rawRoot)
	pattern = strings.TrimSpace(pattern)

	var b strings.Builder
	count := 0
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtrees are skipped, not fatal
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		matched := strings.Contains(d.Name(), pattern)
		if !matched && strings.ContainsAny(pattern, "*?[") {
			matched, _ = path.Match(pattern, d.Name())
		}
		if matched {
			fmt.Fprintf(&b, "%s\n", p)
			count++
			if count >= maxSearchResults {
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search_files: %w", err)
	}
	if count >= maxSearchResults {
		fmt.Fprintf(&b, "[stopped after %d matches]\n", maxSearchResults)
	}
	if count == 0 {
		return "no matches", nil
	}
	return b.String(), nil
}

func (w *Workspace) statPath(_ context.Context, input string) (string, error) {
	p := w.resolve(input)
	info, err := os.Lstat(p)
	if err != nil {
		return "", fmt.Errorf("stat_path: %w", err)
	}
	kind := "file"
	switch {
	case info.IsDir():
		kind = "directory"
	case info.Mode()&fs.ModeSymlink != 0:
		kind = "symlink"
	}
	return fmt.Sprintf("%s\t%s\t%d bytes\t%s\t%s",
		p, kind, info.Size(), info.Mode(), info.ModTime().UTC().Format("2006-01-02 15:04:05")), nil
}

func (w *Workspace) sysInfo(_ context.Context, _ string) (string, error) {
	hostname, _ := os.Hostname()
	wd, _ := os.Getwd()
	stats := w.Auto.Stats()
	return fmt.Sprintf("os: %s/%s\nhost: %s\ncwd: %s\nworkspace: %s\nlevel: %s\nsession calls: %d\nbytes written: %d",
		runtime.GOOS, runtime.GOARCH, hostname, wd, w.Root, w.Auto.Level, stats.SessionCalls, stats.BytesWritten), nil
}
