package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wardenlabs/warden/internal/autonomy"
	"github.com/wardenlabs/warden/internal/policy"
	"github.com/wardenlabs/warden/internal/sandbox"
)

const (
	// maxShellOutput bounds the captured combined output of one command.
	maxShellOutput = 128 << 10
	// observeShellTimeout caps command runtime at the observe level,
	// where only quick read-only commands are reachable anyway.
	observeShellTimeout = 30 * time.Second
)

// ShellTool runs shell commands through the layered shell gates: the
// autonomy level gate, then the policy engine, then the OS sandbox. The
// command itself runs in a re-executed copy of this binary that confines
// itself before exec'ing /bin/sh.
type ShellTool struct {
	Policy *policy.Engine
	Auto   *autonomy.Config
	// Dir is the working directory for commands, normally the workspace
	// root.
	Dir string
	// WritePaths are the directories the sandboxed command may write.
	WritePaths []string
	// AllowUnsandboxed permits execution on kernels without sandbox
	// support. Off by default: no confinement means no shell.
	AllowUnsandboxed bool
	// Approver resolves prompt-level decisions. When nil, prompts
	// proceed and are recorded in the audit trail for later review.
	Approver func(command, reason string) bool
	Logger   *slog.Logger

	// newCommand builds the confined child process. Overridable in
	// tests to run without the re-exec helper.
	newCommand func(ctx context.Context, command string) (*exec.Cmd, error)
}

// Register registers the shell tool.
func (s *ShellTool) Register(reg *Registry) {
	reg.Register(Tool{
		Name:        "shell",
		Description: "run a shell command in the sandbox; input: the command",
		Handler:     s.run,
	})
}

func (s *ShellTool) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default().With("component", "shell")
}

// approve resolves a prompt-level decision. Without an approver the
// call proceeds; the audit trail already carries the reason.
func (s *ShellTool) approve(command, reason string) error {
	if s.Approver != nil {
		if !s.Approver(command, reason) {
			return &RefusalError{Gate: "approval", Reason: "approval declined: " + reason}
		}
		return nil
	}
	s.logger().Warn("proceeding without interactive approval", "command", command, "reason", reason)
	return nil
}

func (s *ShellTool) run(ctx context.Context, input string) (string, error) {
	command := strings.TrimSpace(input)
	if command == "" {
		return "", fmt.Errorf("shell: empty command")
	}

	decision, reason := s.Auto.CheckShell(command)
	switch decision {
	case autonomy.ShellDeny:
		return "", &RefusalError{Gate: "autonomy", Reason: reason}
	case autonomy.ShellPrompt:
		if err := s.approve(command, reason); err != nil {
			return "", err
		}
	}

	res := s.Policy.Evaluate(command)
	switch res.Decision {
	case policy.Forbidden:
		return "", &RefusalError{Gate: "policy", Reason: res.Reason}
	case policy.Prompt:
		// ConfirmDestructive=false waives approval for policy prompts;
		// autonomy-level prompts above always go through.
		if s.Auto.ConfirmDestructive {
			if err := s.approve(command, res.Reason); err != nil {
				return "", err
			}
		} else {
			s.logger().Info("destructive confirmation waived", "command", command, "reason", res.Reason)
		}
	}

	if !sandbox.Supported() && !s.AllowUnsandboxed {
		return "", &RefusalError{Gate: "sandbox",
			Reason: "kernel lacks sandbox support and unsandboxed execution is disabled"}
	}

	timeout := s.Auto.ShellTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if s.Auto.Level <= autonomy.LevelObserve && timeout > observeShellTimeout {
		timeout = observeShellTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	build := s.newCommand
	if build == nil {
		build = s.confinedCommand
	}
	cmd, err := build(ctx, command)
	if err != nil {
		return "", fmt.Errorf("shell: %w", err)
	}
	return s.runCapped(ctx, cmd, timeout)
}

// confinedCommand re-executes this binary's hidden sandbox-exec
// subcommand, which applies the sandbox to itself and then execs the
// command under /bin/sh.
func (s *ShellTool) confinedCommand(ctx context.Context, command string) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate own binary: %w", err)
	}
	args := []string{"sandbox-exec"}
	for _, p := range s.WritePaths {
		args = append(args, "-w", p)
	}
	if s.AllowUnsandboxed {
		args = append(args, "-u")
	}
	args = append(args, "--", command)
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = s.Dir
	return cmd, nil
}

// runCapped starts the command with stdout and stderr joined on a single
// pipe, drains it into a capped buffer, and reports truncation with the
// full byte count so the caller can narrow the command instead of
// re-running it blind.
func (s *ShellTool) runCapped(ctx context.Context, cmd *exec.Cmd, timeout time.Duration) (string, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return "", fmt.Errorf("shell: pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return "", fmt.Errorf("shell: start: %w", err)
	}
	pw.Close() // child holds the write end now

	var buf bytes.Buffer
	var total int64
	g := new(errgroup.Group)
	g.Go(func() error {
		defer pr.Close()
		chunk := make([]byte, 32<<10)
		for {
			n, err := pr.Read(chunk)
			if n > 0 {
				total += int64(n)
				if room := maxShellOutput - buf.Len(); room > 0 {
					if n > room {
						n = room
					}
					buf.Write(chunk[:n])
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
		}
	})

	drainErr := g.Wait()
	waitErr := cmd.Wait()

	out := buf.String()
	if total > int64(len(out)) {
		out += fmt.Sprintf("\n[output truncated: showing %d of %d bytes; narrow with grep or head]",
			len(out), total)
	}
	if drainErr != nil {
		return out, fmt.Errorf("shell: read output: %w", drainErr)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return out, fmt.Errorf("shell: command timed out after %s", timeout)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			// The command ran and reported failure. That is a domain
			// error, distinct from a gate refusal; the captured output
			// travels with it.
			out += fmt.Sprintf("\n[exit status %d]", exitErr.ExitCode())
			return out, fmt.Errorf("shell: %w", waitErr)
		}
		return out, fmt.Errorf("shell: %w", waitErr)
	}
	return out, nil
}
