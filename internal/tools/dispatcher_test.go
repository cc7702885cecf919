package tools

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wardenlabs/warden/internal/audit"
	"github.com/wardenlabs/warden/internal/autonomy"
	"github.com/wardenlabs/warden/internal/policy"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// directShell bypasses the re-exec sandbox helper so shell tests run the
// command straight under /bin/sh.
func directShell(ctx context.Context, command string) (*exec.Cmd, error) {
	return exec.CommandContext(ctx, "/bin/sh", "-c", command), nil
}

type testEnv struct {
	disp  *Dispatcher
	auto  *autonomy.Config
	trail *audit.Store
	root  string
}

func newTestEnv(t *testing.T, level autonomy.Level) *testEnv {
	t.Helper()
	auto := autonomy.DefaultConfig()
	auto.Level = level
	auto.WriteCooldown = 0

	trail, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"), discardLogger())
	if err != nil {
		t.Fatalf("audit.Open: %v", err)
	}
	t.Cleanup(func() { trail.Close() })

	root := t.TempDir()
	reg := NewRegistry()
	ws := &Workspace{Root: root, Auto: auto, Logger: discardLogger()}
	ws.RegisterAll(reg)
	sh := &ShellTool{
		Policy:           policy.NewEngine(),
		Auto:             auto,
		Dir:              root,
		AllowUnsandboxed: true,
		Logger:           discardLogger(),
		newCommand:       directShell,
	}
	sh.Register(reg)

	return &testEnv{
		disp:  NewDispatcher(reg, auto, trail, nil, discardLogger()),
		auto:  auto,
		trail: trail,
		root:  root,
	}
}

func wantRefusal(t *testing.T, err error, gate string) *RefusalError {
	t.Helper()
	var ref *RefusalError
	if !errors.As(err, &ref) {
		t.Fatalf("expected a refusal, got %v", err)
	}
	if ref.Gate != gate {
		t.Fatalf("expected gate %q, got %q (%s)", gate, ref.Gate, ref.Reason)
	}
	return ref
}

func lastEntry(t *testing.T, env *testEnv) audit.Entry {
	t.Helper()
	entries, err := env.trail.Entries(context.Background(), env.trail.SessionID())
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("audit trail is empty")
	}
	return entries[len(entries)-1]
}

func TestStructuralValidation(t *testing.T) {
	env := newTestEnv(t, autonomy.LevelFull)
	ctx := context.Background()

	_, err := env.disp.Execute(ctx, strings.Repeat("n", maxToolNameLen+1), "x")
	wantRefusal(t, err, "structural")

	_, err = env.disp.Execute(ctx, "", "x")
	wantRefusal(t, err, "structural")

	_, err = env.disp.Execute(ctx, "read_file", strings.Repeat("x", maxInputBytes+1))
	wantRefusal(t, err, "structural")
}

func TestUnknownTool(t *testing.T) {
	env := newTestEnv(t, autonomy.LevelFull)
	_, err := env.disp.Execute(context.Background(), "teleport", "x")
	wantRefusal(t, err, "registry")
	// Structural rejections are not security events and stay out of the
	// audit trail.
	entries, err := env.trail.Entries(context.Background(), env.trail.SessionID())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("structural rejection should not be audited, got %d entries", len(entries))
	}
}

func TestObserveBlocksWriteTools(t *testing.T) {
	env := newTestEnv(t, autonomy.LevelObserve)
	_, err := env.disp.Execute(context.Background(), "write_file", "a.txt\nhello")
	wantRefusal(t, err, "autonomy")
}

func TestNoneBlocksEverything(t *testing.T) {
	env := newTestEnv(t, autonomy.LevelNone)
	_, err := env.disp.Execute(context.Background(), "read_file", "a.txt")
	wantRefusal(t, err, "autonomy")
}

func TestRateLimitCountsEveryAttempt(t *testing.T) {
	env := newTestEnv(t, autonomy.LevelFull)
	env.auto.MaxCallsPerPrompt = 2
	ctx := context.Background()

	env.disp.Execute(ctx, "sys_info", "")
	// Refused by a later gate, but the attempt is still charged.
	env.disp.Execute(ctx, "write_file", "/etc/shadow\nx")
	_, err := env.disp.Execute(ctx, "sys_info", "")
	wantRefusal(t, err, "rate")

	env.disp.ResetPrompt()
	if _, err := env.disp.Execute(ctx, "sys_info", ""); err != nil {
		t.Fatalf("call after prompt reset should pass: %v", err)
	}
}

func TestWriteCooldown(t *testing.T) {
	env := newTestEnv(t, autonomy.LevelWorkspace)
	env.auto.WriteCooldown = time.Minute
	ctx := context.Background()

	if _, err := env.disp.Execute(ctx, "write_file", "a.txt\none"); err != nil {
		t.Fatalf("first write should pass: %v", err)
	}
	_, err := env.disp.Execute(ctx, "write_file", "b.txt\ntwo")
	wantRefusal(t, err, "cooldown")
}

// A protected path is refused at every level, including full. The
// sensitive-path gate sits above the autonomy level on purpose.
func TestSensitivePathBlockedAtEveryLevel(t *testing.T) {
	for _, level := range []autonomy.Level{
		autonomy.LevelObserve, autonomy.LevelWorkspace, autonomy.LevelHome, autonomy.LevelFull,
	} {
		env := newTestEnv(t, level)
		_, err := env.disp.Execute(context.Background(), "write_file", "/etc/shadow\npwned")
		var ref *RefusalError
		if !errors.As(err, &ref) {
			t.Fatalf("level %s: expected a refusal, got %v", level, err)
		}
		// Below workspace the autonomy gate fires first; from workspace
		// up it must be the sensitive-path gate doing the blocking.
		if level >= autonomy.LevelWorkspace && ref.Gate != "sensitive-path" {
			t.Errorf("level %s: expected sensitive-path gate, got %s", level, ref.Gate)
		}
		if e := lastEntry(t, env); e.Outcome != audit.OutcomeBlocked {
			t.Errorf("level %s: refusal not audited", level)
		}
	}
}

// An escalating command at workspace level is stopped by the autonomy
// shell gate before the policy engine or sandbox are consulted.
func TestWorkspaceShellBlocksEscalation(t *testing.T) {
	env := newTestEnv(t, autonomy.LevelWorkspace)
	_, err := env.disp.Execute(context.Background(), "shell", "sudo reboot")
	ref := wantRefusal(t, err, "autonomy")
	if !strings.Contains(ref.Reason, "privilege escalation") {
		t.Errorf("reason should name the escalation check, got %q", ref.Reason)
	}
	if e := lastEntry(t, env); e.Gate != "autonomy" {
		t.Errorf("audit should record the autonomy gate, got %q", e.Gate)
	}
}

// Even full autonomy does not bypass the policy engine: a forbidden
// command is refused inside the shell tool.
func TestFullAutonomyStillForbidsDestructiveCommands(t *testing.T) {
	env := newTestEnv(t, autonomy.LevelFull)
	_, err := env.disp.Execute(context.Background(), "shell", "rm -rf /")
	ref := wantRefusal(t, err, "policy")
	if ref.Reason == "" {
		t.Error("policy refusal should carry a reason")
	}
	if e := lastEntry(t, env); e.Outcome != audit.OutcomeBlocked || e.Gate != "policy" {
		t.Errorf("policy refusal not audited: %+v", e)
	}
}

func TestDispatchIsAuditedBeforeHandler(t *testing.T) {
	env := newTestEnv(t, autonomy.LevelFull)
	if _, err := env.disp.Execute(context.Background(), "sys_info", ""); err != nil {
		t.Fatal(err)
	}
	e := lastEntry(t, env)
	if e.Tool != "sys_info" || e.Outcome != audit.OutcomeAllowed {
		t.Errorf("allowed dispatch not audited: %+v", e)
	}
}

// A command that runs and fails surfaces as an error with its captured
// output attached, never as a silent success or a refusal.
func TestShellFailurePropagatesOutput(t *testing.T) {
	env := newTestEnv(t, autonomy.LevelFull)
	out, err := env.disp.Execute(context.Background(), "shell", "echo boom; exit 7")
	if err == nil {
		t.Fatal("failed command must surface as an error")
	}
	var ref *RefusalError
	if errors.As(err, &ref) {
		t.Fatalf("command failure must not be a refusal: %v", err)
	}
	if !strings.Contains(out, "boom") || !strings.Contains(out, "[exit status 7]") {
		t.Errorf("partial output lost: %q", out)
	}
	if e := lastEntry(t, env); e.Outcome != audit.OutcomeError {
		t.Errorf("command failure should audit as error, got %+v", e)
	}
}

func TestHandlerErrorIsAudited(t *testing.T) {
	env := newTestEnv(t, autonomy.LevelFull)
	_, err := env.disp.Execute(context.Background(), "read_file", "does-not-exist.txt")
	if err == nil {
		t.Fatal("reading a missing file should fail")
	}
	if e := lastEntry(t, env); e.Outcome != audit.OutcomeError {
		t.Errorf("handler error not audited: %+v", e)
	}
}
