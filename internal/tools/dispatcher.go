package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wardenlabs/warden/internal/audit"
	"github.com/wardenlabs/warden/internal/autonomy"
	"github.com/wardenlabs/warden/internal/redact"
)

const (
	// maxToolNameLen bounds tool names at the dispatch boundary.
	maxToolNameLen = 64
	// maxInputBytes bounds tool input at the dispatch boundary.
	maxInputBytes = 256 << 10
)

// RefusalError reports that a named gate refused a call. Refusals are
// expected control flow, not failures; callers distinguish them from
// handler errors with errors.As.
type RefusalError struct {
	Gate   string
	Reason string
}

func (e *RefusalError) Error() string {
	return fmt.Sprintf("refused by %s gate: %s", e.Gate, e.Reason)
}

// Dispatcher routes tool calls through the safety gates in a fixed
// order: structural validation, registry lookup, autonomy level, call
// rate, sensitive paths, write cooldown, audit, handler, redaction. The
// ordering is load-bearing: cheap structural checks run before counters
// are charged, the audit entry lands before the handler can have any
// effect, and redaction is the last thing to touch output.
type Dispatcher struct {
	reg      *Registry
	auto     *autonomy.Config
	trail    *audit.Store
	redactor redact.Redactor
	logger   *slog.Logger
}

// NewDispatcher wires a dispatcher. A nil redactor defaults to
// pass-through.
func NewDispatcher(reg *Registry, auto *autonomy.Config, trail *audit.Store, redactor redact.Redactor, logger *slog.Logger) *Dispatcher {
	if redactor == nil {
		redactor = redact.Passthrough{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		reg:      reg,
		auto:     auto,
		trail:    trail,
		redactor: redactor,
		logger:   logger.With("component", "dispatcher"),
	}
}

// Execute runs one tool call through the gates.
func (d *Dispatcher) Execute(ctx context.Context, name, input string) (string, error) {
	level := d.auto.Level.String()
	block := func(gate, reason string) (string, error) {
		d.record(audit.Entry{
			Tool: name, Input: input, Level: level,
			Outcome: audit.OutcomeBlocked, Gate: gate, Reason: reason,
		})
		return "", &RefusalError{Gate: gate, Reason: reason}
	}

	// Structural refusals are resource-exhaustion guards, not security
	// events: they log at debug and stay out of the audit trail.
	structural := func(gate, reason string) (string, error) {
		d.logger.Debug("tool call rejected", "tool", name, "gate", gate, "reason", reason)
		return "", &RefusalError{Gate: gate, Reason: reason}
	}

	if name == "" || len(name) > maxToolNameLen {
		return structural("structural", fmt.Sprintf("tool name length %d outside 1..%d", len(name), maxToolNameLen))
	}
	if len(input) > maxInputBytes {
		return structural("structural", fmt.Sprintf("input of %d bytes exceeds the %d byte limit", len(input), maxInputBytes))
	}

	tool, ok := d.reg.Lookup(name)
	if !ok {
		return structural("registry", "unknown tool "+name)
	}

	if !d.auto.MarkSessionLogged() {
		d.logger.Info("session active", "level", level)
	}

	if !d.auto.CheckTool(name, tool.Write) {
		return block("autonomy", fmt.Sprintf("tool %s is not reachable at level %s", name, level))
	}

	// Every attempt is charged, including ones later gates refuse.
	if !d.auto.RateCheckTool() {
		return block("rate", "call budget exhausted")
	}

	// The first input line is the path argument for every built-in that
	// takes one. Protected paths are off limits at every level.
	first, _, _ := strings.Cut(input, "\n")
	first = strings.TrimSpace(first)
	if autonomy.LooksLikePath(first) && autonomy.IsSensitivePath(first) {
		return block("sensitive-path", first+" is a protected path")
	}

	if tool.Write && !d.auto.WriteCooldownCheck() {
		return block("cooldown", "writes are rate limited; retry shortly")
	}

	// The dispatch is recorded before the handler runs so even a crash
	// mid-handler leaves a trace.
	d.record(audit.Entry{
		Tool: name, Input: input, Level: level, Outcome: audit.OutcomeAllowed,
	})

	out, err := tool.Handler(ctx, input)
	if err != nil {
		var ref *RefusalError
		if errors.As(err, &ref) {
			d.record(audit.Entry{
				Tool: name, Input: input, Level: level,
				Outcome: audit.OutcomeBlocked, Gate: ref.Gate, Reason: ref.Reason,
			})
		} else {
			d.record(audit.Entry{
				Tool: name, Input: input, Level: level,
				Outcome: audit.OutcomeError, Reason: err.Error(),
			})
		}
		// Domain errors can carry partial output (a failed command's
		// captured streams); it is redacted like any other output.
		return d.redactor.Redact(out), err
	}
	return d.redactor.Redact(out), nil
}

// ResetPrompt starts a new prompt turn, resetting the per-prompt call
// budget.
func (d *Dispatcher) ResetPrompt() { d.auto.ResetPrompt() }

func (d *Dispatcher) record(e audit.Entry) {
	if d.trail == nil {
		return
	}
	if err := d.trail.Record(e); err != nil {
		d.logger.Error("audit record failed", "tool", e.Tool, "error", err)
	}
}
