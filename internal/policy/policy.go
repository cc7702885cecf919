// Package policy classifies raw shell command strings into allow, prompt,
// or forbidden decisions using literal prefix rules. It is independent of
// the autonomy level: both gates must pass before a command runs.
package policy

import (
	"strings"
)

// Decision is the classification outcome for a command.
type Decision int

const (
	// Allow means the command may run without approval.
	Allow Decision = iota
	// Prompt means the command requires human approval.
	Prompt
	// Forbidden means the command must never run.
	Forbidden
)

// String returns the string representation of a Decision.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Prompt:
		return "prompt"
	case Forbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// stricter reports whether a is a stricter decision than b.
// Forbidden > Prompt > Allow.
func stricter(a, b Decision) bool {
	return a > b
}

// Rule groups a set of literal command prefixes under one decision.
type Rule struct {
	Prefixes []string
	Decision Decision
	Reason   string
}

// Result is the outcome of evaluating a single command. It is immutable
// and safe to discard.
type Result struct {
	Decision Decision
	Reason   string
	// Matched is the rule prefix that produced the decision, empty when
	// the default applied.
	Matched string
}

// Engine holds the loaded rule table. The table is read-only after
// initialization and may be shared across calls.
type Engine struct {
	rules []Rule
}

// NewEngine returns an engine loaded with the compiled-in default rules.
func NewEngine() *Engine {
	return &Engine{rules: defaultRules()}
}

// Reset clears the rule table back to the compiled-in defaults.
func (e *Engine) Reset() {
	e.rules = defaultRules()
}

// Rules returns a snapshot of the loaded rules.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// boundaryChars are the characters that may legally follow a single-word
// prefix match. Without this guard a rule for "cat" would match "catalog".
const boundaryChars = " \t|&;><("

// matchPrefix reports whether prefix matches cmd, and the matched length.
// Single-word prefixes must be followed by end-of-string, whitespace, or a
// shell metacharacter. Multi-word prefixes (containing a space) are matched
// as literal substrings anywhere in the command.
func matchPrefix(cmd, prefix string) (int, bool) {
	if prefix == "" {
		return 0, false
	}
	if strings.ContainsRune(prefix, ' ') {
		if strings.Contains(cmd, prefix) {
			return len(prefix), true
		}
		return 0, false
	}
	if !strings.HasPrefix(cmd, prefix) {
		return 0, false
	}
	if len(cmd) == len(prefix) {
		return len(prefix), true
	}
	if strings.ContainsRune(boundaryChars, rune(cmd[len(prefix)])) {
		return len(prefix), true
	}
	return 0, false
}

// Evaluate classifies a command. Unclassified commands never silently
// pass: the default is Prompt. Among matching rules the longest matched
// prefix wins; ties resolve toward the stricter decision.
func (e *Engine) Evaluate(command string) Result {
	cmd := strings.TrimSpace(command)
	best := Result{
		Decision: Prompt,
		Reason:   "unknown command — requires approval",
	}
	bestLen := -1

	for _, rule := range e.rules {
		for _, prefix := range rule.Prefixes {
			n, ok := matchPrefix(cmd, prefix)
			if !ok {
				continue
			}
			if n > bestLen || (n == bestLen && stricter(rule.Decision, best.Decision)) {
				best = Result{Decision: rule.Decision, Reason: rule.Reason, Matched: prefix}
				bestLen = n
			}
		}
	}
	return best
}
