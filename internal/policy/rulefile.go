package policy

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadFile extends the rule table from a user-supplied rule file. The
// format is one rule per line: "decision: prefix1 prefix2 ...", with
// decision one of allow, prompt, forbidden. Blank lines and lines starting
// with '#' are ignored. Loading is additive and never removes existing
// rules; use Reset to return to the defaults.
func (e *Engine) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open rule file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rule, err := parseRuleLine(line)
		if err != nil {
			return fmt.Errorf("rule file %s:%d: %w", path, lineNo, err)
		}
		e.rules = append(e.rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read rule file: %w", err)
	}
	return nil
}

// parseRuleLine parses a single "decision: prefixes" line.
func parseRuleLine(line string) (Rule, error) {
	decisionStr, rest, found := strings.Cut(line, ":")
	if !found {
		return Rule{}, fmt.Errorf("missing ':' separator")
	}

	var decision Decision
	switch strings.ToLower(strings.TrimSpace(decisionStr)) {
	case "allow":
		decision = Allow
	case "prompt":
		decision = Prompt
	case "forbidden":
		decision = Forbidden
	default:
		return Rule{}, fmt.Errorf("unknown decision %q", strings.TrimSpace(decisionStr))
	}

	prefixes := strings.Fields(rest)
	if len(prefixes) == 0 {
		return Rule{}, fmt.Errorf("no prefixes")
	}

	return Rule{
		Prefixes: prefixes,
		Decision: decision,
		Reason:   fmt.Sprintf("user rule (%s)", decision),
	}, nil
}
