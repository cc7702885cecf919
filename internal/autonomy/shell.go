package autonomy

import "strings"

// ShellDecision is the outcome of gating a raw shell command.
type ShellDecision int

const (
	// ShellDeny refuses the command outright.
	ShellDeny ShellDecision = iota
	// ShellPrompt requires human approval before the command runs.
	ShellPrompt
	// ShellAllow permits the command (the policy engine still applies).
	ShellAllow
)

// String returns the string representation of a ShellDecision.
func (d ShellDecision) String() string {
	switch d {
	case ShellDeny:
		return "deny"
	case ShellPrompt:
		return "prompt"
	case ShellAllow:
		return "allow"
	default:
		return "unknown"
	}
}

// observeTools is the fixed allowlist of tool names reachable at the
// observe level: filesystem read tools, info/query tools, and the shell
// tool (which CheckShell restricts further).
var observeTools = map[string]bool{
	"read_file":    true,
	"list_dir":     true,
	"search_files": true,
	"stat_path":    true,
	"sys_info":     true,
	"shell":        true,
}

// CheckTool reports whether a tool category is reachable at the current
// level. At workspace and above, all tools pass here; finer restriction
// happens at the shell-command and path level.
func (c *Config) CheckTool(name string, isWrite bool) bool {
	switch c.Level {
	case LevelNone:
		return false
	case LevelObserve:
		if isWrite {
			return false
		}
		return observeTools[name]
	default:
		return true
	}
}

// readOnlyCommands is the fixed allowlist of read-only shell commands
// reachable at the observe level: listing, searching, process/network
// inspection, read-only git, and package queries. Multi-word entries are
// matched as literal command prefixes; never install or remove.
var readOnlyCommands = []string{
	"ls", "cat", "head", "tail", "less", "file", "stat", "wc", "grep",
	"rg", "find", "tree", "du", "df", "pwd", "realpath", "readlink",
	"ps", "top", "free", "uptime", "uname", "whoami", "id", "hostname",
	"date", "env", "printenv", "which", "lsof", "ss", "netstat",
	"ip addr", "ip route",
	"git status", "git log", "git diff", "git show", "git branch",
	"apt list", "apt show", "dpkg -l", "dnf list", "rpm -q",
	"pip list", "pip show", "npm list",
}

// workspaceWriteCommands are additionally reachable at workspace level.
var workspaceWriteCommands = []string{
	"mkdir", "cp", "mv", "touch", "tee", "echo",
}

// backgroundingTokens indicate backgrounding or persistence anywhere in
// the command string.
var backgroundingTokens = []string{"&", "nohup", "disown", "screen", "tmux"}

// escalationCommands grant or change privileges.
var escalationCommands = []string{"su", "sudo", "chown", "setcap"}

// networkEgressCommands move data off the host.
var networkEgressCommands = []string{"curl", "wget", "scp", "ssh", "nc"}

// interactiveShellCommands open an interpreter the gate cannot see into.
var interactiveShellCommands = []string{"bash", "sh -i", "python", "perl", "ruby"}

// shellBoundary are the characters that may follow a single-word command
// rule: end-of-string, whitespace, or a shell metacharacter. A rule for
// "cat" must not match a command beginning "catalog".
const shellBoundary = " \t|&;><("

// matchesCommand reports whether the command matches rule, anchored at a
// token boundary for single-word rules and as a literal prefix for
// multi-word rules.
func matchesCommand(cmd, rule string) bool {
	if !strings.HasPrefix(cmd, rule) {
		return false
	}
	if strings.ContainsRune(rule, ' ') {
		return true
	}
	if len(cmd) == len(rule) {
		return true
	}
	return strings.ContainsRune(shellBoundary, rune(cmd[len(rule)]))
}

func matchesAny(cmd string, rules []string) (string, bool) {
	for _, r := range rules {
		if matchesCommand(cmd, r) {
			return r, true
		}
	}
	return "", false
}

// isSetuidChmod reports whether the command is a chmod invocation that
// sets a setuid/setgid bit.
func isSetuidChmod(cmd string) bool {
	return matchesCommand(cmd, "chmod") && strings.Contains(cmd, "+s")
}

// CheckShell gates a raw shell command at the current autonomy level.
// Shell commands are unstructured text, so the checks anchor at token
// boundaries rather than trusting substring hits. The returned reason
// names the check that decided.
func (c *Config) CheckShell(command string) (ShellDecision, string) {
	cmd := strings.TrimSpace(command)

	switch c.Level {
	case LevelNone:
		return ShellDeny, "autonomy level none denies all shell commands"

	case LevelObserve:
		if rule, ok := matchesAny(cmd, readOnlyCommands); ok {
			return ShellAllow, "read-only command (" + rule + ")"
		}
		return ShellDeny, "not in the observe read-only allowlist"

	case LevelWorkspace, LevelHome:
		for _, tok := range backgroundingTokens {
			if strings.Contains(cmd, tok) {
				return ShellDeny, "backgrounding/persistence token " + tok
			}
		}
		if rule, ok := matchesAny(cmd, escalationCommands); ok {
			return ShellDeny, "privilege escalation (" + rule + ")"
		}
		if isSetuidChmod(cmd) {
			return ShellDeny, "privilege escalation (chmod +s)"
		}
		if c.Level == LevelWorkspace {
			if rule, ok := matchesAny(cmd, networkEgressCommands); ok {
				return ShellDeny, "network egress (" + rule + ")"
			}
			if rule, ok := matchesAny(cmd, interactiveShellCommands); ok {
				return ShellDeny, "interactive interpreter (" + rule + ")"
			}
		}
		if rule, ok := matchesAny(cmd, readOnlyCommands); ok {
			return ShellAllow, "read-only command (" + rule + ")"
		}
		if rule, ok := matchesAny(cmd, workspaceWriteCommands); ok {
			return ShellAllow, "workspace write command (" + rule + ")"
		}
		if c.Level == LevelWorkspace {
			// Workspace runs unattended: unrecognized commands are
			// refused, not escalated.
			return ShellDeny, "not recognized; workspace level is default-deny"
		}
		// Home assumes a human is available to approve ambiguity.
		return ShellPrompt, "not recognized; requires approval at home level"

	case LevelFull:
		return ShellAllow, "full autonomy"

	default:
		return ShellDeny, "unknown autonomy level"
	}
}
