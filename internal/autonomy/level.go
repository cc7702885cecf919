// Package autonomy implements the capability-level state machine that
// gates tool categories, shell-command categories, and session quotas for
// an agent session.
package autonomy

import "strings"

// Level is the agent's permission tier. Levels are totally ordered; higher
// levels widen the agent's trust radius.
type Level int

const (
	// LevelNone permits nothing.
	LevelNone Level = iota
	// LevelObserve permits read-only tools and a fixed read-only command set.
	LevelObserve
	// LevelWorkspace permits writes inside the workspace, default-deny for
	// unrecognized shell commands.
	LevelWorkspace
	// LevelHome widens the write scope and defaults unrecognized shell
	// commands to prompt instead of deny.
	LevelHome
	// LevelFull permits everything the policy engine does not forbid.
	LevelFull
)

// String returns the configuration name of the level.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelObserve:
		return "observe"
	case LevelWorkspace:
		return "workspace"
	case LevelHome:
		return "home"
	case LevelFull:
		return "full"
	default:
		return "unknown"
	}
}

// ParseLevel maps a case-insensitive configuration string to a Level.
// Unrecognized strings fail toward the more restrictive observe level,
// never toward full.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return LevelNone
	case "observe":
		return LevelObserve
	case "workspace":
		return LevelWorkspace
	case "home":
		return LevelHome
	case "full":
		return LevelFull
	default:
		return LevelObserve
	}
}
