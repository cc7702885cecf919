package sandbox

import "log/slog"

// Status reports the outcome of one confinement mechanism.
type Status int

const (
	// StatusUnsupported means the running kernel lacks the mechanism.
	// This is a degradation, not a failure.
	StatusUnsupported Status = iota
	// StatusApplied means the mechanism is active on the process.
	StatusApplied
	// StatusFailed means the kernel supports the mechanism but setup
	// failed. Callers must never run unconfined after this silently.
	StatusFailed
)

// String returns the string representation of a Status.
func (s Status) String() string {
	switch s {
	case StatusUnsupported:
		return "unsupported"
	case StatusApplied:
		return "applied"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Options configures sandbox application.
type Options struct {
	// WritePaths are the only roots granted write/create/delete rights
	// by the filesystem ruleset. Read and traverse rights cover the
	// whole filesystem regardless.
	WritePaths []string

	Logger *slog.Logger
}

// Result reports the per-mechanism outcome of Apply.
type Result struct {
	Filesystem Status
	Syscalls   Status
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger.With("component", "sandbox")
}
