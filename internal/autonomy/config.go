package autonomy

import "time"

// Config holds one agent session's autonomy settings and its mutable
// runtime counters. Counters are monotonically non-decreasing within a
// session; promptCalls resets per prompt turn, everything else only on
// construction of a new session. The struct carries no internal locking:
// a session is single-threaded, one call at a time, and callers that
// share one across goroutines must serialize access themselves.
type Config struct {
	Level              Level
	ConfirmDestructive bool

	// Hard caps for the whole session. Zero means unlimited.
	SessionWriteLimit int64 // bytes written by write tools
	SessionFileLimit  int   // files created

	// Call-rate caps. Zero means unlimited.
	MaxCallsPerPrompt  int
	MaxCallsPerSession int

	ShellTimeout  time.Duration
	WriteCooldown time.Duration

	bytesWritten  int64
	filesCreated  int
	sessionCalls  int
	promptCalls   int
	lastWrite     time.Time
	sessionLogged bool
}

// DefaultConfig returns a session config at the restrictive observe level
// with conservative quotas.
func DefaultConfig() *Config {
	return &Config{
		Level:              LevelObserve,
		ConfirmDestructive: true,
		SessionWriteLimit:  64 * 1024 * 1024, // 64 MiB
		SessionFileLimit:   512,
		MaxCallsPerPrompt:  50,
		MaxCallsPerSession: 1000,
		ShellTimeout:       120 * time.Second,
		WriteCooldown:      200 * time.Millisecond,
	}
}

// RateCheckTool counts one attempted tool call against both the per-prompt
// and per-session caps. It returns false once either cap is exceeded; a
// false return is a hard stop, not a warning. Counting happens once per
// attempted call, whether or not the call is ultimately allowed.
func (c *Config) RateCheckTool() bool {
	c.promptCalls++
	c.sessionCalls++
	if c.MaxCallsPerPrompt > 0 && c.promptCalls > c.MaxCallsPerPrompt {
		return false
	}
	if c.MaxCallsPerSession > 0 && c.sessionCalls > c.MaxCallsPerSession {
		return false
	}
	return true
}

// RateCheckWrite accumulates n bytes into the session write total and
// returns false once the total exceeds SessionWriteLimit.
func (c *Config) RateCheckWrite(n int64) bool {
	c.bytesWritten += n
	return c.SessionWriteLimit <= 0 || c.bytesWritten <= c.SessionWriteLimit
}

// RateCheckFile counts one created file against SessionFileLimit.
func (c *Config) RateCheckFile() bool {
	c.filesCreated++
	return c.SessionFileLimit <= 0 || c.filesCreated <= c.SessionFileLimit
}

// WriteCooldownCheck enforces the minimum interval between two writes.
// The first write in a session always succeeds. The timestamp advances
// only on success, so a burst of rejected writes does not push the window
// further out.
func (c *Config) WriteCooldownCheck() bool {
	now := time.Now()
	if !c.lastWrite.IsZero() && c.WriteCooldown > 0 && now.Sub(c.lastWrite) < c.WriteCooldown {
		return false
	}
	c.lastWrite = now
	return true
}

// ResetPrompt resets the per-prompt call counter. It must be called at
// the start of each new user turn; skipping it causes cumulative false
// positives across turns.
func (c *Config) ResetPrompt() {
	c.promptCalls = 0
}

// MarkSessionLogged sets the one-time session-logged flag and reports
// whether it was already set.
func (c *Config) MarkSessionLogged() bool {
	was := c.sessionLogged
	c.sessionLogged = true
	return was
}

// Stats is a read-only snapshot of the session counters.
type Stats struct {
	BytesWritten int64
	FilesCreated int
	SessionCalls int
	PromptCalls  int
}

// Stats returns the current counter values.
func (c *Config) Stats() Stats {
	return Stats{
		BytesWritten: c.bytesWritten,
		FilesCreated: c.filesCreated,
		SessionCalls: c.sessionCalls,
		PromptCalls:  c.promptCalls,
	}
}
