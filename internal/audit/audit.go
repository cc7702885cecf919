// Package audit records every gate decision and dispatch in an
// append-only, tamper-evident trail. Entries are mirrored to structured
// logging (the external log collaborator) and persisted in sqlite; each
// entry carries a blake2b hash chained to its predecessor so after-the-fact
// edits to the trail are detectable, and a session head can be signed with
// an Ed25519 key.
package audit

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/crypto/blake2b"
	_ "modernc.org/sqlite"
)

// Outcome categorizes an audit entry.
type Outcome string

const (
	// OutcomeAllowed records a dispatch that passed every gate.
	OutcomeAllowed Outcome = "allowed"
	// OutcomeBlocked records a refusal by a named gate.
	OutcomeBlocked Outcome = "blocked"
	// OutcomeError records a handler that ran and reported failure.
	OutcomeError Outcome = "error"
)

// Entry is one audited decision.
type Entry struct {
	ID        string
	SessionID string
	Time      time.Time
	Tool      string
	Input     string // truncated view of the tool input
	Level     string // autonomy level at decision time
	Outcome   Outcome
	Gate      string // blocking gate name, empty for allowed entries
	Reason    string
	PrevHash  string
	Hash      string
}

// maxInputPreview bounds the input excerpt stored per entry.
const maxInputPreview = 256

// Store is the persistent audit trail for one process. It serializes
// writes internally so the hash chain stays linear.
type Store struct {
	db        *sql.DB
	logger    *slog.Logger
	sessionID string

	mu       sync.Mutex
	lastHash string

	cron *cron.Cron
}

// Open creates or opens the audit database and starts a new session.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: wal mode: %w", err)
	}

	s := &Store{
		db:        db,
		logger:    logger.With("component", "audit"),
		sessionID: uuid.NewString(),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS audit_log (
		id         TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		ts         INTEGER NOT NULL,
		tool       TEXT NOT NULL,
		input      TEXT NOT NULL,
		level      TEXT NOT NULL,
		outcome    TEXT NOT NULL,
		gate       TEXT NOT NULL DEFAULT '',
		reason     TEXT NOT NULL DEFAULT '',
		prev_hash  TEXT NOT NULL,
		hash       TEXT NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_session ON audit_log(session_id, ts)`)
	return err
}

// SessionID returns the identifier of the current session.
func (s *Store) SessionID() string { return s.sessionID }

// Record appends an entry to the trail and mirrors it to the logger.
// Blocked entries log at Warn so refusals are discoverable in isolation
// from normal activity.
func (s *Store) Record(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = uuid.NewString()
	e.SessionID = s.sessionID
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}
	if len(e.Input) > maxInputPreview {
		e.Input = e.Input[:maxInputPreview]
	}
	e.PrevHash = s.lastHash
	e.Hash = chainHash(e)

	_, err := s.db.Exec(
		`INSERT INTO audit_log (id, session_id, ts, tool, input, level, outcome, gate, reason, prev_hash, hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Time.UnixNano(), e.Tool, e.Input, e.Level,
		string(e.Outcome), e.Gate, e.Reason, e.PrevHash, e.Hash,
	)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	s.lastHash = e.Hash

	attrs := []any{
		"tool", e.Tool,
		"level", e.Level,
		"outcome", string(e.Outcome),
		"input", e.Input,
	}
	if e.Outcome == OutcomeBlocked {
		s.logger.Warn("tool call blocked", append(attrs, "gate", e.Gate, "reason", e.Reason)...)
	} else {
		s.logger.Info("tool call", attrs...)
	}
	return nil
}

// chainHash computes the entry hash over its predecessor's hash and the
// entry's identifying fields.
func chainHash(e Entry) string {
	h, _ := blake2b.New256(nil)
	fmt.Fprintf(h, "%s|%s|%d|%s|%s|%s|%s|%s|%s",
		e.PrevHash, e.SessionID, e.Time.UnixNano(), e.Tool, e.Input,
		e.Level, e.Outcome, e.Gate, e.Reason)
	return hex.EncodeToString(h.Sum(nil))
}

// Entries returns the entries of the given session in insertion order.
func (s *Store) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, ts, tool, input, level, outcome, gate, reason, prev_hash, hash
		 FROM audit_log WHERE session_id = ? ORDER BY ts, id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var outcome string
		if err := rows.Scan(&e.ID, &e.SessionID, &ts, &e.Tool, &e.Input, &e.Level,
			&outcome, &e.Gate, &e.Reason, &e.PrevHash, &e.Hash); err != nil {
			return nil, err
		}
		e.Time = time.Unix(0, ts).UTC()
		e.Outcome = Outcome(outcome)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sessions returns the distinct session IDs present in the trail,
// oldest first.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM audit_log GROUP BY session_id ORDER BY MIN(ts)`)
	if err != nil {
		return nil, fmt.Errorf("audit: sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// VerifyChain recomputes the hash chain of a session and reports whether
// it is intact.
func (s *Store) VerifyChain(ctx context.Context, sessionID string) (bool, error) {
	entries, err := s.Entries(ctx, sessionID)
	if err != nil {
		return false, err
	}
	prev := ""
	for _, e := range entries {
		if e.PrevHash != prev {
			return false, nil
		}
		if chainHash(e) != e.Hash {
			return false, nil
		}
		prev = e.Hash
	}
	return true, nil
}

// SignHead signs the current chain head with the given key, binding the
// whole session trail to the key holder.
func (s *Store) SignHead(key ed25519.PrivateKey) ([]byte, error) {
	s.mu.Lock()
	head := s.lastHash
	s.mu.Unlock()
	if head == "" {
		return nil, fmt.Errorf("audit: no entries to sign")
	}
	return ed25519.Sign(key, []byte(head)), nil
}

// VerifyHead verifies a head signature produced by SignHead.
func VerifyHead(pub ed25519.PublicKey, head string, sig []byte) bool {
	return ed25519.Verify(pub, []byte(head), sig)
}

// Head returns the current chain head hash.
func (s *Store) Head() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHash
}

// StartRetention schedules periodic pruning of entries older than maxAge.
// The schedule is a cron expression, e.g. "@daily".
func (s *Store) StartRetention(schedule string, maxAge time.Duration) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := s.Prune(maxAge); err != nil {
			s.logger.Warn("retention prune failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("audit: retention schedule: %w", err)
	}
	c.Start()
	s.cron = c
	return nil
}

// Prune deletes entries older than maxAge. Pruned sessions lose chain
// verifiability; retention exists for disk hygiene, not forensics.
func (s *Store) Prune(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge).UnixNano()
	res, err := s.db.Exec(`DELETE FROM audit_log WHERE ts < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("audit: prune: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info("pruned audit entries", "count", n)
	}
	return nil
}

// Close stops the retention schedule and closes the database.
func (s *Store) Close() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	return s.db.Close()
}
