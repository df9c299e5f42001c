package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"taleweaver/internal/engine"
	"taleweaver/internal/logging"
)

// TranscriptStore persists session transcripts to SQLite so past
// play-throughs survive the process. Writes are idempotent on
// (session_id, seq); replaying an already-persisted prefix is a no-op.
type TranscriptStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// SessionSummary is one row of the session list.
type SessionSummary struct {
	ID        string
	StartedAt time.Time
	LastTurn  int
	Location  string
	Entries   int
}

// NewTranscriptStore opens or creates the database at path.
func NewTranscriptStore(path string) (*TranscriptStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewTranscriptStore")
	defer timer.Stop()

	logging.Store("Opening transcript store at %s", path)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.Get(logging.CategoryStore).Error("Failed to create directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &TranscriptStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to initialize schema: %v", err)
		db.Close()
		return nil, err
	}
	logging.StoreDebug("Transcript schema ready")
	return s, nil
}

func (s *TranscriptStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_turn INTEGER NOT NULL DEFAULT 0,
		location TEXT NOT NULL DEFAULT 'Unknown'
	);

	CREATE TABLE IF NOT EXISTS transcript (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		speaker TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(session_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_transcript_session ON transcript(session_id, seq);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *TranscriptStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	logging.StoreDebug("Closing transcript store")
	return s.db.Close()
}

// BeginSession registers a session. Safe to call again for a session
// already on record.
func (s *TranscriptStore) BeginSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Registering session %s", sessionID)
	_, err := s.db.Exec("INSERT OR IGNORE INTO sessions (session_id) VALUES (?)", sessionID)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to register session %s: %v", sessionID, err)
		return err
	}
	return nil
}

// AppendEntries persists transcript entries starting at startSeq.
// Duplicate (session, seq) pairs are silently skipped, so callers may
// resend overlapping ranges.
func (s *TranscriptStore) AppendEntries(sessionID string, startSeq int, entries []engine.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Appending %d entries for session %s from seq %d", len(entries), sessionID, startSeq)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.Prepare(
		"INSERT OR IGNORE INTO transcript (session_id, seq, kind, speaker, text) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		if _, err := stmt.Exec(sessionID, startSeq+i, e.Kind.String(), e.Speaker, e.Text); err != nil {
			tx.Rollback()
			logging.Get(logging.CategoryStore).Error("Failed to append entry seq=%d for %s: %v", startSeq+i, sessionID, err)
			return err
		}
	}
	return tx.Commit()
}

// TouchSession updates the session's progress metadata.
func (s *TranscriptStore) TouchSession(sessionID string, lastTurn int, location string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"UPDATE sessions SET last_turn = ?, location = ? WHERE session_id = ?",
		lastTurn, location, sessionID,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to touch session %s: %v", sessionID, err)
	}
	return err
}

// ListSessions returns the most recently started sessions, newest
// first.
func (s *TranscriptStore) ListSessions(limit int) ([]SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(
		`SELECT s.session_id, s.started_at, s.last_turn, s.location,
		        (SELECT COUNT(*) FROM transcript t WHERE t.session_id = s.session_id) AS entries
		 FROM sessions s
		 ORDER BY s.started_at DESC, s.session_id DESC
		 LIMIT ?`, limit)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to list sessions: %v", err)
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var sum SessionSummary
		if err := rows.Scan(&sum.ID, &sum.StartedAt, &sum.LastTurn, &sum.Location, &sum.Entries); err != nil {
			continue
		}
		out = append(out, sum)
	}
	logging.StoreDebug("Listed %d sessions", len(out))
	return out, rows.Err()
}

// LoadTranscript returns a session's entries in order.
func (s *TranscriptStore) LoadTranscript(sessionID string) ([]engine.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT kind, speaker, text FROM transcript WHERE session_id = ? ORDER BY seq ASC",
		sessionID)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to load transcript %s: %v", sessionID, err)
		return nil, err
	}
	defer rows.Close()

	var entries []engine.LogEntry
	for rows.Next() {
		var kind, speaker, text string
		if err := rows.Scan(&kind, &speaker, &text); err != nil {
			continue
		}
		entries = append(entries, engine.LogEntry{Kind: parseKind(kind), Speaker: speaker, Text: text})
	}
	logging.StoreDebug("Loaded %d transcript entries for %s", len(entries), sessionID)
	return entries, rows.Err()
}

// EntryCount returns how many entries a session has persisted. Used on
// resume to continue the sequence where it left off.
func (s *TranscriptStore) EntryCount(sessionID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM transcript WHERE session_id = ?", sessionID).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func parseKind(kind string) engine.LogKind {
	switch kind {
	case "user":
		return engine.LogUser
	case "assistant":
		return engine.LogAssistant
	case "error":
		return engine.LogError
	default:
		return engine.LogSystem
	}
}
