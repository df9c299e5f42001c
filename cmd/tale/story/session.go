package story

import (
	"fmt"
	"strings"

	"taleweaver/internal/logging"
	"taleweaver/internal/store"

	"github.com/google/uuid"
)

func newSessionID() string {
	return uuid.New().String()
}

// beginPersistedSession registers the current session with the
// transcript store. A nil store means persistence is disabled and
// everything here is a no-op.
func (m *Model) beginPersistedSession() {
	m.persisted = 0
	if m.cfg.Store == nil {
		return
	}
	if err := m.cfg.Store.BeginSession(m.sess.ID); err != nil {
		logging.StoreWarn("failed to register session %s: %v", m.sess.ID, err)
	}
}

// persistLog writes any transcript entries appended since the last
// call. Writes are idempotent on the store side, so a failed batch is
// simply retried on the next call.
func (m *Model) persistLog() {
	if m.cfg.Store == nil {
		m.persisted = len(m.sess.Log)
		return
	}
	if pending := m.sess.Log[m.persisted:]; len(pending) > 0 {
		if err := m.cfg.Store.AppendEntries(m.sess.ID, m.persisted, pending); err != nil {
			logging.StoreWarn("failed to persist %d entries: %v", len(pending), err)
		} else {
			m.persisted = len(m.sess.Log)
		}
	}
	if err := m.cfg.Store.TouchSession(m.sess.ID, m.sess.State.Turn, m.sess.State.Location); err != nil {
		logging.StoreWarn("failed to update session row: %v", err)
	}
}

// renderSessionList formats stored session summaries for display in
// the transcript.
func renderSessionList(sessions []store.SessionSummary, current string) string {
	if len(sessions) == 0 {
		return "No saved sessions yet."
	}
	var b strings.Builder
	b.WriteString("Saved sessions (newest first):")
	for _, s := range sessions {
		marker := ""
		if s.ID == current {
			marker = " (current)"
		}
		fmt.Fprintf(&b, "\n%s  %s  turn %d  %s  %d entries%s",
			s.StartedAt.Format("2006-01-02 15:04"), shortID(s.ID), s.LastTurn, s.Location, s.Entries, marker)
	}
	return b.String()
}

// shortID trims a UUID to its first group for display.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
