package store

import (
	"path/filepath"
	"testing"

	"taleweaver/internal/engine"

	"go.uber.org/goleak"
)

// TestMain ensures the database layer leaks no goroutines.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestStore(t *testing.T) *TranscriptStore {
	t.Helper()
	s, err := NewTranscriptStore(filepath.Join(t.TempDir(), "transcripts.db"))
	if err != nil {
		t.Fatalf("NewTranscriptStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndLoadTranscript(t *testing.T) {
	s := newTestStore(t)

	if err := s.BeginSession("sess-1"); err != nil {
		t.Fatalf("BeginSession failed: %v", err)
	}
	entries := []engine.LogEntry{
		{Kind: engine.LogSystem, Text: "Welcome! Describe what you do to begin."},
		{Kind: engine.LogUser, Text: "look around"},
		{Kind: engine.LogAssistant, Speaker: "Narrator", Text: "You see a dusty counter."},
	}
	if err := s.AppendEntries("sess-1", 0, entries); err != nil {
		t.Fatalf("AppendEntries failed: %v", err)
	}

	got, err := s.LoadTranscript("sess-1")
	if err != nil {
		t.Fatalf("LoadTranscript failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("loaded %d entries, want 3", len(got))
	}
	if got[2].Kind != engine.LogAssistant || got[2].Speaker != "Narrator" || got[2].Text != "You see a dusty counter." {
		t.Errorf("entry 2 = %+v", got[2])
	}
}

func TestAppendEntriesIdempotent(t *testing.T) {
	s := newTestStore(t)
	s.BeginSession("sess-1")

	entries := []engine.LogEntry{
		{Kind: engine.LogUser, Text: "original"},
		{Kind: engine.LogAssistant, Speaker: "Narrator", Text: "reply"},
	}
	if err := s.AppendEntries("sess-1", 0, entries); err != nil {
		t.Fatalf("AppendEntries failed: %v", err)
	}

	// Replay the same range with different text; the first write wins.
	replay := []engine.LogEntry{
		{Kind: engine.LogUser, Text: "changed"},
		{Kind: engine.LogAssistant, Speaker: "Narrator", Text: "changed too"},
		{Kind: engine.LogSystem, Text: "new tail"},
	}
	if err := s.AppendEntries("sess-1", 0, replay); err != nil {
		t.Fatalf("AppendEntries replay failed: %v", err)
	}

	got, err := s.LoadTranscript("sess-1")
	if err != nil {
		t.Fatalf("LoadTranscript failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("loaded %d entries, want 3", len(got))
	}
	if got[0].Text != "original" {
		t.Errorf("entry 0 text = %q, duplicate seq must not overwrite", got[0].Text)
	}
	if got[2].Text != "new tail" {
		t.Errorf("entry 2 text = %q, new seq should land", got[2].Text)
	}

	n, err := s.EntryCount("sess-1")
	if err != nil {
		t.Fatalf("EntryCount failed: %v", err)
	}
	if n != 3 {
		t.Errorf("entry count = %d, want 3", n)
	}
}

func TestAppendEntriesEmptyIsNoop(t *testing.T) {
	s := newTestStore(t)
	s.BeginSession("sess-1")
	if err := s.AppendEntries("sess-1", 0, nil); err != nil {
		t.Fatalf("AppendEntries(nil) failed: %v", err)
	}
	n, _ := s.EntryCount("sess-1")
	if n != 0 {
		t.Errorf("entry count = %d, want 0", n)
	}
}

func TestListSessions(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"sess-a", "sess-b"} {
		if err := s.BeginSession(id); err != nil {
			t.Fatalf("BeginSession(%s) failed: %v", id, err)
		}
	}
	s.AppendEntries("sess-b", 0, []engine.LogEntry{{Kind: engine.LogUser, Text: "hi"}})
	if err := s.TouchSession("sess-b", 4, "General Store"); err != nil {
		t.Fatalf("TouchSession failed: %v", err)
	}

	sums, err := s.ListSessions(10)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sums) != 2 {
		t.Fatalf("listed %d sessions, want 2", len(sums))
	}
	var b *SessionSummary
	for i := range sums {
		if sums[i].ID == "sess-b" {
			b = &sums[i]
		}
	}
	if b == nil {
		t.Fatal("sess-b missing from listing")
	}
	if b.LastTurn != 4 || b.Location != "General Store" || b.Entries != 1 {
		t.Errorf("sess-b summary = %+v", *b)
	}
}

func TestListSessionsLimit(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"one", "two", "three"} {
		s.BeginSession(id)
	}
	sums, err := s.ListSessions(2)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sums) != 2 {
		t.Errorf("listed %d sessions, want limit of 2", len(sums))
	}
}

func TestBeginSessionTwice(t *testing.T) {
	s := newTestStore(t)
	if err := s.BeginSession("sess-1"); err != nil {
		t.Fatalf("first BeginSession failed: %v", err)
	}
	if err := s.BeginSession("sess-1"); err != nil {
		t.Fatalf("second BeginSession failed: %v", err)
	}
	sums, _ := s.ListSessions(10)
	if len(sums) != 1 {
		t.Errorf("listed %d sessions, want 1", len(sums))
	}
}

func TestLoadTranscriptUnknownSession(t *testing.T) {
	s := newTestStore(t)
	got, err := s.LoadTranscript("nope")
	if err != nil {
		t.Fatalf("LoadTranscript failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("loaded %d entries for unknown session", len(got))
	}
}
