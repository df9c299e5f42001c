package engine

import (
	"time"

	"taleweaver/internal/logging"
	"taleweaver/internal/perception"
)

// LogKind classifies transcript entries.
type LogKind int

const (
	LogUser LogKind = iota
	LogAssistant
	LogSystem
	LogError
)

// String returns the persistence name of the kind.
func (k LogKind) String() string {
	switch k {
	case LogUser:
		return "user"
	case LogAssistant:
		return "assistant"
	case LogSystem:
		return "system"
	case LogError:
		return "error"
	default:
		return "unknown"
	}
}

// LogEntry is one transcript row. Speaker is meaningful only for User
// and Assistant entries; an empty speaker renders as "You" or
// "Narrator" respectively. The transcript is append-only.
type LogEntry struct {
	Kind    LogKind
	Speaker string
	Text    string
}

// WelcomeMessage opens a fresh session's transcript.
const WelcomeMessage = "Welcome! Describe what you do to begin."

// ResetMessage opens the transcript after a reset.
const ResetMessage = "New game. Describe what you do to begin."

// Session owns the settled state of one play-through: world state,
// transcript, model conversation, and the current scene drawing. It is
// not safe for concurrent use; background workers receive snapshots and
// their results are applied back on the owning goroutine.
type Session struct {
	ID            string
	State         GameState
	Log           []LogEntry
	Store         *ConversationStore
	Scene         string
	LastSentInput string

	debug         bool
	turnStartedAt time.Time
}

// NewSession returns a session with a welcome entry in the transcript.
func NewSession(id string, historyLimit int, debug bool) *Session {
	s := &Session{
		ID:    id,
		State: NewGameState(),
		Store: NewConversationStore(historyLimit),
		debug: debug,
	}
	s.PushLog(LogSystem, "", WelcomeMessage)
	logging.Audit().SessionStart(id)
	return s
}

// PushLog appends a transcript entry.
func (s *Session) PushLog(kind LogKind, speaker, text string) {
	s.Log = append(s.Log, LogEntry{Kind: kind, Speaker: speaker, Text: text})
}

// SubmitInput records the player's input: transcript entry, history
// chunk, and recall buffer. Exit cues are checked first, while the
// dialogue partner is still known, so the request preamble already
// shows the narrator back in charge.
func (s *Session) SubmitInput(input string) {
	if s.State.ActiveSpeaker != "" && InputSignalsExit(input) {
		logging.Engine("player exits dialogue with %q", s.State.ActiveSpeaker)
		logging.Audit().SpeakerChange(s.State.Turn, s.State.ActiveSpeaker, "")
		s.State.ActiveSpeaker = ""
	}
	s.PushLog(LogUser, "", input)
	s.Store.AppendUserMessage(input)
	s.LastSentInput = input
	s.turnStartedAt = time.Now()
	logging.Audit().TurnStart(s.State.Turn, len(input))
}

func (s *Session) turnElapsedMs() int64 {
	if s.turnStartedAt.IsZero() {
		return 0
	}
	return time.Since(s.turnStartedAt).Milliseconds()
}

// HistorySnapshot returns the conversation chunks for a worker.
func (s *Session) HistorySnapshot() [][]perception.Item {
	return s.Store.Snapshot()
}

// StateSnapshot returns a deep copy of the world state for a worker.
func (s *Session) StateSnapshot() GameState {
	return s.State.Clone()
}

// ApplyTurnResult folds a successful turn back into the session:
// attributed transcript entries, the verbatim response chunk, the debug
// summary when enabled, and the turn counter.
func (s *Session) ApplyTurnResult(res TurnResult) {
	s.applyNarration(res.Text)
	s.Store.AppendChunk(res.Items)
	if s.debug && res.Diagnostics != "" {
		s.PushLog(LogSystem, "", res.Diagnostics)
	}
	s.State.Turn++
	logging.Audit().TurnEnd(s.State.Turn, s.turnElapsedMs(), true)
}

// ApplyTurnError records a failed turn. The turn counter does not
// advance and the player's chunk stays in history for the next try.
func (s *Session) ApplyTurnError(err error) {
	s.PushLog(LogError, "", err.Error())
	logging.EngineError("turn failed: %v", err)
	logging.Audit().TurnEnd(s.State.Turn, s.turnElapsedMs(), false)
}

// applyNarration parses model output into transcript entries and moves
// the active speaker. Unparseable output falls back to a single
// narrator block with player-voiced lines stripped, and the speaker
// resets.
func (s *Session) applyNarration(text string) {
	res := ParseNarration(text)
	if len(res.Blocks) == 0 {
		logging.EngineWarn("no speaker blocks parsed, using fallback")
		logging.Audit().ParseFallback(s.State.Turn, len(text))
		if block, ok := FallbackNarration(text); ok {
			s.PushLog(LogAssistant, block.Speaker, block.Text)
		}
		s.State.ActiveSpeaker = ""
		return
	}
	for _, b := range res.Blocks {
		s.PushLog(LogAssistant, b.Speaker, b.Text)
	}
	next := NextActiveSpeaker(res.TrailingSpeaker)
	if next != s.State.ActiveSpeaker {
		logging.Audit().SpeakerChange(s.State.Turn, s.State.ActiveSpeaker, next)
	}
	s.State.ActiveSpeaker = next
}

// RecentNarration returns the latest non-empty assistant text, the
// visual detail a scene request leans on. Empty when nothing has been
// narrated yet.
func (s *Session) RecentNarration() string {
	for i := len(s.Log) - 1; i >= 0; i-- {
		if s.Log[i].Kind == LogAssistant && s.Log[i].Text != "" {
			return s.Log[i].Text
		}
	}
	return ""
}

// ApplyScene installs a finished scene drawing, softening errors and
// blank output into the placeholder. Scene failures never reach the
// transcript.
func (s *Session) ApplyScene(text string, err error) {
	if err != nil {
		logging.EngineWarn("scene render failed: %v", err)
		s.Scene = ScenePlaceholder
		return
	}
	if text == "" {
		s.Scene = ScenePlaceholder
		return
	}
	s.Scene = text
}

// Reset starts a new game under a fresh session ID, discarding
// transcript, history, world state, and scene.
func (s *Session) Reset(newID string) {
	logging.Audit().SessionReset(s.ID, s.State.Turn)
	s.ID = newID
	s.State = NewGameState()
	s.Log = nil
	s.Store.Reset()
	s.Scene = ""
	s.LastSentInput = ""
	s.PushLog(LogSystem, "", ResetMessage)
	logging.Audit().SessionStart(newID)
}
