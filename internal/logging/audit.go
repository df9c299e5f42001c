package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEventType identifies a structured audit event.
type AuditEventType string

const (
	// Session lifecycle
	AuditSessionStart AuditEventType = "session_start"
	AuditSessionReset AuditEventType = "session_reset"
	AuditTurnStart    AuditEventType = "turn_start"
	AuditTurnEnd      AuditEventType = "turn_end"

	// Completion service calls
	AuditLLMRequest  AuditEventType = "llm_request"
	AuditLLMResponse AuditEventType = "llm_response"
	AuditLLMRetry    AuditEventType = "llm_retry"
	AuditLLMError    AuditEventType = "llm_error"

	// Narration parsing
	AuditParseFallback AuditEventType = "parse_fallback"
	AuditSpeakerChange AuditEventType = "speaker_change"

	// Scene rendering
	AuditSceneRender AuditEventType = "scene_render"
)

// AuditEvent is one JSONL line in the audit log. Events carry enough
// correlation (session, turn) to reconstruct a play session afterward.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"` // Unix milliseconds
	EventType  AuditEventType         `json:"event"`
	SessionID  string                 `json:"session,omitempty"`
	Turn       int                    `json:"turn,omitempty"`
	Target     string                 `json:"target,omitempty"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Message    string                 `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger writes structured audit events, optionally scoped to a
// session so callers do not repeat the ID on every event.
type AuditLogger struct {
	sessionID string
}

// InitAudit opens the audit log file. No-op outside debug mode.
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit log file.
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger.
func Audit() *AuditLogger {
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditWithSession creates an audit logger scoped to a session.
func AuditWithSession(sessionID string) *AuditLogger {
	return &AuditLogger{sessionID: sessionID}
}

// Log writes an audit event as one JSON line.
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.SessionID == "" && a.sessionID != "" {
		event.SessionID = a.sessionID
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

// SessionStart logs the start of a play session.
func (a *AuditLogger) SessionStart(sessionID string) {
	a.Log(AuditEvent{
		EventType: AuditSessionStart,
		SessionID: sessionID,
		Success:   true,
		Message:   fmt.Sprintf("Session started: %s", sessionID),
	})
}

// SessionReset logs a /new reset, recording how far the old session got.
func (a *AuditLogger) SessionReset(sessionID string, turnCount int) {
	a.Log(AuditEvent{
		EventType: AuditSessionReset,
		SessionID: sessionID,
		Turn:      turnCount,
		Success:   true,
		Message:   fmt.Sprintf("Session reset after %d turns", turnCount),
	})
}

// TurnStart logs the beginning of a player turn.
func (a *AuditLogger) TurnStart(turn int, inputLen int) {
	a.Log(AuditEvent{
		EventType: AuditTurnStart,
		Turn:      turn,
		Success:   true,
		Fields:    map[string]interface{}{"input_len": inputLen},
		Message:   fmt.Sprintf("Turn %d started (%d chars)", turn, inputLen),
	})
}

// TurnEnd logs the completion of a player turn.
func (a *AuditLogger) TurnEnd(turn int, durationMs int64, success bool) {
	a.Log(AuditEvent{
		EventType:  AuditTurnEnd,
		Turn:       turn,
		Success:    success,
		DurationMs: durationMs,
		Message:    fmt.Sprintf("Turn %d ended (%dms, success=%v)", turn, durationMs, success),
	})
}

// LLMCall logs a completion service round trip.
func (a *AuditLogger) LLMCall(model string, durationMs int64, success bool, errMsg string) {
	eventType := AuditLLMResponse
	if !success {
		eventType = AuditLLMError
	}
	a.Log(AuditEvent{
		EventType:  eventType,
		Target:     model,
		Success:    success,
		DurationMs: durationMs,
		Error:      errMsg,
		Message:    fmt.Sprintf("LLM call: %s (%dms, success=%v)", model, durationMs, success),
	})
}

// LLMRetry logs a retry after an empty model response.
func (a *AuditLogger) LLMRetry(turn int, attempt int, reason string) {
	a.Log(AuditEvent{
		EventType: AuditLLMRetry,
		Turn:      turn,
		Success:   true,
		Fields:    map[string]interface{}{"attempt": attempt, "reason": reason},
		Message:   fmt.Sprintf("Turn %d retry (attempt %d): %s", turn, attempt, reason),
	})
}

// ParseFallback logs that narration parsing produced no blocks and the
// raw-text fallback was used.
func (a *AuditLogger) ParseFallback(turn int, rawLen int) {
	a.Log(AuditEvent{
		EventType: AuditParseFallback,
		Turn:      turn,
		Success:   true,
		Fields:    map[string]interface{}{"raw_len": rawLen},
		Message:   fmt.Sprintf("Turn %d parse fallback (%d chars raw)", turn, rawLen),
	})
}

// SpeakerChange logs an active speaker transition.
func (a *AuditLogger) SpeakerChange(turn int, from, to string) {
	a.Log(AuditEvent{
		EventType: AuditSpeakerChange,
		Turn:      turn,
		Success:   true,
		Fields:    map[string]interface{}{"from": from, "to": to},
		Message:   fmt.Sprintf("Turn %d speaker: %q -> %q", turn, from, to),
	})
}

// SceneRender logs a scene illustration request.
func (a *AuditLogger) SceneRender(turn int, durationMs int64, success bool) {
	a.Log(AuditEvent{
		EventType:  AuditSceneRender,
		Turn:       turn,
		Success:    success,
		DurationMs: durationMs,
		Message:    fmt.Sprintf("Turn %d scene render (%dms, success=%v)", turn, durationMs, success),
	})
}
