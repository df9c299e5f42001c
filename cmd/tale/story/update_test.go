// Package story provides tests for the Update loop and message routing.
// This file tests key handling, worker result application, and view
// rendering.
package story

import (
	"strings"
	"testing"
	"time"

	"taleweaver/internal/engine"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// WINDOW SIZE MESSAGE TESTS
// =============================================================================

func TestUpdate_WindowSize(t *testing.T) {
	t.Parallel()
	m := NewTestModel()

	newModel, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	result := newModel.(Model)

	if result.width != 120 {
		t.Errorf("Expected width 120, got %d", result.width)
	}
	if result.height != 40 {
		t.Errorf("Expected height 40, got %d", result.height)
	}
	if !result.ready {
		t.Error("Expected ready after first window size")
	}
}

func TestUpdate_WindowSize_Zero(t *testing.T) {
	t.Parallel()
	m := NewTestModel()

	// Should not panic on zero dimensions
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Panic on zero window size: %v", r)
		}
	}()

	newModel, _ := m.Update(tea.WindowSizeMsg{Width: 0, Height: 0})
	_ = newModel
}

func TestUpdate_WindowSize_Negative(t *testing.T) {
	t.Parallel()
	m := NewTestModel()

	// Should not panic on negative dimensions
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Panic on negative window size: %v", r)
		}
	}()

	newModel, _ := m.Update(tea.WindowSizeMsg{Width: -1, Height: -1})
	_ = newModel
}

func TestUpdate_WindowSize_Tiny_ClampsLayout(t *testing.T) {
	t.Parallel()
	m := NewTestModel()

	newModel, _ := m.Update(tea.WindowSizeMsg{Width: 5, Height: 3})
	result := newModel.(Model)

	if result.viewport.Width < 1 {
		t.Errorf("Expected viewport width >= 1, got %d", result.viewport.Width)
	}
	if result.viewport.Height < 1 {
		t.Errorf("Expected viewport height >= 1, got %d", result.viewport.Height)
	}
	if result.textinput.Width < 1 {
		t.Errorf("Expected input width >= 1, got %d", result.textinput.Width)
	}
}

// =============================================================================
// KEY HANDLING TESTS
// =============================================================================

func TestUpdate_CtrlC_Quits(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("Expected quit command, got nil")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg from command")
	}
}

func TestUpdate_CtrlN_ResetsSession(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40))
	m.sess.State.Turn = 3
	m.sess.PushLog(engine.LogAssistant, "", "old narration")
	oldID := m.sess.ID

	newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	result := newModel.(Model)

	if result.sess.ID == oldID {
		t.Error("Expected a fresh session ID after reset")
	}
	if result.sess.State.Turn != 0 {
		t.Errorf("Expected turn 0 after reset, got %d", result.sess.State.Turn)
	}
	if len(result.sess.Log) != 1 {
		t.Fatalf("Expected 1 transcript entry after reset, got %d", len(result.sess.Log))
	}
	if result.sess.Log[0].Text != engine.ResetMessage {
		t.Errorf("Expected reset message, got %q", result.sess.Log[0].Text)
	}
}

func TestUpdate_CtrlN_DuringTurn_AbandonsWorker(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40), WithBusy(true))
	staleGen := m.generation

	newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	result := newModel.(Model)

	if result.busy {
		t.Error("Expected busy cleared by reset")
	}
	if result.generation == staleGen {
		t.Error("Expected generation bump on reset")
	}

	// The abandoned worker's result must be dropped on arrival.
	entries := len(result.sess.Log)
	newModel, _ = result.Update(turnResultMsg{gen: staleGen, res: engine.TurnResult{Text: "late"}})
	result = newModel.(Model)
	if len(result.sess.Log) != entries {
		t.Errorf("Expected stale result dropped, log grew to %d entries", len(result.sess.Log))
	}
}

func TestUpdate_CtrlR_RecallsLastInput(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40))
	m.sess.LastSentInput = "open the door"

	newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	result := newModel.(Model)

	if result.textinput.Value() != "open the door" {
		t.Errorf("Expected recalled input, got %q", result.textinput.Value())
	}
}

func TestUpdate_CtrlR_NothingSent(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40))

	newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	result := newModel.(Model)

	if result.textinput.Value() != "" {
		t.Errorf("Expected empty input, got %q", result.textinput.Value())
	}
}

func TestUpdate_Runes_ReachTextInput(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40))

	newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'h', 'i'}})
	result := newModel.(Model)

	if result.textinput.Value() != "hi" {
		t.Errorf("Expected input %q, got %q", "hi", result.textinput.Value())
	}
}

func TestUpdate_ScrollKeys_NoPanic(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40))

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Panic on scroll key: %v", r)
		}
	}()

	for _, key := range []tea.KeyType{tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown} {
		newModel, _ := m.Update(tea.KeyMsg{Type: key})
		m = newModel.(Model)
	}
}

// =============================================================================
// SUBMIT FLOW TESTS
// =============================================================================

func TestUpdate_Enter_EmptyInput_Ignored(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40))
	entries := len(m.sess.Log)

	newModel, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	result := newModel.(Model)

	if cmd != nil {
		t.Error("Expected no command for empty submit")
	}
	if result.busy {
		t.Error("Expected not busy after empty submit")
	}
	if len(result.sess.Log) != entries {
		t.Errorf("Expected log unchanged, got %d entries", len(result.sess.Log))
	}
}

func TestUpdate_Enter_WhitespaceOnly_Ignored(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40))
	m.textinput.SetValue("   \t  ")

	newModel, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	result := newModel.(Model)

	if cmd != nil {
		t.Error("Expected no command for whitespace submit")
	}
	if result.busy {
		t.Error("Expected not busy after whitespace submit")
	}
}

func TestUpdate_Enter_StartsTurn(t *testing.T) {
	t.Parallel()
	mock := NewMockCompleter()
	mock.SetDefaultText("The hallway opens into a vaulted chamber.")
	m := NewTestModel(WithSize(100, 40), WithClient(mock))
	m.textinput.SetValue("go north")

	newModel, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	result := newModel.(Model)

	if !result.busy {
		t.Error("Expected busy while turn is in flight")
	}
	if result.status != statusThinking {
		t.Errorf("Expected status %q, got %q", statusThinking, result.status)
	}
	if result.textinput.Value() != "" {
		t.Errorf("Expected input cleared, got %q", result.textinput.Value())
	}
	last := result.sess.Log[len(result.sess.Log)-1]
	if last.Kind != engine.LogUser || last.Text != "go north" {
		t.Errorf("Expected player entry %q, got kind %v text %q", "go north", last.Kind, last.Text)
	}
	if result.sess.LastSentInput != "go north" {
		t.Errorf("Expected recall buffer %q, got %q", "go north", result.sess.LastSentInput)
	}
	if cmd == nil {
		t.Fatal("Expected worker command")
	}

	// Run the worker synchronously and feed its result back.
	msg := cmd()
	res, ok := msg.(turnResultMsg)
	if !ok {
		t.Fatalf("Expected turnResultMsg, got %T", msg)
	}
	if res.gen != result.generation {
		t.Errorf("Expected generation %d, got %d", result.generation, res.gen)
	}

	newModel, _ = result.Update(res)
	result = newModel.(Model)

	if result.busy {
		t.Error("Expected busy cleared after result")
	}
	if result.status != statusReady {
		t.Errorf("Expected status %q, got %q", statusReady, result.status)
	}
	if result.sess.State.Turn != 1 {
		t.Errorf("Expected turn 1 after result, got %d", result.sess.State.Turn)
	}
	last = result.sess.Log[len(result.sess.Log)-1]
	if last.Kind != engine.LogAssistant {
		t.Errorf("Expected assistant entry, got kind %v", last.Kind)
	}
	if last.Text != "The hallway opens into a vaulted chamber." {
		t.Errorf("Expected narration, got %q", last.Text)
	}
	if mock.GetCallCount() != 1 {
		t.Errorf("Expected 1 completion call, got %d", mock.GetCallCount())
	}
}

func TestUpdate_Enter_WhileBusy_Ignored(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40), WithBusy(true))
	m.textinput.SetValue("second input")
	entries := len(m.sess.Log)

	newModel, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	result := newModel.(Model)

	if cmd != nil {
		t.Error("Expected no command while busy")
	}
	// The draft stays in the input for after the turn settles.
	if result.textinput.Value() != "second input" {
		t.Errorf("Expected draft preserved, got %q", result.textinput.Value())
	}
	if len(result.sess.Log) != entries {
		t.Errorf("Expected log unchanged, got %d entries", len(result.sess.Log))
	}
}

func TestUpdate_Enter_SlashRoutesToCommand(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40))
	m.textinput.SetValue("/help")

	newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	result := newModel.(Model)

	if result.busy {
		t.Error("Expected commands not to start a turn")
	}
	last := result.sess.Log[len(result.sess.Log)-1]
	if last.Kind != engine.LogSystem || last.Text != helpText {
		t.Errorf("Expected help text, got kind %v text %q", last.Kind, last.Text)
	}
}

// =============================================================================
// TURN RESULT MESSAGE TESTS
// =============================================================================

func TestUpdate_TurnError_AppendsErrorEntry(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40), WithBusy(true))

	newModel, _ := m.Update(turnErrorMsg{gen: m.generation, err: &MockError{msg: "API returned status 429"}})
	result := newModel.(Model)

	if result.busy {
		t.Error("Expected busy cleared after error")
	}
	if result.status != statusError {
		t.Errorf("Expected status %q, got %q", statusError, result.status)
	}
	if result.sess.State.Turn != 0 {
		t.Errorf("Expected turn unchanged on error, got %d", result.sess.State.Turn)
	}
	last := result.sess.Log[len(result.sess.Log)-1]
	if last.Kind != engine.LogError || last.Text != "API returned status 429" {
		t.Errorf("Expected error entry, got kind %v text %q", last.Kind, last.Text)
	}
}

func TestUpdate_StaleTurnResult_Discarded(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40), WithBusy(true))
	entries := len(m.sess.Log)

	newModel, _ := m.Update(turnResultMsg{gen: m.generation - 1, res: engine.TurnResult{Text: "late"}})
	result := newModel.(Model)

	if !result.busy {
		t.Error("Expected stale result not to clear busy")
	}
	if len(result.sess.Log) != entries {
		t.Errorf("Expected log unchanged, got %d entries", len(result.sess.Log))
	}
}

func TestUpdate_StaleTurnError_Discarded(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40), WithBusy(true))
	entries := len(m.sess.Log)

	newModel, _ := m.Update(turnErrorMsg{gen: m.generation - 1, err: &MockError{msg: "late failure"}})
	result := newModel.(Model)

	if !result.busy {
		t.Error("Expected stale error not to clear busy")
	}
	if len(result.sess.Log) != entries {
		t.Errorf("Expected log unchanged, got %d entries", len(result.sess.Log))
	}
}

// =============================================================================
// SCENE MESSAGE TESTS
// =============================================================================

func TestUpdate_SceneResult_InstallsScene(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40))
	m.sceneBusy = true
	art := "+------+\n| door |\n+------+"

	newModel, _ := m.Update(sceneResultMsg{gen: m.generation, scene: art})
	result := newModel.(Model)

	if result.sceneBusy {
		t.Error("Expected sceneBusy cleared")
	}
	if result.sess.Scene != art {
		t.Errorf("Expected scene installed, got %q", result.sess.Scene)
	}
}

func TestUpdate_SceneError_ShowsPlaceholder(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40))
	m.sceneBusy = true
	errorEntries := 0

	newModel, _ := m.Update(sceneResultMsg{gen: m.generation, err: &MockError{msg: "render failed"}})
	result := newModel.(Model)

	if result.sess.Scene != engine.ScenePlaceholder {
		t.Errorf("Expected placeholder, got %q", result.sess.Scene)
	}
	// Scene trouble never reaches the transcript.
	for _, e := range result.sess.Log {
		if e.Kind == engine.LogError {
			errorEntries++
		}
	}
	if errorEntries != 0 {
		t.Errorf("Expected no error entries, got %d", errorEntries)
	}
}

func TestUpdate_StaleSceneResult_Discarded(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40))
	m.sceneBusy = true

	newModel, _ := m.Update(sceneResultMsg{gen: m.generation - 1, scene: "late art"})
	result := newModel.(Model)

	if !result.sceneBusy {
		t.Error("Expected stale scene result not to clear sceneBusy")
	}
	if result.sess.Scene != "" {
		t.Errorf("Expected no scene installed, got %q", result.sess.Scene)
	}
}

// =============================================================================
// MESSAGE TYPE COVERAGE TESTS
// =============================================================================

func TestUpdate_AllMessageTypes_NoPanic(t *testing.T) {
	t.Parallel()

	messages := []tea.Msg{
		tea.WindowSizeMsg{Width: 100, Height: 50},
		tea.WindowSizeMsg{Width: 0, Height: 0},
		tea.KeyMsg{Type: tea.KeyEnter},
		tea.KeyMsg{Type: tea.KeyEsc},
		tea.KeyMsg{Type: tea.KeyCtrlC},
		tea.KeyMsg{Type: tea.KeyCtrlN},
		tea.KeyMsg{Type: tea.KeyCtrlR},
		tea.KeyMsg{Type: tea.KeyUp},
		tea.KeyMsg{Type: tea.KeyDown},
		tea.KeyMsg{Type: tea.KeyPgUp},
		tea.KeyMsg{Type: tea.KeyPgDown},
		tea.KeyMsg{Type: tea.KeyHome},
		tea.KeyMsg{Type: tea.KeyEnd},
		tea.KeyMsg{Type: tea.KeyTab},
		tea.KeyMsg{Type: tea.KeyBackspace},
		tea.KeyMsg{Type: tea.KeyDelete},
		tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'a'}},
		tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'/'}},
		spinner.TickMsg{},
		turnResultMsg{},
		turnResultMsg{gen: 99, res: engine.TurnResult{Text: "stale"}},
		turnErrorMsg{gen: 0, err: &MockError{msg: "failure"}},
		sceneResultMsg{},
		sceneResultMsg{gen: 0, scene: "art"},
		sceneResultMsg{gen: 0, err: &MockError{msg: "scene failure"}},
	}

	for i, msg := range messages {
		t.Run("", func(t *testing.T) {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("PANIC on message %d (%T): %v", i, msg, r)
				}
			}()

			m := NewTestModel()
			_, _ = m.Update(msg)
		})
	}
}

// =============================================================================
// VIEW RENDERING TESTS
// =============================================================================

func TestView_BeforeFirstResize(t *testing.T) {
	t.Parallel()
	m := NewTestModel()

	if view := m.View(); view != "Initializing..." {
		t.Errorf("Expected initializing placeholder, got %q", view)
	}
}

func TestView_NoPanic(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40))

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Panic in View(): %v", r)
		}
	}()

	view := m.View()
	if view == "" {
		t.Error("Expected non-empty view")
	}
	if !strings.Contains(view, helpLine) {
		t.Error("Expected help line in view")
	}
}

func TestView_ShowsWelcome(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40))

	if !strings.Contains(m.View(), engine.WelcomeMessage) {
		t.Error("Expected welcome message in view")
	}
}

func TestView_ShowsScenePane(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(100, 40))
	m.sess.Scene = "+--+\n|##|\n+--+"
	m.layout()

	view := m.View()
	if !strings.Contains(view, "Scene") {
		t.Error("Expected scene title in view")
	}
	if !strings.Contains(view, "|##|") {
		t.Error("Expected scene art in view")
	}
}

func TestView_StatusLine(t *testing.T) {
	t.Parallel()

	m := NewTestModel(WithSize(100, 40))
	if !strings.Contains(m.View(), statusReady) {
		t.Error("Expected ready status in view")
	}

	busy := NewTestModel(WithSize(100, 40), WithBusy(true))
	if !strings.Contains(busy.View(), "Thinking") {
		t.Error("Expected thinking status in view")
	}

	failed := NewTestModel(WithSize(100, 40))
	failed.status = statusError
	if !strings.Contains(failed.View(), statusError) {
		t.Error("Expected error status in view")
	}
}

func TestView_TinyTerminal_NoPanic(t *testing.T) {
	t.Parallel()
	m := NewTestModel(WithSize(4, 2))

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Panic in View() at tiny size: %v", r)
		}
	}()

	_ = m.View()
}

// =============================================================================
// PERFORMANCE TESTS
// =============================================================================

func TestUpdate_Performance_Rapid(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping performance test in short mode")
	}
	t.Parallel()

	m := NewTestModel()

	start := time.Now()
	iterations := 1000

	for i := 0; i < iterations; i++ {
		newModel, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 50})
		m = newModel.(Model)
	}

	elapsed := time.Since(start)
	avgPerUpdate := elapsed / time.Duration(iterations)

	if avgPerUpdate > time.Millisecond {
		t.Logf("Warning: Average update time %v exceeds 1ms target", avgPerUpdate)
	}

	t.Logf("%d updates in %v (avg: %v/update)", iterations, elapsed, avgPerUpdate)
}
