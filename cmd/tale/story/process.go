package story

import (
	"context"
	"errors"
	"time"

	"taleweaver/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
)

// startTurn submits player input and launches the background worker
// that advances the story. The model stays responsive while the
// worker runs; its result is matched against the generation it was
// started under.
func (m Model) startTurn(input string) (tea.Model, tea.Cmd) {
	m.sess.SubmitInput(input)
	m.busy = true
	m.status = statusThinking
	m.persistLog()
	m.refreshTranscript()

	gen := m.generation
	turns := m.turns
	history := m.sess.HistorySnapshot()
	state := m.sess.StateSnapshot()

	cmd := func() (msg tea.Msg) {
		// A crashed worker must still deliver a message or the session
		// would stay busy forever.
		defer func() {
			if r := recover(); r != nil {
				logging.EngineError("turn worker panic: %v", r)
				msg = turnErrorMsg{gen: gen, err: errors.New("Response channel disconnected.")}
			}
		}()
		res, err := turns.Advance(context.Background(), history, state)
		if err != nil {
			return turnErrorMsg{gen: gen, err: err}
		}
		return turnResultMsg{gen: gen, res: res}
	}
	return m, cmd
}

// requestScene launches the background scene illustration worker. At
// most one render runs at a time, but a render may overlap a story
// turn.
func (m Model) requestScene() (tea.Model, tea.Cmd) {
	if m.sceneBusy {
		m.pushSystem("A scene render is already in progress.")
		return m, nil
	}
	m.sceneBusy = true

	gen := m.generation
	scenes := m.scenes
	state := m.sess.StateSnapshot()
	recent := m.sess.RecentNarration()
	turn := m.sess.State.Turn

	cmd := func() (msg tea.Msg) {
		defer func() {
			if r := recover(); r != nil {
				logging.EngineError("scene worker panic: %v", r)
				msg = sceneResultMsg{gen: gen, err: errors.New("scene worker crashed")}
			}
		}()
		start := time.Now()
		art, err := scenes.Render(context.Background(), state, recent)
		logging.Audit().SceneRender(turn, time.Since(start).Milliseconds(), err == nil && art != "")
		return sceneResultMsg{gen: gen, scene: art, err: err}
	}
	return m, cmd
}
