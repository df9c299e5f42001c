package story

import (
	"strings"

	"taleweaver/internal/engine"
	"taleweaver/internal/logging"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.persistLog()
			return m, tea.Quit

		case tea.KeyCtrlN:
			m.resetSession()
			return m, nil

		case tea.KeyCtrlR:
			// Recall the last sent input for quick editing.
			if m.sess.LastSentInput != "" {
				m.textinput.SetValue(m.sess.LastSentInput)
				m.textinput.CursorEnd()
			}
			return m, nil

		case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd

		case tea.KeyEnter:
			return m.handleSubmit()
		}

		var cmd tea.Cmd
		m.textinput, cmd = m.textinput.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case turnResultMsg:
		if msg.gen != m.generation {
			logging.UIDebug("discarding stale turn result (gen %d != %d)", msg.gen, m.generation)
			return m, nil
		}
		m.busy = false
		m.sess.ApplyTurnResult(msg.res)
		m.persistLog()
		m.status = statusReady
		m.refreshTranscript()
		return m, nil

	case turnErrorMsg:
		if msg.gen != m.generation {
			return m, nil
		}
		m.busy = false
		m.sess.ApplyTurnError(msg.err)
		m.persistLog()
		m.status = statusError
		m.refreshTranscript()
		return m, nil

	case sceneResultMsg:
		if msg.gen != m.generation {
			return m, nil
		}
		m.sceneBusy = false
		m.sess.ApplyScene(msg.scene, msg.err)
		m.layout()
		return m, nil
	}

	var cmd tea.Cmd
	m.textinput, cmd = m.textinput.Update(msg)
	return m, cmd
}

// handleSubmit routes Enter: slash commands run inline, everything
// else becomes a story turn. Submissions are ignored while a turn is
// in flight.
func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}
	if m.busy {
		return m, nil
	}
	m.textinput.Reset()

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}
	return m.startTurn(input)
}

// resetSession abandons any in-flight work and begins a new game.
func (m *Model) resetSession() {
	m.generation++
	m.busy = false
	m.sceneBusy = false
	m.status = statusReady
	m.sess.Reset(newSessionID())
	m.persisted = 0
	m.beginPersistedSession()
	m.persistLog()
	m.textinput.Reset()
	m.layout()
}

func (m *Model) pushSystem(text string) {
	m.sess.PushLog(engine.LogSystem, "", text)
	m.persistLog()
	m.refreshTranscript()
}
