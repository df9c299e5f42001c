package story

import (
	"strings"

	"taleweaver/internal/logging"

	tea "github.com/charmbracelet/bubbletea"
)

const helpText = "Commands: /new, /quit, /set location <name>, /add item <name>, /remove item <name>, /flag <name>, /unflag <name>, /scene, /sessions."

// handleCommand dispatches a slash command. Commands mutate local
// state and reply through System entries; they never consume a story
// turn.
func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	logging.UIDebug("command: %s", input)

	switch {
	case input == "/quit" || input == "/exit":
		m.persistLog()
		return m, tea.Quit

	case input == "/new":
		m.resetSession()
		return m, nil

	case input == "/help":
		m.pushSystem(helpText)
		return m, nil

	case input == "/scene":
		return m.requestScene()

	case input == "/sessions":
		m.listSessions()
		return m, nil

	case strings.HasPrefix(input, "/set location "):
		loc := strings.TrimSpace(strings.TrimPrefix(input, "/set location "))
		if loc == "" {
			m.pushSystem("Usage: /set location <name>")
		} else {
			m.sess.State.SetLocation(loc)
			m.pushSystem("Location set to: " + loc)
		}
		return m, nil

	case strings.HasPrefix(input, "/add item "):
		item := strings.TrimSpace(strings.TrimPrefix(input, "/add item "))
		if item == "" {
			m.pushSystem("Usage: /add item <name>")
		} else {
			m.sess.State.AddItem(item)
			m.pushSystem("Added item: " + item)
		}
		return m, nil

	case strings.HasPrefix(input, "/remove item "):
		item := strings.TrimSpace(strings.TrimPrefix(input, "/remove item "))
		switch {
		case item == "":
			m.pushSystem("Usage: /remove item <name>")
		case m.sess.State.RemoveItem(item):
			m.pushSystem("Removed item: " + item)
		default:
			m.pushSystem("Item not found: " + item)
		}
		return m, nil

	case strings.HasPrefix(input, "/flag "):
		flag := strings.TrimSpace(strings.TrimPrefix(input, "/flag "))
		switch {
		case flag == "":
			m.pushSystem("Usage: /flag <name>")
		case m.sess.State.SetFlag(flag):
			m.pushSystem("Flag set: " + flag)
		default:
			m.pushSystem("Flag already set: " + flag)
		}
		return m, nil

	case strings.HasPrefix(input, "/unflag "):
		flag := strings.TrimSpace(strings.TrimPrefix(input, "/unflag "))
		switch {
		case flag == "":
			m.pushSystem("Usage: /unflag <name>")
		case m.sess.State.ClearFlag(flag):
			m.pushSystem("Flag cleared: " + flag)
		default:
			m.pushSystem("Flag not found: " + flag)
		}
		return m, nil
	}

	m.pushSystem("Unknown command. Try /help.")
	return m, nil
}

// listSessions prints stored session summaries into the transcript.
func (m *Model) listSessions() {
	if m.cfg.Store == nil {
		m.pushSystem("Session persistence is disabled.")
		return
	}
	sessions, err := m.cfg.Store.ListSessions(10)
	if err != nil {
		logging.StoreWarn("failed to list sessions: %v", err)
		m.pushSystem("Could not read saved sessions.")
		return
	}
	m.pushSystem(renderSessionList(sessions, m.sess.ID))
}
