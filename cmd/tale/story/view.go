package story

import (
	"strings"

	"taleweaver/internal/engine"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

const helpLine = "Enter send | Up/Down scroll | /new | /quit | Ctrl+C quit | /help for commands"

// Fixed row costs beneath the story pane: the input box with its
// border, the status line, and the help line.
const (
	inputHeight  = 3
	statusHeight = 1
	helpHeight   = 1
)

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	sections := []string{
		m.styles.StoryPane.Render(m.viewport.View()),
	}
	if m.sess.Scene != "" {
		sections = append(sections, m.renderScenePane())
	}
	sections = append(sections,
		m.styles.InputBox.Render(m.textinput.View()),
		m.renderStatus(),
		m.styles.HelpLine.Render(helpLine),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// layout recomputes component sizes after a resize or a scene pane
// change, then re-renders the transcript at the new width.
func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}

	// Pane border and padding take four columns.
	contentWidth := m.width - 4
	if contentWidth < 1 {
		contentWidth = 1
	}

	sceneHeight := 0
	if m.sess.Scene != "" {
		// Title line plus art lines plus border rows.
		sceneHeight = strings.Count(m.sess.Scene, "\n") + 4
	}

	storyHeight := m.height - inputHeight - statusHeight - helpHeight - 2 - sceneHeight
	if storyHeight < 1 {
		storyHeight = 1
	}

	m.viewport.Width = contentWidth
	m.viewport.Height = storyHeight
	m.textinput.Width = contentWidth - 4
	if m.textinput.Width < 1 {
		m.textinput.Width = 1
	}

	m.refreshTranscript()
}

// refreshTranscript re-renders the log into the viewport and follows
// the newest entry.
func (m *Model) refreshTranscript() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// renderTranscript formats the session log. Each entry is followed by
// a blank line.
func (m Model) renderTranscript() string {
	width := m.viewport.Width
	if width < 1 {
		width = 80
	}

	var sb strings.Builder
	for _, e := range m.sess.Log {
		sb.WriteString(m.renderEntry(e, width))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

// renderEntry lays out one transcript entry. The first line carries a
// colored speaker prefix; continuation lines indent to align under it.
// System entries have no prefix and render whole in the system color.
func (m Model) renderEntry(e engine.LogEntry, width int) string {
	switch e.Kind {
	case engine.LogUser:
		label := e.Speaker
		if label == "" {
			label = "You"
		}
		return renderPrefixed(m.styles.PlayerPrefix, label+": ", e.Text, width)

	case engine.LogAssistant:
		label := e.Speaker
		if label == "" {
			label = engine.NarratorLabel
		}
		style := m.styles.CharacterPrefix
		if isNarratorLabel(label) {
			style = m.styles.NarratorPrefix
		}
		return renderPrefixed(style, label+": ", e.Text, width)

	case engine.LogError:
		return renderPrefixed(m.styles.ErrorPrefix, "Error: ", e.Text, width)
	}

	return renderSystem(m.styles.SystemText, e.Text, width)
}

func isNarratorLabel(label string) bool {
	return strings.EqualFold(strings.TrimSpace(label), engine.NarratorLabel)
}

// renderPrefixed wraps text to fit beside the prefix and indents every
// continuation line by the prefix width. Only the prefix is colored.
func renderPrefixed(style lipgloss.Style, prefix, text string, width int) string {
	indent := strings.Repeat(" ", lipgloss.Width(prefix))
	lines := wrapLines(text, width-lipgloss.Width(prefix))

	var sb strings.Builder
	sb.WriteString(style.Render(prefix))
	for i, line := range lines {
		if i > 0 {
			sb.WriteString("\n")
			sb.WriteString(indent)
		}
		sb.WriteString(line)
	}
	return sb.String()
}

// renderSystem wraps and colors a prefix-less entry.
func renderSystem(style lipgloss.Style, text string, width int) string {
	lines := wrapLines(text, width)
	for i, line := range lines {
		lines[i] = style.Render(line)
	}
	return strings.Join(lines, "\n")
}

// wrapLines word-wraps text at limit, hard-breaking anything that
// still overflows, and returns the individual lines.
func wrapLines(text string, limit int) []string {
	if limit < 1 {
		limit = 1
	}
	wrapped := wrap.String(wordwrap.String(text, limit), limit)
	return strings.Split(wrapped, "\n")
}

// renderStatus colors the status line: yellow with a sweep while a
// turn is in flight, red on error, green otherwise.
func (m Model) renderStatus() string {
	if m.busy {
		return m.styles.StatusBusy.Render("Thinking ") + m.spinner.View()
	}
	if strings.EqualFold(m.status, statusError) {
		return m.styles.StatusError.Render(m.status)
	}
	return m.styles.StatusReady.Render(m.status)
}

// renderScenePane draws the latest scene illustration beneath the
// story pane.
func (m Model) renderScenePane() string {
	body := lipgloss.JoinVertical(
		lipgloss.Left,
		m.styles.SceneTitle.Render("Scene"),
		m.sess.Scene,
	)
	return m.styles.ScenePane.Width(m.viewport.Width).Render(body)
}
