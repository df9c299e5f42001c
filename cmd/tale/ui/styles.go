// Package ui provides the visual styling for the taleWEAVER terminal
// interface. Transcript colors follow the classic adventure palette;
// chrome colors adapt to light or dark terminals.
package ui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Transcript palette. Standard ANSI colors so the transcript reads the
// same on any terminal theme.
var (
	PlayerColor    = lipgloss.Color("3") // yellow
	NarratorColor  = lipgloss.Color("2") // green
	CharacterColor = lipgloss.Color("6") // cyan
	SystemColor    = lipgloss.Color("4") // blue
	ErrorColor     = lipgloss.Color("1") // red

	// Status line colors
	BusyColor  = lipgloss.Color("3") // yellow while thinking
	ReadyColor = lipgloss.Color("2") // green when idle
)

// Theme holds the chrome color scheme.
type Theme struct {
	Foreground lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme.
func LightTheme() Theme {
	return Theme{
		Foreground: lipgloss.Color("#2d333b"),
		Accent:     lipgloss.Color("#7c3aed"),
		Muted:      lipgloss.Color("#8b949e"),
		Border:     lipgloss.Color("#d0d7de"),
		IsDark:     false,
	}
}

// DarkTheme returns the dark mode theme.
func DarkTheme() Theme {
	return Theme{
		Foreground: lipgloss.Color("#e6edf3"),
		Accent:     lipgloss.Color("#a78bfa"),
		Muted:      lipgloss.Color("#768390"),
		Border:     lipgloss.Color("#444c56"),
		IsDark:     true,
	}
}

// ThemeFromName resolves a configured theme name. Anything other than
// an explicit light or dark choice falls back to detection.
func ThemeFromName(name string) Theme {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "light":
		return LightTheme()
	case "dark":
		return DarkTheme()
	}
	return DetectTheme()
}

// DetectTheme picks a theme from terminal hints, defaulting to dark.
func DetectTheme() Theme {
	if colorTerm := os.Getenv("COLORFGBG"); colorTerm != "" {
		// Format is usually "foreground;background"; low background
		// indexes indicate a dark terminal.
		parts := strings.Split(colorTerm, ";")
		if len(parts) == 2 {
			if bgIdx, err := strconv.Atoi(parts[1]); err == nil {
				if bgIdx >= 7 && bgIdx != 8 {
					return LightTheme()
				}
				return DarkTheme()
			}
		}
	}
	if os.Getenv("TALEWEAVER_LIGHT_MODE") == "1" {
		return LightTheme()
	}
	return DarkTheme()
}

// Styles holds the styled components of the interface.
type Styles struct {
	Theme Theme

	// Transcript
	PlayerPrefix    lipgloss.Style
	NarratorPrefix  lipgloss.Style
	CharacterPrefix lipgloss.Style
	SystemText      lipgloss.Style
	ErrorPrefix     lipgloss.Style

	// Chrome
	StoryPane  lipgloss.Style
	ScenePane  lipgloss.Style
	SceneTitle lipgloss.Style
	InputBox   lipgloss.Style
	Prompt     lipgloss.Style
	HelpLine   lipgloss.Style
	Muted      lipgloss.Style

	// Status line
	StatusBusy  lipgloss.Style
	StatusReady lipgloss.Style
	StatusError lipgloss.Style
	Spinner     lipgloss.Style
}

// NewStyles creates a Styles instance for the given theme.
func NewStyles(theme Theme) Styles {
	return Styles{
		Theme: theme,

		PlayerPrefix:    lipgloss.NewStyle().Foreground(PlayerColor),
		NarratorPrefix:  lipgloss.NewStyle().Foreground(NarratorColor),
		CharacterPrefix: lipgloss.NewStyle().Foreground(CharacterColor),
		SystemText:      lipgloss.NewStyle().Foreground(SystemColor),
		ErrorPrefix:     lipgloss.NewStyle().Foreground(ErrorColor),

		StoryPane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		ScenePane: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Muted).
			Padding(0, 1),

		SceneTitle: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Bold(true),

		InputBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Accent).
			Padding(0, 1),

		Prompt: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		HelpLine: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		StatusBusy:  lipgloss.NewStyle().Foreground(BusyColor),
		StatusReady: lipgloss.NewStyle().Foreground(ReadyColor),
		StatusError: lipgloss.NewStyle().Foreground(ErrorColor),
		Spinner:     lipgloss.NewStyle().Foreground(BusyColor),
	}
}

// DefaultStyles returns styles with the detected theme.
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}
