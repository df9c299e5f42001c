// Package story provides the interactive terminal interface for
// playing a taleWEAVER session. The functionality is split across
// files:
//   - model.go: model type, construction, Init
//   - update.go: event loop (keys, worker results, resize)
//   - commands.go: /command handling
//   - process.go: background turn and scene workers
//   - view.go: rendering
//   - session.go: transcript persistence and session listing
package story

import (
	"time"

	"taleweaver/cmd/tale/ui"
	"taleweaver/internal/config"
	"taleweaver/internal/engine"
	"taleweaver/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Config carries everything the interface needs to run a session.
type Config struct {
	Workspace string
	App       *config.Config
	Client    engine.Completer
	Store     *store.TranscriptStore // nil disables persistence
	Debug     bool
}

// thinkingFrames sweep a marker across the status line while a turn is
// in flight.
var thinkingFrames = []string{
	"[>     ]",
	"[>>    ]",
	"[>>>   ]",
	"[ >>>  ]",
	"[  >>> ]",
	"[   >>>]",
	"[    >>]",
	"[     >]",
}

const (
	statusReady    = "Ready"
	statusThinking = "Thinking..."
	statusError    = "Error"
)

// Background worker results. Each carries the generation it was
// started under; stale generations are discarded on arrival.
type turnResultMsg struct {
	gen int
	res engine.TurnResult
}

type turnErrorMsg struct {
	gen int
	err error
}

type sceneResultMsg struct {
	gen   int
	scene string
	err   error
}

// Model is the bubbletea model for a play session.
type Model struct {
	cfg    Config
	styles ui.Styles

	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model

	sess   *engine.Session
	turns  *engine.TurnOrchestrator
	scenes *engine.SceneOrchestrator

	// busy guards the single in-flight turn worker; scene workers run
	// independently. generation invalidates in-flight results across a
	// reset.
	busy       bool
	sceneBusy  bool
	generation int

	status    string
	persisted int // transcript entries already written to the store

	width  int
	height int
	ready  bool
}

// NewModel builds the interface and opens a fresh session.
func NewModel(cfg Config) Model {
	appCfg := cfg.App
	if appCfg == nil {
		appCfg = config.DefaultConfig()
	}
	styles := ui.NewStyles(ui.ThemeFromName(appCfg.UI.Theme))

	ti := textinput.New()
	ti.Placeholder = "Describe what you do..."
	ti.Focus()
	ti.Prompt = "| "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.PromptStyle = styles.Prompt

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{Frames: thinkingFrames, FPS: 120 * time.Millisecond}
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)

	sess := engine.NewSession(newSessionID(), appCfg.Session.HistoryLimit, cfg.Debug)

	m := Model{
		cfg:       cfg,
		styles:    styles,
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		sess:      sess,
		turns:     engine.NewTurnOrchestrator(cfg.Client, appCfg.Model.StoryMaxTokens, cfg.Debug),
		scenes:    engine.NewSceneOrchestrator(cfg.Client, appCfg.Model.SceneMaxTokens),
		status:    statusReady,
	}
	m.beginPersistedSession()
	m.persistLog()
	m.refreshTranscript()
	return m
}

// Init starts the input cursor and spinner tickers.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Run starts the interactive session and blocks until the player
// quits.
func Run(cfg Config) error {
	p := tea.NewProgram(NewModel(cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
