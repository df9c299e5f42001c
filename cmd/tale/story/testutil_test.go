// Package story provides test utilities for TUI testing.
// This file contains mocks, fixtures, and helpers for testing the story package.
package story

import (
	"context"
	"sync"

	"taleweaver/internal/config"
	"taleweaver/internal/engine"
	"taleweaver/internal/perception"
	"taleweaver/internal/store"
)

// =============================================================================
// MOCK COMPLETER
// =============================================================================

// MockCompleter simulates the perception client for testing.
// Implements engine.Completer.
type MockCompleter struct {
	mu          sync.Mutex
	scripted    []perception.Extraction
	defaultText string
	callCount   int
	lastInput   []perception.Item
	shouldError bool
	errorMsg    string
	shouldPanic bool
}

// NewMockCompleter creates a mock that narrates a fixed line forever.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{defaultText: "The corridor stretches into darkness."}
}

// Complete implements engine.Completer. Scripted extractions are
// consumed in order; once exhausted the default narration repeats.
func (c *MockCompleter) Complete(_ context.Context, input []perception.Item, _ int) (perception.Extraction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shouldPanic {
		panic("mock completer crash")
	}

	i := c.callCount
	c.callCount++
	c.lastInput = input

	if c.shouldError {
		return perception.Extraction{}, &MockError{msg: c.errorMsg}
	}
	if i < len(c.scripted) {
		return c.scripted[i], nil
	}
	return narration(c.defaultText), nil
}

// Model implements engine.Completer.
func (c *MockCompleter) Model() string { return "gpt-5-mini" }

// QueueResponse appends a scripted extraction for an upcoming call.
func (c *MockCompleter) QueueResponse(ex perception.Extraction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripted = append(c.scripted, ex)
}

// SetDefaultText changes the narration returned once scripted
// responses run out.
func (c *MockCompleter) SetDefaultText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultText = text
}

// SetError configures every subsequent call to fail.
func (c *MockCompleter) SetError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shouldError = true
	c.errorMsg = msg
}

// SetPanic configures every subsequent call to panic.
func (c *MockCompleter) SetPanic() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shouldPanic = true
}

// GetCallCount returns the number of Complete calls.
func (c *MockCompleter) GetCallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callCount
}

// GetLastInput returns the items sent on the most recent call.
func (c *MockCompleter) GetLastInput() []perception.Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastInput
}

// narration builds a successful extraction carrying visible text.
func narration(text string) perception.Extraction {
	return perception.Extraction{
		Text:  text,
		OK:    true,
		Items: []perception.Item{perception.MessageItem("assistant", text)},
	}
}

// =============================================================================
// MOCK ERROR
// =============================================================================

// MockError is a simple error type for testing.
type MockError struct {
	msg string
}

func (e *MockError) Error() string {
	return e.msg
}

// =============================================================================
// TEST MODEL BUILDER
// =============================================================================

// TestModelOption configures a test model.
type TestModelOption func(*Model)

// NewTestModel creates a Model suitable for testing: default config,
// mock completer, persistence disabled.
func NewTestModel(opts ...TestModelOption) Model {
	m := NewModel(Config{
		Workspace: "/tmp/test-workspace",
		App:       config.DefaultConfig(),
		Client:    NewMockCompleter(),
	})
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// WithClient swaps the completer and rebuilds the orchestrators that
// hold it.
func WithClient(client engine.Completer) TestModelOption {
	return func(m *Model) {
		m.cfg.Client = client
		m.turns = engine.NewTurnOrchestrator(client, m.cfg.App.Model.StoryMaxTokens, m.cfg.Debug)
		m.scenes = engine.NewSceneOrchestrator(client, m.cfg.App.Model.SceneMaxTokens)
	}
}

// WithSize sets the terminal dimensions and lays out the components.
func WithSize(width, height int) TestModelOption {
	return func(m *Model) {
		m.width = width
		m.height = height
		m.ready = true
		m.layout()
	}
}

// WithBusy marks a turn in flight.
func WithBusy(busy bool) TestModelOption {
	return func(m *Model) {
		m.busy = busy
		if busy {
			m.status = statusThinking
		}
	}
}

// WithStore attaches a transcript store and persists the transcript
// written so far.
func WithStore(s *store.TranscriptStore) TestModelOption {
	return func(m *Model) {
		m.cfg.Store = s
		m.beginPersistedSession()
		m.persistLog()
	}
}
