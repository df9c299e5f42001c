package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taleweaver/internal/perception"
)

// ScenePlaceholder stands in for the scene panel whenever rendering
// fails or comes back blank. Scene trouble never interrupts play.
const ScenePlaceholder = "(scene unavailable)"

// scenePrompt asks for a compact ASCII illustration of the moment.
const scenePrompt = `You are an ASCII artist for a text adventure game.
Draw the described scene as plain ASCII art, at most 20 lines and 60 columns.
Use only printable ASCII characters.
Do not use markdown code fences.
Do not add titles, labels, or commentary; output the drawing only.
`

// SceneOrchestrator requests illustrations of the current moment. One
// attempt, no retry; the story loop never waits on it.
type SceneOrchestrator struct {
	client    Completer
	maxTokens int
}

// NewSceneOrchestrator returns a scene renderer capped at maxTokens per
// request.
func NewSceneOrchestrator(client Completer, maxTokens int) *SceneOrchestrator {
	return &SceneOrchestrator{client: client, maxTokens: maxTokens}
}

// BuildSceneContext renders the user item describing what to draw:
// world facts plus the latest narration, which carries the visual
// detail the state lacks.
func BuildSceneContext(state GameState, recent string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current turn: %d\n", state.Turn)
	fmt.Fprintf(&sb, "Location: %s\n", state.Location)
	fmt.Fprintf(&sb, "Inventory: %s\n", state.InventorySummary())
	fmt.Fprintf(&sb, "Flags: %s\n", state.FlagsSummary())
	fmt.Fprintf(&sb, "Current speaker: %s\n", state.SpeakerSummary())
	sb.WriteString("Recent narration/dialogue:\n")
	sb.WriteString(recent)
	return sb.String()
}

// Render requests one scene drawing and returns it normalized. Callers
// substitute ScenePlaceholder on error or blank output.
func (o *SceneOrchestrator) Render(ctx context.Context, state GameState, recent string) (string, error) {
	input := []perception.Item{
		perception.MessageItem("system", scenePrompt),
		perception.MessageItem("user", BuildSceneContext(state, recent)),
	}
	ex, err := o.client.Complete(ctx, input, o.maxTokens)
	if err != nil {
		return "", err
	}
	if !ex.OK {
		return "", errors.New("no scene text in response")
	}
	return NormalizeScene(ex.Text), nil
}

// NormalizeScene converts line endings to LF and trims leading and
// trailing blank lines, keeping interior blanks that shape the drawing.
func NormalizeScene(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	start, end := 0, len(lines)
	for start < end && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
