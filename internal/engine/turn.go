package engine

import (
	"context"
	"errors"
	"fmt"

	"taleweaver/internal/logging"
	"taleweaver/internal/perception"
)

// SystemPrompt is the standing instruction set sent as the first item of
// every story request.
const SystemPrompt = `You are a text adventure game narrator.
Write in second person, present tense.
Always prefix each line with a speaker label, e.g. "Narrator:" or "Clerk:".
Only the narrator or in-world characters may speak. Never output lines for the player (no "You:", "Player:", or "User:").
Use one speaker label per block; do not repeat the same label for consecutive lines.
Use the "Current speaker" field below: if it is not "Narrator", the player is addressing that character.
If the player directly addresses a named character, respond as that character until the dialogue ends.
If the player leaves, moves away, or ends the interaction, switch back to "Narrator:" and do not continue the character's dialogue.
If the player addresses "him/her/them" or speaks to someone in the scene, pick the most likely character and respond as them.
During dialogue, the Narrator should stay silent unless ending the dialogue; use "Narrator:" to resume narration.
Narrator describes actions and scene changes; characters only speak dialogue. If both are needed, use two lines: Narrator first, then the character.
When a character speaks, use quotation marks around their words.
Keep character names consistent when labeling lines.
Keep responses concise: 1-2 short paragraphs, then ask what the player does next.
Do not use markdown code fences or JSON in your response.
Avoid meta commentary about being an AI.
`

// RetryNudge is appended as an extra user item when the first attempt
// comes back without visible text.
const RetryNudge = "Please respond with visible text only."

// ErrNoOutputText is the terminal failure after both attempts returned
// no visible text.
var ErrNoOutputText = errors.New("No output text found in response.")

// Completer is the slice of the perception client the orchestrators
// need. Satisfied by *perception.Client.
type Completer interface {
	Complete(ctx context.Context, input []perception.Item, maxTokens int) (perception.Extraction, error)
	Model() string
}

// TurnResult is one successful story advance: the narrative text, the
// raw response items to append to history, and the extraction summary
// for debug display.
type TurnResult struct {
	Text        string
	Items       []perception.Item
	Diagnostics string
}

// TurnOrchestrator drives the request/response cycle for story turns.
// It is stateless between calls; all session state arrives as
// snapshots.
type TurnOrchestrator struct {
	client    Completer
	maxTokens int
	debug     bool
}

// NewTurnOrchestrator returns an orchestrator that requests up to
// maxTokens of output per attempt. With debug set, terminal failures
// carry the extraction summary.
func NewTurnOrchestrator(client Completer, maxTokens int, debug bool) *TurnOrchestrator {
	return &TurnOrchestrator{client: client, maxTokens: maxTokens, debug: debug}
}

// BuildPreamble renders the system item for a state snapshot. The
// model sees the standing instructions followed by the current world
// facts.
func BuildPreamble(state GameState) string {
	return fmt.Sprintf("%s\nCurrent turn: %d\nLocation: %s\nInventory: %s\nFlags: %s\nCurrent speaker: %s",
		SystemPrompt, state.Turn, state.Location,
		state.InventorySummary(), state.FlagsSummary(), state.SpeakerSummary())
}

// Advance runs one story turn against a history and state snapshot. The
// request is the fresh system preamble followed by every history item
// in order; the player's newest input is already the last history
// chunk. Empty model output earns exactly one retry with a nudge
// appended; transport and API errors fail immediately.
func (o *TurnOrchestrator) Advance(ctx context.Context, history [][]perception.Item, state GameState) (TurnResult, error) {
	base := make([]perception.Item, 0, 1+historyLen(history))
	base = append(base, perception.MessageItem("system", BuildPreamble(state)))
	for _, chunk := range history {
		base = append(base, chunk...)
	}

	lastDiag := ""
	for attempt := 0; attempt < 2; attempt++ {
		input := base
		if attempt > 0 {
			logging.EngineDebug("turn %d: empty output, retrying with nudge", state.Turn)
			logging.Audit().LLMRetry(state.Turn, attempt, lastDiag)
			input = append(append(make([]perception.Item, 0, len(base)+1), base...),
				perception.MessageItem("user", RetryNudge))
		}
		ex, err := o.client.Complete(ctx, input, o.maxTokens)
		if err != nil {
			return TurnResult{}, err
		}
		lastDiag = ex.Diagnostics
		if ex.OK {
			return TurnResult{Text: ex.Text, Items: ex.Items, Diagnostics: ex.Diagnostics}, nil
		}
	}
	if o.debug && lastDiag != "" {
		return TurnResult{}, fmt.Errorf("%w Output summary: %s", ErrNoOutputText, lastDiag)
	}
	return TurnResult{}, ErrNoOutputText
}

func historyLen(history [][]perception.Item) int {
	n := 0
	for _, c := range history {
		n += len(c)
	}
	return n
}
