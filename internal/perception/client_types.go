package perception

import (
	"encoding/json"
	"fmt"
)

// Item is a single conversation item in completion API wire form. Items
// parsed from model output are kept raw rather than decoded into structs,
// so reasoning items with encrypted payloads replay byte for byte when
// the history is resubmitted.
type Item = json.RawMessage

// messageItem is the shape of the plain role/content items we build
// ourselves (system preamble, player input, retry nudge).
type messageItem struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MessageItem builds a plain role/content conversation item.
func MessageItem(role, content string) Item {
	data, err := json.Marshal(messageItem{Role: role, Content: content})
	if err != nil {
		// A struct of two strings cannot fail to marshal.
		panic(err)
	}
	return Item(data)
}

// responsesRequest is the completion endpoint request body.
type responsesRequest struct {
	Model           string           `json:"model"`
	Input           []Item           `json:"input"`
	MaxOutputTokens int              `json:"max_output_tokens"`
	Text            textOptions      `json:"text"`
	Reasoning       reasoningOptions `json:"reasoning"`
	Include         []string         `json:"include"`
}

type textOptions struct {
	Format textFormat `json:"format"`
}

type textFormat struct {
	Type string `json:"type"`
}

type reasoningOptions struct {
	Effort string `json:"effort"`
}

// validateRequest is the minimal body for the key validation probe.
type validateRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// responseEnvelope is the subset of the response we act on. Output stays
// raw; a nil slice means the output array was absent or null.
type responseEnvelope struct {
	Output     []Item  `json:"output"`
	OutputText *string `json:"output_text"`
}

// outputItemView is the typed lens used when scanning raw output items.
// Fields the scan does not need are left undecoded.
type outputItemView struct {
	Type    string            `json:"type"`
	Role    string            `json:"role"`
	Content []contentPartView `json:"content"`
}

// contentPartView is one content part. Text and Refusal are pointers
// because either may be absent depending on the part type.
type contentPartView struct {
	Type    string  `json:"type"`
	Text    *string `json:"text"`
	Refusal *string `json:"refusal"`
}

// Extraction is the outcome of scanning a completion response for
// assistant text.
type Extraction struct {
	Text        string // usable assistant text; meaningful only when OK
	OK          bool   // whether any usable text was found
	Items       []Item // raw output items, for history round-tripping
	Diagnostics string // per-item summary for debug surfaces
}

// APIError is a non-success HTTP response from the completion endpoint.
type APIError struct {
	StatusCode int
	Status     string // e.g. "429 Too Many Requests"
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("OpenAI API error (%s): %s", e.Status, e.Body)
}
