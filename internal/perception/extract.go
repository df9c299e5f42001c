package perception

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// extractResponse scans a parsed response for assistant text. Preference
// order: concatenated output_text parts from assistant message items,
// then refusal parts anywhere in the output, then the top-level
// output_text field. Diagnostics describe every output item regardless
// of which branch produced text, so an empty response can be explained
// after the fact.
func extractResponse(envelope responseEnvelope) Extraction {
	if envelope.Output == nil {
		ex := Extraction{Diagnostics: "output: <missing>"}
		if envelope.OutputText != nil {
			ex.Text = *envelope.OutputText
			ex.OK = true
		}
		return ex
	}

	var (
		texts      []string
		refusals   []string
		debugLines []string
		items      []Item
	)

	if envelope.OutputText != nil {
		debugLines = append(debugLines, fmt.Sprintf("output_text:len=%d", utf8.RuneCountInString(*envelope.OutputText)))
	}

	for _, raw := range envelope.Output {
		var view outputItemView
		// Non-object items decode to the zero view and fall through as
		// unknown entries below.
		_ = json.Unmarshal(raw, &view)

		itemType := view.Type
		if itemType == "" {
			itemType = "unknown"
		}
		itemRole := view.Role
		if itemRole == "" {
			itemRole = "-"
		}

		var contentTypes []string
		for _, part := range view.Content {
			if part.Type == "" {
				continue
			}
			contentTypes = append(contentTypes, part.Type)
			if part.Type == "refusal" && part.Refusal != nil {
				refusals = append(refusals, *part.Refusal)
			}
		}

		if len(contentTypes) == 0 {
			debugLines = append(debugLines, fmt.Sprintf("output: type=%s role=%s content=[]", itemType, itemRole))
		} else {
			debugLines = append(debugLines, fmt.Sprintf("output: type=%s role=%s content=%s", itemType, itemRole, strings.Join(contentTypes, ",")))
		}

		items = append(items, raw)

		if view.Type != "message" || view.Role != "assistant" {
			continue
		}
		for _, part := range view.Content {
			if part.Type == "output_text" && part.Text != nil {
				texts = append(texts, *part.Text)
			}
		}
	}

	ex := Extraction{
		Items:       items,
		Diagnostics: strings.Join(debugLines, " | "),
	}

	switch {
	case len(texts) > 0:
		ex.Text = strings.Join(texts, "")
		ex.OK = true
	case len(refusals) > 0:
		ex.Text = "Refusal: " + strings.Join(refusals, "\n")
		ex.OK = true
	case envelope.OutputText != nil:
		ex.Text = *envelope.OutputText
		ex.OK = true
	}

	return ex
}

// extractAPIErrorMessage pulls error.message out of an API error body.
// Returns the raw body when the field is absent, empty, or unparseable.
func extractAPIErrorMessage(body string) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return body
	}
	message := strings.TrimSpace(parsed.Error.Message)
	if message == "" {
		return body
	}
	return message
}
