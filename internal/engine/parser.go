package engine

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Block is one speaker-attributed run of narrative text.
type Block struct {
	Speaker string
	Text    string
}

// ParseResult carries the attributed blocks plus the label left holding
// the floor when the text ended. TrailingSpeaker is empty when no
// explicit label was seen.
type ParseResult struct {
	Blocks          []Block
	TrailingSpeaker string
}

// maxLabelLen bounds speaker labels so a sentence containing a stray
// colon is not mistaken for one.
const maxLabelLen = 40

// actionVerbs is the vocabulary used to catch narration that arrived
// under a character's label, e.g. `Clerk: You pick up the can.` The
// clerk cannot narrate the player's actions, so such lines are split.
var actionVerbs = map[string]struct{}{
	"pick":    {},
	"grab":    {},
	"take":    {},
	"walk":    {},
	"open":    {},
	"close":   {},
	"leave":   {},
	"turn":    {},
	"sit":     {},
	"stand":   {},
	"look":    {},
	"head":    {},
	"step":    {},
	"reach":   {},
	"push":    {},
	"pull":    {},
	"climb":   {},
	"enter":   {},
	"exit":    {},
	"examine": {},
}

// disallowedSpeaker reports whether a label claims the player's own
// voice. The model must never speak as the player; such lines are
// discarded outright.
func disallowedSpeaker(label string) bool {
	switch strings.ToLower(label) {
	case "you", "player", "user":
		return true
	}
	return false
}

// validLabel reports whether candidate can be a speaker label: short,
// at least one letter, and only letters, digits, spaces, apostrophes,
// or hyphens.
func validLabel(candidate string) bool {
	if candidate == "" || utf8.RuneCountInString(candidate) > maxLabelLen {
		return false
	}
	hasLetter := false
	for _, r := range candidate {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r), r == ' ', r == '\'', r == '-':
		default:
			return false
		}
	}
	return hasLetter
}

// splitLabel extracts a speaker label from a line. It returns the label,
// the remainder after the colon with leading whitespace removed, and
// whether the line carried a valid label at all.
func splitLabel(line string) (label, rest string, ok bool) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return "", "", false
	}
	label = strings.TrimSpace(line[:idx])
	if !validLabel(label) {
		return "", "", false
	}
	return label, strings.TrimLeft(line[idx+1:], " \t"), true
}

// looksLikePlayerAction reports whether text reads as second-person
// narration, i.e. starts with "you" plus a known action verb.
func looksLikePlayerAction(text string) bool {
	lower := strings.ToLower(text)
	if !strings.HasPrefix(lower, "you ") {
		return false
	}
	word := strings.TrimLeft(lower[4:], " ")
	end := 0
	for end < len(word) && word[end] >= 'a' && word[end] <= 'z' {
		end++
	}
	_, known := actionVerbs[word[:end]]
	return known
}

// sentenceBoundary returns the index just past the first sentence-ending
// punctuation that is followed by a space, or -1 when the text is a
// single sentence.
func sentenceBoundary(text string) int {
	best := -1
	for _, sep := range []string{". ", "? ", "! "} {
		if idx := strings.Index(text, sep); idx >= 0 && (best < 0 || idx < best) {
			best = idx
		}
	}
	if best < 0 {
		return -1
	}
	return best + 1
}

// blockBuilder accumulates speaker blocks while the parser walks lines.
// Completed blocks are trimmed of trailing whitespace, empty blocks are
// dropped, and adjacent blocks by the same speaker merge newline-joined.
type blockBuilder struct {
	blocks  []Block
	speaker string
	lines   []string
	open    bool
}

func (b *blockBuilder) flush() {
	if !b.open {
		return
	}
	speaker := b.speaker
	text := strings.TrimRight(strings.Join(b.lines, "\n"), " \t\r\n")
	b.speaker, b.lines, b.open = "", nil, false
	if text == "" {
		return
	}
	if n := len(b.blocks); n > 0 && strings.EqualFold(b.blocks[n-1].Speaker, speaker) {
		b.blocks[n-1].Text += "\n" + text
		return
	}
	b.blocks = append(b.blocks, Block{Speaker: speaker, Text: text})
}

func (b *blockBuilder) openBlock(speaker string) {
	b.flush()
	b.speaker = speaker
	b.open = true
}

func (b *blockBuilder) append(line string) {
	if !b.open {
		b.openBlock(NarratorLabel)
	}
	b.lines = append(b.lines, line)
}

// ParseNarration splits raw model output into speaker-attributed blocks.
// A line whose prefix before the first colon forms a valid label opens a
// block for that speaker; unlabeled lines continue whichever block is
// open, defaulting to the narrator. Lines labeled as the player are
// dropped. The function is pure: same input, same result.
func ParseNarration(raw string) ParseResult {
	var b blockBuilder
	trailing := ""
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		label, rest, ok := splitLabel(line)
		if !ok {
			b.append(line)
			continue
		}
		if disallowedSpeaker(label) {
			continue
		}
		if strings.EqualFold(label, NarratorLabel) {
			label = NarratorLabel
		}
		if label != NarratorLabel && looksLikePlayerAction(rest) {
			narration, dialogue := splitMisattributed(rest)
			b.openBlock(NarratorLabel)
			b.append(narration)
			trailing = NarratorLabel
			if dialogue != "" {
				b.openBlock(label)
				b.append(dialogue)
				trailing = label
			}
			continue
		}
		b.openBlock(label)
		if rest != "" {
			b.append(rest)
		}
		trailing = label
	}
	b.flush()
	return ParseResult{Blocks: b.blocks, TrailingSpeaker: trailing}
}

// splitMisattributed divides second-person text that arrived under a
// character's label. Everything before the first quotation mark is
// narration and the quoted part onward is the character's dialogue; with
// no quote present the split falls at the first sentence boundary
// instead, and a single sentence is all narration.
func splitMisattributed(text string) (narration, dialogue string) {
	if q := strings.IndexByte(text, '"'); q >= 0 {
		return strings.TrimRight(text[:q], " \t"), text[q:]
	}
	if cut := sentenceBoundary(text); cut >= 0 {
		return text[:cut], strings.TrimLeft(text[cut:], " ")
	}
	return text, ""
}

// stripDisallowedLines removes lines claiming the player's voice,
// keeping everything else verbatim. Used on the fallback path when no
// blocks parsed.
func stripDisallowedLines(raw string) string {
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		if label, _, ok := splitLabel(strings.TrimSuffix(line, "\r")); ok && disallowedSpeaker(label) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// FallbackNarration is the safety net for output the parser could make
// nothing of: player-voiced lines are stripped and whatever remains is
// attributed wholesale to the narrator. The second return is false when
// nothing survives.
func FallbackNarration(raw string) (Block, bool) {
	cleaned := stripDisallowedLines(raw)
	if cleaned == "" {
		return Block{}, false
	}
	return Block{Speaker: NarratorLabel, Text: cleaned}, true
}
