package engine

import "strings"

// Exit cues in the player's own words. Prefixes match the start of the
// input, substrings match anywhere; all checks run on the lowercased
// text before the request is built, so the preamble already shows the
// narrator back in charge.
var (
	exitPrefixes   = []string{"leave ", "walk away", "exit"}
	exitSubstrings = []string{"outside now", "i'm gone"}
)

// InputSignalsExit reports whether the player's input reads like
// walking out of the current conversation.
func InputSignalsExit(input string) bool {
	lower := strings.ToLower(strings.TrimSpace(input))
	for _, p := range exitPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	for _, s := range exitSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// NextActiveSpeaker maps a parse's trailing label onto the state field:
// a character keeps the floor, the narrator or an absent label clears
// it.
func NextActiveSpeaker(trailing string) string {
	if trailing == "" || strings.EqualFold(trailing, NarratorLabel) {
		return ""
	}
	return trailing
}
