package engine

import "strings"

// NarratorLabel is the canonical speaker label for narration. Model
// output may spell it in any case; it is normalized to this form.
const NarratorLabel = "Narrator"

// GameState is the lightweight world model the narrator is reminded of
// on every turn. It is advisory context for the model, not a simulation:
// the player mutates it through slash commands and the engine only
// advances Turn and ActiveSpeaker.
type GameState struct {
	// Turn counts completed exchanges. Starts at 0 and only grows.
	Turn int
	// Location is free-form text describing where the player is.
	Location string
	// Inventory is an ordered list of carried items. Duplicates are
	// allowed; removal takes the first match.
	Inventory []string
	// Flags is an ordered set of story markers. Duplicates are rejected.
	Flags []string
	// ActiveSpeaker is the character currently holding the conversation,
	// or empty when the narrator has the floor.
	ActiveSpeaker string
}

// NewGameState returns the starting state for a fresh session.
func NewGameState() GameState {
	return GameState{Location: "Unknown"}
}

// Clone returns a deep copy safe to hand to a background worker while
// the original keeps mutating.
func (s GameState) Clone() GameState {
	c := s
	c.Inventory = append([]string(nil), s.Inventory...)
	c.Flags = append([]string(nil), s.Flags...)
	return c
}

// SetLocation replaces the current location.
func (s *GameState) SetLocation(loc string) {
	s.Location = loc
}

// AddItem appends an item to the inventory.
func (s *GameState) AddItem(item string) {
	s.Inventory = append(s.Inventory, item)
}

// RemoveItem removes the first inventory entry matching item and
// reports whether anything was removed.
func (s *GameState) RemoveItem(item string) bool {
	for i, have := range s.Inventory {
		if have == item {
			s.Inventory = append(s.Inventory[:i], s.Inventory[i+1:]...)
			return true
		}
	}
	return false
}

// SetFlag records a story flag. It reports false if the flag was
// already set; flags never hold duplicates.
func (s *GameState) SetFlag(flag string) bool {
	for _, have := range s.Flags {
		if have == flag {
			return false
		}
	}
	s.Flags = append(s.Flags, flag)
	return true
}

// ClearFlag removes a story flag and reports whether it was present.
func (s *GameState) ClearFlag(flag string) bool {
	for i, have := range s.Flags {
		if have == flag {
			s.Flags = append(s.Flags[:i], s.Flags[i+1:]...)
			return true
		}
	}
	return false
}

// InventorySummary renders the inventory for prompts, "Empty" when
// nothing is carried.
func (s GameState) InventorySummary() string {
	if len(s.Inventory) == 0 {
		return "Empty"
	}
	return strings.Join(s.Inventory, ", ")
}

// FlagsSummary renders the flags for prompts, "None" when no flags are
// set.
func (s GameState) FlagsSummary() string {
	if len(s.Flags) == 0 {
		return "None"
	}
	return strings.Join(s.Flags, ", ")
}

// SpeakerSummary renders the active speaker for prompts, falling back
// to the narrator when nobody holds the floor.
func (s GameState) SpeakerSummary() string {
	if s.ActiveSpeaker == "" {
		return NarratorLabel
	}
	return s.ActiveSpeaker
}
