package engine

import (
	"taleweaver/internal/perception"
)

// MaxHistoryItems is the default cap on conversation items kept across
// all chunks.
const MaxHistoryItems = 60

// ConversationStore keeps the rolling model conversation as an ordered
// list of chunks. A chunk is either the player's single input item or
// the complete output item list of one model response, stored verbatim
// so reasoning items replay byte for byte. Eviction drops whole chunks
// oldest-first; a response is never split.
type ConversationStore struct {
	limit  int
	chunks [][]perception.Item
}

// NewConversationStore returns a store bounded to limit total items.
// Non-positive limits fall back to MaxHistoryItems.
func NewConversationStore(limit int) *ConversationStore {
	if limit <= 0 {
		limit = MaxHistoryItems
	}
	return &ConversationStore{limit: limit}
}

// AppendChunk records one chunk of conversation items. Empty chunks are
// ignored. The slice is retained, not copied; callers hand over
// ownership.
func (s *ConversationStore) AppendChunk(items []perception.Item) {
	if len(items) == 0 {
		return
	}
	s.chunks = append(s.chunks, items)
	s.trim()
}

// AppendUserMessage records a single-item chunk carrying the player's
// text.
func (s *ConversationStore) AppendUserMessage(text string) {
	s.AppendChunk([]perception.Item{perception.MessageItem("user", text)})
}

// trim evicts oldest chunks until the total item count fits the limit.
// A lone oversize chunk is evicted too, leaving the store empty.
func (s *ConversationStore) trim() {
	for s.ItemCount() > s.limit {
		if len(s.chunks) == 0 {
			return
		}
		s.chunks = s.chunks[1:]
	}
}

// ItemCount returns the total number of items across all chunks.
func (s *ConversationStore) ItemCount() int {
	n := 0
	for _, c := range s.chunks {
		n += len(c)
	}
	return n
}

// ChunkCount returns the number of stored chunks.
func (s *ConversationStore) ChunkCount() int {
	return len(s.chunks)
}

// Snapshot returns a copy of the chunk list safe to read from a
// background worker. Items themselves are immutable raw bytes and are
// shared.
func (s *ConversationStore) Snapshot() [][]perception.Item {
	out := make([][]perception.Item, len(s.chunks))
	for i, c := range s.chunks {
		out[i] = append([]perception.Item(nil), c...)
	}
	return out
}

// Flatten returns every item in order, ready to follow the system
// preamble in a request.
func (s *ConversationStore) Flatten() []perception.Item {
	out := make([]perception.Item, 0, s.ItemCount())
	for _, c := range s.chunks {
		out = append(out, c...)
	}
	return out
}

// Reset discards all stored conversation.
func (s *ConversationStore) Reset() {
	s.chunks = nil
}
