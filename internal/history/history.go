package history

import (
	"strings"
	"time"

	"mindcare/internal/llm"
)

// Entry is one message of a conversation as it is persisted.
type Entry struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"` // epoch ms
}

func (e Entry) At() time.Time { return time.UnixMilli(e.Timestamp) }

// Append adds e and evicts from the front until len <= limit. limit <= 0 disables the cap.
// The returned slice never aliases the eviction window, so callers may keep old slices.
func Append(entries []Entry, e Entry, limit int) []Entry {
	entries = append(entries, e)
	if limit > 0 && len(entries) > limit {
		drop := len(entries) - limit
		entries = append([]Entry(nil), entries[drop:]...)
	}
	return entries
}

// ToLLM converts stored entries into model context, skipping blank and unknown roles.
func ToLLM(entries []Entry) []llm.Message {
	out := make([]llm.Message, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Content) == "" {
			continue
		}
		switch e.Role {
		case llm.RoleUser, llm.RoleAssistant:
			out = append(out, llm.Message{Role: e.Role, Content: e.Content})
		}
	}
	return out
}

// Tail returns a copy of the last n entries.
func Tail(entries []Entry, n int) []Entry {
	if n <= 0 || n >= len(entries) {
		return append([]Entry(nil), entries...)
	}
	return append([]Entry(nil), entries[len(entries)-n:]...)
}
