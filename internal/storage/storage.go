package storage

import "time"

// Kind names the path of a chat turn that produced the reply.
type Kind string

const (
	KindInvalid      Kind = "invalid"
	KindMood         Kind = "mood"
	KindEventSaved   Kind = "event_saved"
	KindAwaitingDate Kind = "awaiting_date"
	KindRecall       Kind = "recall"
	KindReply        Kind = "reply"
	KindError        Kind = "error"
)

// Interaction is one chat turn as written to the interaction log.
type Interaction struct {
	Timestamp         time.Time `json:"timestamp"`
	Identity          string    `json:"identity"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	Mood              string    `json:"mood,omitempty"`
	Kind              Kind      `json:"kind"`
	EventTitle        string    `json:"event_title,omitempty"`
}

// Recorder persists interactions in append order.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(it Interaction) error
	LoadInteractions() ([]Interaction, error)
}

// Nop discards everything. Used when the log path is empty.
type Nop struct{}

func (Nop) AppendInteraction(Interaction) error      { return nil }
func (Nop) LoadInteractions() ([]Interaction, error) { return nil, nil }
