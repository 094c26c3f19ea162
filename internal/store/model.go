package store

import (
	"sort"
	"time"

	"mindcare/internal/history"
)

// SchemaVersion is written into every saved document.
const SchemaVersion = 1

type Language string

const (
	LanguageHinglish Language = "hinglish"
	LanguageEnglish  Language = "english"
	LanguageHindi    Language = "hindi"
)

// ParseLanguage returns the language for s and whether it is known.
func ParseLanguage(s string) (Language, bool) {
	switch l := Language(s); l {
	case LanguageHinglish, LanguageEnglish, LanguageHindi:
		return l, true
	}
	return "", false
}

type Profile struct {
	Mood       *string  `json:"mood"`
	Name       *string  `json:"name"`
	Language   Language `json:"language"`
	Stress     int      `json:"stress"`
	Confidence int      `json:"confidence"`
}

type StateKind string

const (
	StateIdle         StateKind = "idle"
	StateAwaitingDate StateKind = "awaiting_date"
)

// PendingEvent is an event whose time has not been given yet.
type PendingEvent struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

// ConversationState is Idle or AwaitingDate(Pending). Use Await and Resolve
// rather than setting the fields directly.
type ConversationState struct {
	Kind    StateKind     `json:"kind"`
	Pending *PendingEvent `json:"pending,omitempty"`
}

type Milestone string

const (
	MilestoneBefore Milestone = "before"
	MilestoneAfter  Milestone = "after"
)

type Notified struct {
	Before bool `json:"before"`
	After  bool `json:"after"`
}

func (n Notified) Has(m Milestone) bool {
	switch m {
	case MilestoneBefore:
		return n.Before
	case MilestoneAfter:
		return n.After
	}
	return false
}

// Mark sets the flag for m. Flags never go back to false.
func (n *Notified) Mark(m Milestone) {
	switch m {
	case MilestoneBefore:
		n.Before = true
	case MilestoneAfter:
		n.After = true
	}
}

type Event struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description *string  `json:"description,omitempty"`
	Timestamp   int64    `json:"timestamp"` // epoch ms
	CreatedAt   int64    `json:"createdAt"` // epoch ms
	Source      string   `json:"source,omitempty"`
	Notified    Notified `json:"notified"`
}

func (e Event) At() time.Time { return time.UnixMilli(e.Timestamp) }

type UserRecord struct {
	Profile   Profile           `json:"profile"`
	History   []history.Entry   `json:"history"`
	State     ConversationState `json:"state"`
	Events    []Event           `json:"events"`
	CreatedAt int64             `json:"createdAt"`
	UpdatedAt int64             `json:"updatedAt"`
}

type Document struct {
	Version int                    `json:"version"`
	Users   map[string]*UserRecord `json:"users"`
}

func NewDocument() *Document {
	return &Document{Version: SchemaVersion, Users: make(map[string]*UserRecord)}
}

func newUserRecord(now time.Time) *UserRecord {
	ms := now.UnixMilli()
	return &UserRecord{
		Profile: Profile{
			Language:   LanguageHinglish,
			Stress:     5,
			Confidence: 5,
		},
		History:   []history.Entry{},
		State:     ConversationState{Kind: StateIdle},
		Events:    []Event{},
		CreatedAt: ms,
		UpdatedAt: ms,
	}
}

// GetOrCreate returns the record for identity, creating it with defaults on first access.
func (d *Document) GetOrCreate(identity string, now time.Time) *UserRecord {
	if d.Users == nil {
		d.Users = make(map[string]*UserRecord)
	}
	rec, ok := d.Users[identity]
	if !ok {
		rec = newUserRecord(now)
		d.Users[identity] = rec
	}
	rec.normalize()
	return rec
}

// Identities returns user keys in a stable order.
func (d *Document) Identities() []string {
	ids := make([]string, 0, len(d.Users))
	for id := range d.Users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// normalize repairs records written by older versions or by hand.
func (r *UserRecord) normalize() {
	if r.Profile.Language == "" {
		r.Profile.Language = LanguageHinglish
	}
	r.Profile.Stress = clamp(r.Profile.Stress, 1, 10, 5)
	r.Profile.Confidence = clamp(r.Profile.Confidence, 1, 10, 5)
	if r.State.Kind == "" || (r.State.Kind == StateAwaitingDate && r.State.Pending == nil) {
		r.State = ConversationState{Kind: StateIdle}
	}
	if r.State.Kind == StateIdle {
		r.State.Pending = nil
	}
	if r.History == nil {
		r.History = []history.Entry{}
	}
	if r.Events == nil {
		r.Events = []Event{}
	}
}

func clamp(v, lo, hi, zero int) int {
	switch {
	case v == 0:
		return zero
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// AppendHistory adds a message and evicts the oldest entries beyond limit.
func (r *UserRecord) AppendHistory(role, content string, at time.Time, limit int) {
	r.History = history.Append(r.History, history.Entry{Role: role, Content: content, Timestamp: at.UnixMilli()}, limit)
	r.UpdatedAt = at.UnixMilli()
}

// WaitingFor reports the pending event while the record awaits a date.
func (r *UserRecord) WaitingFor() *PendingEvent {
	if r.State.Kind != StateAwaitingDate {
		return nil
	}
	return r.State.Pending
}

// Await moves the record into AwaitingDate, replacing any previous pending event.
func (r *UserRecord) Await(p PendingEvent) {
	r.State = ConversationState{Kind: StateAwaitingDate, Pending: &p}
}

// Resolve leaves AwaitingDate and returns the pending event, or false when idle.
func (r *UserRecord) Resolve() (PendingEvent, bool) {
	p := r.WaitingFor()
	r.State = ConversationState{Kind: StateIdle}
	if p == nil {
		return PendingEvent{}, false
	}
	return *p, true
}

func (r *UserRecord) AddEvent(ev Event) {
	r.Events = append(r.Events, ev)
	if ev.CreatedAt > r.UpdatedAt {
		r.UpdatedAt = ev.CreatedAt
	}
}

// EventByID returns a pointer into r.Events so callers can flip flags in place.
func (r *UserRecord) EventByID(id string) *Event {
	for i := range r.Events {
		if r.Events[i].ID == id {
			return &r.Events[i]
		}
	}
	return nil
}

// Clone returns a deep copy; snapshots handed out of a transaction must not alias it.
func (r *UserRecord) Clone() *UserRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Profile.Mood = clonePtr(r.Profile.Mood)
	c.Profile.Name = clonePtr(r.Profile.Name)
	c.History = append([]history.Entry{}, r.History...)
	c.Events = make([]Event, len(r.Events))
	for i, ev := range r.Events {
		ev.Description = clonePtr(ev.Description)
		c.Events[i] = ev
	}
	if r.State.Pending != nil {
		p := *r.State.Pending
		p.Description = clonePtr(p.Description)
		c.State.Pending = &p
	}
	return &c
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
