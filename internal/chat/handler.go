// Package chat runs one request/response turn of the check-in conversation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"mindcare/internal/extract"
	"mindcare/internal/history"
	"mindcare/internal/llm"
	"mindcare/internal/mood"
	"mindcare/internal/notify"
	"mindcare/internal/storage"
	"mindcare/internal/store"
	"mindcare/internal/timeparse"
)

// ErrInvalidRequest is returned for a blank message or identity. The response still carries a reply.
var ErrInvalidRequest = errors.New("message and identity are required")

const (
	ReplyInvalid  = "Bro 😅 I need a message to reply to. Type something 💙"
	ReplyFallback = "Bro 😭 brain lag. Try again 💙"
)

// EventDetector is satisfied by *extract.Extractor.
type EventDetector interface {
	Detect(ctx context.Context, text string) extract.Detection
}

// TimeResolver is satisfied by *timeparse.Resolver.
type TimeResolver interface {
	Resolve(ctx context.Context, text string, now time.Time) time.Time
}

type TurnRequest struct {
	Message  string
	Identity string
	// Language overrides the stored profile language when it is a known value.
	Language string
}

type TurnResponse struct {
	Reply string
	Mood  mood.Mood
	Kind  storage.Kind
	// Event is set when the turn saved a new event.
	Event *store.Event
}

type Deps struct {
	Store    store.Store
	LLM      llm.Client
	Detector EventDetector
	Resolver TimeResolver
	Recorder storage.Recorder
	// Persona replaces the built-in system prompt when non-empty.
	Persona      string
	HistoryLimit int
}

type Handler struct {
	store        store.Store
	llm          llm.Client
	detector     EventDetector
	resolver     TimeResolver
	recorder     storage.Recorder
	persona      string
	historyLimit int

	locks *keyedMutex
	now   func() time.Time
	pick  func(n int) int

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func New(d Deps) *Handler {
	if d.Recorder == nil {
		d.Recorder = storage.Nop{}
	}
	if d.HistoryLimit <= 0 {
		d.HistoryLimit = 20
	}
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Handler{
		store:        d.Store,
		llm:          d.LLM,
		detector:     d.Detector,
		resolver:     d.Resolver,
		recorder:     d.Recorder,
		persona:      d.Persona,
		historyLimit: d.HistoryLimit,
		locks:        newKeyedMutex(),
		now:          time.Now,
		pick:         rand.Intn,
		entropy:      ulid.Monotonic(src, 0),
	}
}

// WithClock and WithPicker make turns deterministic in tests.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

func (h *Handler) WithPicker(pick func(n int) int) *Handler {
	h.pick = pick
	return h
}

var namePattern = regexp.MustCompile(`(?i)\bmy name is\s+([\p{L}][\p{L}'-]{0,29})`)

// outcome is what the decision phase wants written back.
type outcome struct {
	kind      storage.Kind
	reply     string
	mood      mood.Mood
	event     *store.Event
	await     *store.PendingEvent
	resolved  bool
	skipReply bool
}

// Turn handles one message. It returns an error only for invalid input or storage failures;
// model failures are absorbed into friendly replies.
func (h *Handler) Turn(ctx context.Context, req TurnRequest) (TurnResponse, error) {
	msg := strings.TrimSpace(req.Message)
	identity := strings.TrimSpace(req.Identity)
	if msg == "" || identity == "" {
		return TurnResponse{Reply: ReplyInvalid, Kind: storage.KindInvalid}, ErrInvalidRequest
	}

	unlock := h.locks.Lock(identity)
	defer unlock()

	now := h.now()
	rec, err := store.SnapshotOrDefault(ctx, h.store, identity, now)
	if err != nil {
		return TurnResponse{}, fmt.Errorf("load user: %w", err)
	}

	lang := rec.Profile.Language
	if l, ok := store.ParseLanguage(strings.ToLower(strings.TrimSpace(req.Language))); ok {
		lang = l
	}
	name := ""
	if m := namePattern.FindStringSubmatch(msg); m != nil {
		name = m[1]
	}

	profile := rec.Profile
	profile.Language = lang
	if name != "" {
		profile.Name = &name
	}

	out := h.decide(ctx, rec, profile, msg, now)

	err = store.UpdateUser(ctx, h.store, identity, now, func(r *store.UserRecord) error {
		r.Profile.Language = lang
		if name != "" {
			n := name
			r.Profile.Name = &n
		}
		r.AppendHistory(llm.RoleUser, msg, now, h.historyLimit)

		switch {
		case out.mood != "":
			m := string(out.mood)
			r.Profile.Mood = &m
			r.Profile.Stress, r.Profile.Confidence = mood.Apply(out.mood, r.Profile.Stress, r.Profile.Confidence)
		case out.resolved:
			r.Resolve()
		case out.await != nil:
			r.Await(*out.await)
		}
		if out.event != nil {
			r.AddEvent(*out.event)
		}
		if !out.skipReply {
			r.AppendHistory(llm.RoleAssistant, out.reply, now, h.historyLimit)
		}
		return nil
	})
	if err != nil {
		return TurnResponse{}, fmt.Errorf("save turn: %w", err)
	}

	h.record(identity, msg, out, now)
	return TurnResponse{Reply: out.reply, Mood: out.mood, Kind: out.kind, Event: out.event}, nil
}

// decide picks the first matching path: mood, pending date, recall, new event, free reply.
// It only reads rec; all writes happen in Turn.
func (h *Handler) decide(ctx context.Context, rec *store.UserRecord, profile store.Profile, msg string, now time.Time) outcome {
	if m, ok := mood.Detect(msg); ok {
		return outcome{kind: storage.KindMood, mood: m, reply: mood.Reply(m, h.pick)}
	}

	if p := rec.WaitingFor(); p != nil {
		ev := h.newEvent(p.Title, p.Description, h.resolveTime(ctx, msg, now), now)
		return outcome{kind: storage.KindEventSaved, event: &ev, resolved: true, reply: savedReply(ev.Title)}
	}

	if reply, ok := recall(rec.Events, msg); ok {
		return outcome{kind: storage.KindRecall, reply: reply}
	}

	if h.detector != nil {
		if det := h.detector.Detect(ctx, msg); det.HasEvent {
			var desc *string
			if det.Description != "" {
				d := det.Description
				desc = &d
			}
			_, fast := timeparse.MatchRelative(msg)
			if det.When == "" && !fast {
				return outcome{
					kind:  storage.KindAwaitingDate,
					await: &store.PendingEvent{Title: det.Title, Description: desc},
					reply: fmt.Sprintf("Oh damn 😭 when exactly is your %s? Date + time bro 💙", det.Title),
				}
			}
			phrase := msg
			if !fast {
				phrase = det.When
			}
			ev := h.newEvent(det.Title, desc, h.resolveTime(ctx, phrase, now), now)
			return outcome{kind: storage.KindEventSaved, event: &ev, reply: savedReply(ev.Title)}
		}
	}

	return h.generate(ctx, rec, profile, msg)
}

func (h *Handler) generate(ctx context.Context, rec *store.UserRecord, profile store.Profile, msg string) outcome {
	if h.llm == nil {
		return outcome{kind: storage.KindError, reply: ReplyFallback, skipReply: true}
	}
	messages := make([]llm.Message, 0, len(rec.History)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: systemPrompt(h.persona, profile)})
	messages = append(messages, history.ToLLM(rec.History)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: msg})

	resp, err := h.llm.Generate(ctx, messages)
	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = llm.ErrEmptyResponse
	}
	if err != nil {
		log.Printf("❌ reply generation failed: %v", err)
		return outcome{kind: storage.KindError, reply: ReplyFallback, skipReply: true}
	}
	return outcome{kind: storage.KindReply, reply: strings.TrimSpace(resp.Content)}
}

func (h *Handler) resolveTime(ctx context.Context, text string, now time.Time) time.Time {
	if h.resolver == nil {
		return now.Add(timeparse.DefaultOffset)
	}
	return h.resolver.Resolve(ctx, text, now)
}

func (h *Handler) newEvent(title string, desc *string, at, now time.Time) store.Event {
	h.idMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(now), h.entropy).String()
	h.idMu.Unlock()
	return store.Event{
		ID:          id,
		Title:       title,
		Description: desc,
		Timestamp:   at.UnixMilli(),
		CreatedAt:   now.UnixMilli(),
		Source:      "chat",
	}
}

func (h *Handler) record(identity, msg string, out outcome, now time.Time) {
	it := storage.Interaction{
		Timestamp:         now.UTC(),
		Identity:          identity,
		UserMessage:       msg,
		AssistantResponse: out.reply,
		Mood:              string(out.mood),
		Kind:              out.kind,
	}
	if out.event != nil {
		it.EventTitle = out.event.Title
	}
	if err := h.recorder.AppendInteraction(it); err != nil {
		log.Printf("⚠️ failed to record interaction for %s: %v", notify.Redact(identity), err)
	}
}

func savedReply(title string) string {
	return fmt.Sprintf("Saved 😤🔥 I'll remind you before your %s 💙", title)
}

var (
	whenPattern      = regexp.MustCompile(`(?i)\bwhen\b`)
	eventWordPattern = regexp.MustCompile(`(?i)\b(exam|test|quiz|interview|presentation)s?\b`)
)

// recall answers "when is my X" from saved events, newest first. A stored title mentioned in
// the message wins; otherwise a known event word matches titles containing it, and a known
// word with nothing saved gets the miss reply.
func recall(events []store.Event, msg string) (string, bool) {
	if !whenPattern.MatchString(msg) {
		return "", false
	}
	lower := strings.ToLower(msg)
	if ev := latestEvent(events, func(title string) bool { return strings.Contains(lower, title) }); ev != nil {
		return recallReply(*ev), true
	}
	m := eventWordPattern.FindStringSubmatch(lower)
	if m == nil {
		return "", false
	}
	word := m[1]
	if ev := latestEvent(events, func(title string) bool { return strings.Contains(title, word) }); ev != nil {
		return recallReply(*ev), true
	}
	return fmt.Sprintf("I don't see any %s saved yet 😅", word), true
}

func latestEvent(events []store.Event, match func(lowerTitle string) bool) *store.Event {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Title != "" && match(strings.ToLower(events[i].Title)) {
			return &events[i]
		}
	}
	return nil
}

func recallReply(ev store.Event) string {
	return fmt.Sprintf("Bro 😭 your %s is on %s 💙🔥", ev.Title, ev.At().UTC().Format("Mon 2 Jan 15:04 UTC"))
}
