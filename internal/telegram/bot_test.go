package telegram

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mindcare/internal/auth"
	"mindcare/internal/chat"
	"mindcare/internal/store"
)

type fakeSender struct {
	sent     []string
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	sw := c.(tgbotapi.MessageConfig)
	f.sent = append(f.sent, sw.Text)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

type fakeTurner struct {
	got  []chat.TurnRequest
	resp chat.TurnResponse
	err  error
}

func (f *fakeTurner) Turn(_ context.Context, req chat.TurnRequest) (chat.TurnResponse, error) {
	f.got = append(f.got, req)
	return f.resp, f.err
}

var now = time.Date(2025, 5, 5, 12, 0, 0, 0, time.UTC)

func newBot(t *testing.T, allowed []int64, turner *fakeTurner) (*Bot, *fakeSender, store.Store) {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "memory.json"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	fs := &fakeSender{}
	return &Bot{s: fs, authSvc: auth.New(allowed), chat: turner, store: st, now: func() time.Time { return now }}, fs, st
}

func textMsg(userID, chatID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{From: &tgbotapi.User{ID: userID}, Chat: &tgbotapi.Chat{ID: chatID}, Text: text}
}

func commandMsg(chatID int64, text string) *tgbotapi.Message {
	m := textMsg(1, chatID, text)
	cmdLen := len(strings.Fields(text)[0])
	m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	return m
}

func TestHandleIncomingMessage_RoutesToChat(t *testing.T) {
	turner := &fakeTurner{resp: chat.TurnResponse{Reply: "rest bro 😴"}}
	b, fs, _ := newBot(t, nil, turner)

	b.handleIncomingMessage(context.Background(), textMsg(42, 100, "im tired"))

	if len(turner.got) != 1 || turner.got[0].Identity != "tg:100" || turner.got[0].Message != "im tired" {
		t.Fatalf("unexpected turn request: %+v", turner.got)
	}
	if len(fs.sent) != 1 || fs.sent[0] != "rest bro 😴" {
		t.Fatalf("unexpected sent: %+v", fs.sent)
	}
}

func TestHandleIncomingMessage_Unauthorized(t *testing.T) {
	turner := &fakeTurner{}
	b, fs, _ := newBot(t, []int64{7}, turner)

	b.handleIncomingMessage(context.Background(), textMsg(8, 100, "hello"))

	if len(turner.got) != 0 {
		t.Fatalf("unauthorized user reached chat")
	}
	if len(fs.sent) != 1 || !strings.Contains(fs.sent[0], "private") {
		t.Fatalf("unexpected sent: %+v", fs.sent)
	}
}

func TestHandleIncomingMessage_StoreFailure(t *testing.T) {
	turner := &fakeTurner{err: errors.New("disk full")}
	b, fs, _ := newBot(t, nil, turner)

	b.handleIncomingMessage(context.Background(), textMsg(1, 5, "hey"))

	if len(fs.sent) != 1 || fs.sent[0] != chat.ReplyFallback {
		t.Fatalf("expected fallback, got %+v", fs.sent)
	}
}

func TestCommands(t *testing.T) {
	turner := &fakeTurner{}
	b, fs, st := newBot(t, nil, turner)
	ctx := context.Background()

	b.handleIncomingMessage(ctx, commandMsg(9, "/events"))
	if !strings.Contains(fs.sent[0], "No events saved yet") {
		t.Fatalf("unexpected events reply: %q", fs.sent[0])
	}

	if err := store.UpdateUser(ctx, st, "tg:9", now, func(r *store.UserRecord) error {
		r.AddEvent(store.Event{ID: "1", Title: "exam", Timestamp: now.Add(time.Hour).UnixMilli(), CreatedAt: now.UnixMilli()})
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	b.handleIncomingMessage(ctx, commandMsg(9, "/events"))
	if !strings.Contains(fs.sent[1], "⏳ exam at Mon 5 May 13:00 UTC") {
		t.Fatalf("unexpected events list: %q", fs.sent[1])
	}

	b.handleIncomingMessage(ctx, commandMsg(9, "/lang english"))
	if !strings.Contains(fs.sent[2], "english") {
		t.Fatalf("unexpected lang reply: %q", fs.sent[2])
	}
	rec, err := store.Snapshot(ctx, st, "tg:9")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Profile.Language != store.LanguageEnglish {
		t.Fatalf("language not stored: %s", rec.Profile.Language)
	}

	b.handleIncomingMessage(ctx, commandMsg(9, "/lang french"))
	if !strings.HasPrefix(fs.sent[3], "Usage") {
		t.Fatalf("unexpected reply: %q", fs.sent[3])
	}
	if len(turner.got) != 0 {
		t.Fatalf("commands must not reach chat")
	}
}

func TestRegisterCommands(t *testing.T) {
	fs := &fakeSender{}
	if err := registerCommands(fs); err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(fs.requests) != 1 {
		t.Fatalf("expected one request, got %d", len(fs.requests))
	}
	cfg, ok := fs.requests[0].(tgbotapi.SetMyCommandsConfig)
	if !ok {
		t.Fatalf("unexpected request %T", fs.requests[0])
	}
	var names []string
	for _, c := range cfg.Commands {
		names = append(names, c.Command)
	}
	if strings.Join(names, ",") != "start,events,lang,help" {
		t.Fatalf("unexpected commands %v", names)
	}
}

func TestSendMessage_SplitsLongReplies(t *testing.T) {
	b, fs, _ := newBot(t, nil, &fakeTurner{})
	b.sendMessage(7, strings.Repeat("é", maxMessageLen+10))
	if len(fs.sent) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(fs.sent))
	}
	if n := len([]rune(fs.sent[0])); n != maxMessageLen {
		t.Fatalf("first part has %d runes", n)
	}
	if n := len([]rune(fs.sent[1])); n != 10 {
		t.Fatalf("second part has %d runes", n)
	}
}
