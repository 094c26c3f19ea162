package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mindcare/internal/auth"
	"mindcare/internal/chat"
	"mindcare/internal/notify"
	"mindcare/internal/store"
)

const startText = `Hey 💙 I'm MindCare, your check-in buddy.
Tell me how you feel, or tell me about an exam or interview and I'll remind you before it and check on you after.

/events shows what I'm tracking
/lang english|hindi|hinglish switches my language`

// Turner is satisfied by *chat.Handler.
type Turner interface {
	Turn(ctx context.Context, req chat.TurnRequest) (chat.TurnResponse, error)
}

type Bot struct {
	api     *tgbotapi.BotAPI
	s       sender
	authSvc *auth.Service
	chat    Turner
	store   store.Store
	now     func() time.Time
}

func New(botToken string, authSvc *auth.Service, turner Turner, st store.Store) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	log.Printf("🤖 Authorized on Telegram as @%s", api.Self.UserName)
	s := botAPISender{api: api}
	if err := registerCommands(s); err != nil {
		log.Printf("⚠️ failed to register bot commands: %v", err)
	}
	return &Bot{
		api:     api,
		s:       s,
		authSvc: authSvc,
		chat:    turner,
		store:   st,
		now:     time.Now,
	}, nil
}

// API exposes the client so reminder pushes reuse the same connection.
func (b *Bot) API() *tgbotapi.BotAPI { return b.api }

// Start consumes updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleIncomingMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil {
		return
	}
	if !b.authSvc.IsAllowed(msg.From.ID) {
		log.Printf("Unauthorized access attempt by user ID: %d, username: @%s", msg.From.ID, msg.From.UserName)
		b.sendMessage(msg.Chat.ID, "Sorry bro, this bot is private 💙")
		return
	}

	identity := notify.TelegramIdentity(msg.Chat.ID)
	if msg.IsCommand() {
		b.handleCommand(ctx, identity, msg)
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		b.sendMessage(msg.Chat.ID, "I can only read text for now 😅")
		return
	}

	resp, err := b.chat.Turn(ctx, chat.TurnRequest{Message: msg.Text, Identity: identity})
	if err != nil && !errors.Is(err, chat.ErrInvalidRequest) {
		log.Printf("❌ chat turn for %s failed: %v", identity, err)
		b.sendMessage(msg.Chat.ID, chat.ReplyFallback)
		return
	}
	b.sendMessage(msg.Chat.ID, resp.Reply)
}

func (b *Bot) handleCommand(ctx context.Context, identity string, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start", "help":
		b.sendMessage(msg.Chat.ID, startText)
	case "events":
		b.sendMessage(msg.Chat.ID, b.eventsText(ctx, identity))
	case "lang":
		b.sendMessage(msg.Chat.ID, b.setLanguage(ctx, identity, msg.CommandArguments()))
	default:
		b.sendMessage(msg.Chat.ID, "Unknown command 😅 Try /help")
	}
}

func (b *Bot) eventsText(ctx context.Context, identity string) string {
	rec, err := store.Snapshot(ctx, b.store, identity)
	if errors.Is(err, store.ErrNotFound) || (err == nil && len(rec.Events) == 0) {
		return "No events saved yet. Tell me when your next exam or interview is 💪"
	}
	if err != nil {
		log.Printf("❌ load events for %s failed: %v", identity, err)
		return chat.ReplyFallback
	}
	var sb strings.Builder
	sb.WriteString("Your events 📅\n")
	now := b.now()
	for _, ev := range rec.Events {
		mark := "⏳"
		if ev.At().Before(now) {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "%s %s at %s\n", mark, ev.Title, ev.At().UTC().Format("Mon 2 Jan 15:04 UTC"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bot) setLanguage(ctx context.Context, identity, arg string) string {
	lang, ok := store.ParseLanguage(strings.ToLower(strings.TrimSpace(arg)))
	if !ok {
		return "Usage: /lang english|hindi|hinglish"
	}
	err := store.UpdateUser(ctx, b.store, identity, b.now(), func(r *store.UserRecord) error {
		r.Profile.Language = lang
		return nil
	})
	if err != nil {
		log.Printf("❌ set language for %s failed: %v", identity, err)
		return chat.ReplyFallback
	}
	return fmt.Sprintf("Done, I'll talk in %s now 💙", lang)
}
