package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramPrefix marks identities that are Telegram chats, e.g. "tg:12345".
const TelegramPrefix = "tg:"

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramPusher delivers reminders as bot messages.
type TelegramPusher struct {
	s sender
}

func NewTelegram(s sender) *TelegramPusher {
	return &TelegramPusher{s: s}
}

// TelegramIdentity builds the identity token for a chat.
func TelegramIdentity(chatID int64) string {
	return TelegramPrefix + strconv.FormatInt(chatID, 10)
}

// ParseTelegramIdentity extracts the chat ID from a "tg:" token.
func ParseTelegramIdentity(token string) (int64, error) {
	raw, ok := strings.CutPrefix(token, TelegramPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedToken, Redact(token))
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad telegram chat id %q: %w", raw, err)
	}
	return id, nil
}

func (p *TelegramPusher) Push(ctx context.Context, token string, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chatID, err := ParseTelegramIdentity(token)
	if err != nil {
		return err
	}
	text := n.Body
	if n.Title != "" {
		text = n.Title + "\n" + n.Body
	}
	if _, err := p.s.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
