package cli

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mindcare/internal/notify"
)

// telegramSender connects to Telegram only when the target is a Telegram identity.
func telegramSender(botToken, identity string) (*tgbotapi.BotAPI, error) {
	if !strings.HasPrefix(identity, notify.TelegramPrefix) {
		return nil, nil
	}
	if botToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required for %s identities", notify.TelegramPrefix)
	}
	return tgbotapi.NewBotAPI(botToken)
}

// telegramAPI returns nil when no bot token is configured.
func telegramAPI(botToken string) (*tgbotapi.BotAPI, error) {
	if botToken == "" {
		return nil, nil
	}
	return tgbotapi.NewBotAPI(botToken)
}
