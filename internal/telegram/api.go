package telegram

import (
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// sender is the part of *tgbotapi.BotAPI the bot writes through.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type botAPISender struct{ api *tgbotapi.BotAPI }

func (s botAPISender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return s.api.Send(c)
}

func (s botAPISender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return s.api.Request(c)
}

var menu = []tgbotapi.BotCommand{
	{Command: "start", Description: "Say hi to MindCare"},
	{Command: "events", Description: "Show saved exams and interviews"},
	{Command: "lang", Description: "Switch language: english, hindi, hinglish"},
	{Command: "help", Description: "What I can do"},
}

// registerCommands publishes the command menu shown in Telegram clients.
func registerCommands(s sender) error {
	_, err := s.Request(tgbotapi.NewSetMyCommands(menu...))
	return err
}

// maxMessageLen is Telegram's limit for one text message, in runes.
const maxMessageLen = 4096

func (b *Bot) sendMessage(chatID int64, text string) {
	for _, part := range splitMessage(text, maxMessageLen) {
		if _, err := b.s.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			log.Printf("failed to send message: %v", err)
			return
		}
	}
}

func splitMessage(text string, limit int) []string {
	r := []rune(text)
	if len(r) <= limit {
		return []string{text}
	}
	var parts []string
	for len(r) > limit {
		parts = append(parts, string(r[:limit]))
		r = r[limit:]
	}
	if len(r) > 0 {
		parts = append(parts, string(r))
	}
	return parts
}
