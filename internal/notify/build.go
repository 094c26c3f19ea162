package notify

import (
	"context"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mindcare/internal/config"
)

// FromConfig wires the providers that are configured. tg may be nil when Telegram is disabled.
func FromConfig(ctx context.Context, cfg *config.Config, tg *tgbotapi.BotAPI) (Pusher, error) {
	var def Pusher = LogPusher{}
	if cfg.FirebaseServiceAccount != "" {
		p, err := NewFCM(ctx, cfg.FirebaseServiceAccount, cfg.FirebaseProjectID)
		if err != nil {
			return nil, err
		}
		log.Printf("🔔 FCM push enabled for project %s", p.projectID)
		def = p
	} else {
		log.Printf("⚠️ FIREBASE_SERVICE_ACCOUNT not set, device pushes are logged only")
	}

	r := NewRouter(def)
	if tg != nil {
		r.Handle(TelegramPrefix, NewTelegram(tg))
	}
	return r, nil
}
