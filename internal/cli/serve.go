package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"mindcare/internal/analytics"
	"mindcare/internal/auth"
	"mindcare/internal/chat"
	"mindcare/internal/extract"
	"mindcare/internal/llm"
	"mindcare/internal/notify"
	"mindcare/internal/scheduler"
	"mindcare/internal/server"
	"mindcare/internal/storage"
	"mindcare/internal/telegram"
	"mindcare/internal/timeparse"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the reminder scheduler and the Telegram bot",
		RunE:  runServe,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := llm.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("create llm client: %w", err)
	}
	rec := newRecorder(cfg)

	handler := chat.New(chat.Deps{
		Store:        st,
		LLM:          client,
		Detector:     extract.New(client),
		Resolver:     timeparse.NewResolver(client, cfg.DefaultOffset),
		Recorder:     rec,
		Persona:      readSystemPrompt(cfg.SystemPromptPath),
		HistoryLimit: cfg.HistoryLimit,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var bot *telegram.Bot
	var tgAPI *tgbotapi.BotAPI
	if cfg.TelegramBotToken != "" {
		bot, err = telegram.New(cfg.TelegramBotToken, auth.New(cfg.TelegramAllowedUsers), handler, st)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		tgAPI = bot.API()
	}

	pusher, err := notify.FromConfig(ctx, cfg, tgAPI)
	if err != nil {
		return fmt.Errorf("init push providers: %w", err)
	}

	dispatcher := scheduler.NewDispatcher(st, pusher, windowsFromConfig(cfg), cfg.PushTimeout)
	sched := scheduler.New(cfg.ReminderInterval, cfg.ReportCron)
	sched.SetReminderFunction(dispatcher.Run)
	sched.SetReportFunction(dailyReport(rec))
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	if bot != nil {
		go bot.Start(ctx)
	}

	srv := server.New(server.Deps{
		Chat:        handler,
		Store:       st,
		Pusher:      pusher,
		Recorder:    rec,
		AdminToken:  cfg.AdminToken,
		PushTimeout: cfg.PushTimeout,
	}, cfg.Port)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
		log.Println("🛑 Shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func dailyReport(rec storage.Recorder) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		items, err := rec.LoadInteractions()
		if err != nil {
			return fmt.Errorf("load interactions: %w", err)
		}
		stats := analytics.AnalyzeDailyLogs(items, time.Now().UTC())
		log.Printf("📊 Daily report\n%s", stats.GenerateReportSummary())
		return nil
	}
}
