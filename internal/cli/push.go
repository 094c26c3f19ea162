package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"mindcare/internal/notify"
	"mindcare/internal/server"
)

func init() {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Send a one-off check-in notification",
		RunE:  runPush,
	}
	cmd.Flags().StringP("token", "t", "", "Identity token: an FCM registration token or tg:<chatID> (required)")
	cmd.Flags().String("title", server.DefaultPushTitle, "Notification title")
	cmd.Flags().String("body", server.DefaultPushBody, "Notification body")
	cmd.MarkFlagRequired("token")
	RootCmd.AddCommand(cmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	token, _ := cmd.Flags().GetString("token")
	title, _ := cmd.Flags().GetString("title")
	body, _ := cmd.Flags().GetString("body")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	tgAPI, err := telegramSender(cfg.TelegramBotToken, token)
	if err != nil {
		return err
	}
	pusher, err := notify.FromConfig(cmd.Context(), cfg, tgAPI)
	if err != nil {
		return err
	}
	if err := server.Push(cmd.Context(), pusher, cfg.PushTimeout, token, notify.Notification{Title: title, Body: body}); err != nil {
		return fmt.Errorf("push to %s: %w", notify.Redact(token), err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "sent to %s\n", notify.Redact(token))
	return nil
}
