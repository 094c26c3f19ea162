package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mindcare/internal/notify"
	"mindcare/internal/scheduler"
)

func init() {
	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one reminder pass and exit",
		Long:  "Run one reminder pass and exit. Meant for stores with no running serve process; a concurrent serve may deliver the same milestone once more.",
		RunE:  runTick,
	}
	cmd.Flags().String("at", "", "Evaluate windows at this RFC3339 time instead of now")
	cmd.Flags().Bool("dry-run", false, "Log notifications instead of delivering them (flags are still persisted)")
	RootCmd.AddCommand(cmd)
}

func runTick(cmd *cobra.Command, args []string) error {
	at, _ := cmd.Flags().GetString("at")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var pusher notify.Pusher = notify.LogPusher{}
	if !dryRun {
		tgAPI, err := telegramAPI(cfg.TelegramBotToken)
		if err != nil {
			return fmt.Errorf("connect telegram: %w", err)
		}
		pusher, err = notify.FromConfig(cmd.Context(), cfg, tgAPI)
		if err != nil {
			return err
		}
	}

	d := scheduler.NewDispatcher(st, pusher, windowsFromConfig(cfg), cfg.PushTimeout)
	if at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		d.WithClock(func() time.Time { return t })
	}

	report, err := d.Tick(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), report)
}
