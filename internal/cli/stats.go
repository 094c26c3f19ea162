package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mindcare/internal/analytics"
	"mindcare/internal/storage"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize one day of the interaction log",
		RunE:  runStats,
	}
	cmd.Flags().String("date", "", "Day to summarize, YYYY-MM-DD (default: today, UTC)")
	cmd.Flags().Bool("json", false, "Print JSON instead of the text summary")
	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	dateFlag, _ := cmd.Flags().GetString("date")
	asJSON, _ := cmd.Flags().GetBool("json")

	day := time.Now().UTC()
	if dateFlag != "" {
		parsed, err := time.Parse("2006-01-02", dateFlag)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		day = parsed
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.LogFilePath == "" {
		return fmt.Errorf("LOG_FILE_PATH is empty, nothing to analyze")
	}
	rec, err := storage.NewFileRecorder(cfg.LogFilePath)
	if err != nil {
		return err
	}
	items, err := rec.LoadInteractions()
	if err != nil {
		return err
	}

	stats := analytics.AnalyzeDailyLogs(items, day)
	if asJSON {
		return printJSON(cmd.OutOrStdout(), stats)
	}
	fmt.Fprint(cmd.OutOrStdout(), stats.GenerateReportSummary())
	return nil
}
