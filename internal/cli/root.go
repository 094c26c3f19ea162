// Package cli implements the mindcare commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mindcare/internal/config"
	"mindcare/internal/scheduler"
	"mindcare/internal/storage"
	"mindcare/internal/store"
)

var envFile string

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:          "mindcare",
	Short:        "Check-in chat companion with event reminders",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if envFile != "" {
			config.LoadDotEnv(envFile)
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment (empty to skip)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	return st, nil
}

func newRecorder(cfg *config.Config) storage.Recorder {
	if cfg.LogFilePath == "" {
		return storage.Nop{}
	}
	rec, err := storage.NewFileRecorder(cfg.LogFilePath)
	if err != nil {
		log.Printf("failed to init file recorder: %v", err)
		return storage.Nop{}
	}
	return rec
}

func windowsFromConfig(cfg *config.Config) scheduler.Windows {
	return scheduler.Windows{
		BeforeMin:  cfg.ReminderBeforeMin,
		Before:     cfg.ReminderBefore,
		AfterDelay: cfg.ReminderAfter,
		AfterMax:   cfg.ReminderAfterMax,
	}
}

func readSystemPrompt(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("system prompt file not found or unreadable at %s: %v", path, err)
		return ""
	}
	return strings.TrimSpace(string(data))
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
