package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"mindcare/internal/history"
	"mindcare/internal/store"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "events <token>",
		Short: "List the events saved for an identity",
		Args:  cobra.ExactArgs(1),
		RunE:  runEvents,
	})

	historyCmd := &cobra.Command{
		Use:   "history <token>",
		Short: "Print the conversation history of an identity",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistory,
	}
	historyCmd.Flags().IntP("last", "l", 0, "Only the last N entries")
	RootCmd.AddCommand(historyCmd)
}

func loadRecord(cmd *cobra.Command, identity string) (*store.UserRecord, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	rec, err := store.Snapshot(cmd.Context(), st, identity)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

func runEvents(cmd *cobra.Command, args []string) error {
	rec, err := loadRecord(cmd, args[0])
	if err != nil {
		return err
	}
	if rec == nil {
		return printJSON(cmd.OutOrStdout(), []store.Event{})
	}
	return printJSON(cmd.OutOrStdout(), rec.Events)
}

func runHistory(cmd *cobra.Command, args []string) error {
	last, _ := cmd.Flags().GetInt("last")
	rec, err := loadRecord(cmd, args[0])
	if err != nil {
		return err
	}
	if rec == nil {
		return printJSON(cmd.OutOrStdout(), []history.Entry{})
	}
	entries := rec.History
	if last > 0 {
		entries = history.Tail(entries, last)
	}
	return printJSON(cmd.OutOrStdout(), entries)
}
