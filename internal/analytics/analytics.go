package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"mindcare/internal/notify"
	"mindcare/internal/storage"
)

// DailyStats summarizes one UTC day of the interaction log.
type DailyStats struct {
	Date        string               `json:"date"`
	TotalTurns  int                  `json:"total_turns"`
	UniqueUsers int                  `json:"unique_users"`
	EventsSaved int                  `json:"events_saved"`
	Failures    int                  `json:"failures"`
	Moods       map[string]int       `json:"moods"`
	Kinds       map[string]int       `json:"kinds"`
	UserStats   map[string]UserStats `json:"user_stats"`
}

type UserStats struct {
	Identity    string         `json:"identity"`
	Turns       int            `json:"turns"`
	EventsSaved int            `json:"events_saved"`
	Moods       map[string]int `json:"moods"`
}

// AnalyzeDailyLogs aggregates the interactions that fall on targetDate.
// Entries without a user message are ignored.
func AnalyzeDailyLogs(items []storage.Interaction, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := &DailyStats{
		Date:      startOfDay.Format("2006-01-02"),
		Moods:     make(map[string]int),
		Kinds:     make(map[string]int),
		UserStats: make(map[string]UserStats),
	}

	for _, it := range items {
		if it.Timestamp.Before(startOfDay) || !it.Timestamp.Before(endOfDay) {
			continue
		}
		if it.UserMessage == "" {
			continue
		}

		stats.TotalTurns++
		stats.Kinds[string(it.Kind)]++

		us, ok := stats.UserStats[it.Identity]
		if !ok {
			us = UserStats{Identity: it.Identity, Moods: make(map[string]int)}
		}
		us.Turns++

		if it.Mood != "" {
			stats.Moods[it.Mood]++
			us.Moods[it.Mood]++
		}
		switch it.Kind {
		case storage.KindEventSaved:
			stats.EventsSaved++
			us.EventsSaved++
		case storage.KindError:
			stats.Failures++
		}
		stats.UserStats[it.Identity] = us
	}

	stats.UniqueUsers = len(stats.UserStats)
	return stats
}

// GenerateReportSummary renders a plain-text digest for logs and the CLI.
func (ds *DailyStats) GenerateReportSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "MindCare activity for %s:\n\n", ds.Date)
	fmt.Fprintf(&b, "- Turns: %d\n- Unique users: %d\n- Events saved: %d\n- Failed replies: %d\n\n",
		ds.TotalTurns, ds.UniqueUsers, ds.EventsSaved, ds.Failures)

	if len(ds.Moods) > 0 {
		b.WriteString("Moods:\n")
		for _, k := range sortedKeys(ds.Moods) {
			fmt.Fprintf(&b, "- %s: %d\n", k, ds.Moods[k])
		}
		b.WriteString("\n")
	}

	ids := make([]string, 0, len(ds.UserStats))
	for id := range ds.UserStats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Fprintf(&b, "Users (%d):\n", len(ids))
	for _, id := range ids {
		us := ds.UserStats[id]
		fmt.Fprintf(&b, "- %s: %d turns", notify.Redact(id), us.Turns)
		if us.EventsSaved > 0 {
			fmt.Fprintf(&b, ", %d events", us.EventsSaved)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
