// Package timeparse turns free text into a future point in time.
package timeparse

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"mindcare/internal/llm"
)

// DefaultOffset is used when nothing better can be resolved.
const DefaultOffset = 5 * time.Minute

var (
	minutesRe = regexp.MustCompile(`(?i)\bin\s+(\d{1,5})\s*(?:minutes?|mins?|m)\b`)
	hoursRe   = regexp.MustCompile(`(?i)\bin\s+(\d{1,3})\s*(?:hours?|hrs?|h)\b`)
	numberRe  = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	digitsRe  = regexp.MustCompile(`\d+`)
)

// MatchRelative reports a deterministic relative offset such as "in 5 min" or "in 2 hours".
// The "in" is required, so plain durations ("studied 30 min") do not match. Zero offsets do not match.
func MatchRelative(text string) (time.Duration, bool) {
	if m := minutesRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return time.Duration(n) * time.Minute, true
		}
	}
	if m := hoursRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return time.Duration(n) * time.Hour, true
		}
	}
	return 0, false
}

// Resolver never fails: every result is strictly after the now it was given.
type Resolver struct {
	client   llm.Client
	fallback time.Duration
}

func NewResolver(client llm.Client, fallback time.Duration) *Resolver {
	if fallback <= 0 {
		fallback = DefaultOffset
	}
	return &Resolver{client: client, fallback: fallback}
}

func (r *Resolver) Resolve(ctx context.Context, text string, now time.Time) time.Time {
	if d, ok := MatchRelative(text); ok {
		return now.Add(d)
	}
	if r.client == nil {
		return now.Add(r.fallback)
	}

	resp, err := r.client.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: buildPrompt(now)},
		{Role: llm.RoleUser, Content: text},
	})
	if err != nil {
		log.Printf("⚠️ time fallback: llm call failed, using +%s: %v", r.fallback, err)
		return now.Add(r.fallback)
	}
	at, err := parseTimestamp(resp.Content, now)
	if err != nil {
		log.Printf("⚠️ time fallback: %v, using +%s", err, r.fallback)
		return now.Add(r.fallback)
	}
	return at
}

func buildPrompt(now time.Time) string {
	return fmt.Sprintf(
		"Current time: %s (epoch ms %d).\n"+
			"The user describes when something will happen. Convert it to one future moment.\n"+
			"If only a date is given, assume 09:00 local time on that date. If unclear, guess the best possible future time.\n"+
			"Reply with ONLY the epoch milliseconds as a plain integer. No words, no JSON.",
		now.Format(time.RFC3339), now.UnixMilli())
}

// parseTimestamp reads epoch milliseconds (or seconds when the number has at most 10 digits)
// from raw and rejects anything not strictly after now. The longest 10 to 13 digit run wins,
// so prose like "In 2 hours: 1741..." still parses; otherwise the first number is used.
func parseTimestamp(raw string, now time.Time) (time.Time, error) {
	clean := strings.ReplaceAll(raw, ",", "")
	num := longestEpochRun(clean)
	if num == "" {
		num = numberRe.FindString(clean)
	}
	if num == "" {
		return time.Time{}, fmt.Errorf("%w: no number in %q", llm.ErrInvalidOutput, truncate(raw, 80))
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", llm.ErrInvalidOutput, err)
	}
	ms := int64(f)
	if digits := len(strings.TrimPrefix(strings.SplitN(num, ".", 2)[0], "-")); digits <= 10 {
		ms *= 1000
	}
	at := time.UnixMilli(ms)
	if !at.After(now) {
		return time.Time{}, fmt.Errorf("%w: %s is not in the future", llm.ErrInvalidOutput, at.UTC().Format(time.RFC3339))
	}
	return at, nil
}

func longestEpochRun(s string) string {
	var best string
	for _, run := range digitsRe.FindAllString(s, -1) {
		if len(run) >= 10 && len(run) <= 13 && len(run) > len(best) {
			best = run
		}
	}
	return best
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
