// Package extract decides whether a chat message announces an upcoming event.
package extract

import (
	"context"
	"errors"
	"log"
	"strings"

	"mindcare/internal/llm"
)

const maxTitleRunes = 60

// Detection is the validated result of an extraction. The zero value means "no event".
type Detection struct {
	HasEvent    bool
	Title       string
	Description string
	// When holds the time phrase if the message gave a concrete clock time or offset.
	When string
}

type detectionJSON struct {
	HasEvent    bool    `json:"hasEvent"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	When        *string `json:"when"`
}

const systemPrompt = `You classify a single chat message from a student or job seeker.
Decide whether it mentions a NEW upcoming personal event worth a reminder (exam, test, quiz, interview, presentation, viva, appointment, match, deadline...).
Return ONLY this JSON, nothing else:
{"hasEvent": true|false, "title": "short label like 'maths exam'" or null, "description": "one short sentence" or null, "when": "the exact time phrase" or null}
Set "when" only if the message states a clock time (e.g. "at 3pm", "10:30") or a relative offset (e.g. "in 20 minutes"). A bare day like "tomorrow" is NOT enough: use null.
Questions about already known events ("when is my exam?") are NOT new events.`

type Extractor struct {
	client llm.Client
}

func New(client llm.Client) *Extractor {
	return &Extractor{client: client}
}

// Detect never fails: model errors and malformed output both yield Detection{}.
func (e *Extractor) Detect(ctx context.Context, text string) Detection {
	text = strings.TrimSpace(text)
	if text == "" || e.client == nil {
		return Detection{}
	}

	resp, err := e.client.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: text},
	})
	if err != nil {
		log.Printf("⚠️ event detection failed: %v", err)
		return Detection{}
	}

	parsed, err := llm.ExtractJSON[detectionJSON](resp.Content, validate)
	if err != nil {
		log.Printf("⚠️ event detection output rejected: %v", err)
		return Detection{}
	}
	if !parsed.HasEvent {
		return Detection{}
	}
	return Detection{
		HasEvent:    true,
		Title:       cleanTitle(*parsed.Title),
		Description: deref(parsed.Description),
		When:        deref(parsed.When),
	}
}

func validate(d detectionJSON) error {
	if d.HasEvent && (d.Title == nil || cleanTitle(*d.Title) == "") {
		return errors.New("hasEvent without title")
	}
	return nil
}

func cleanTitle(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"'.!`)
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxTitleRunes {
		s = strings.TrimSpace(string(r[:maxTitleRunes]))
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	v := strings.TrimSpace(*s)
	if strings.EqualFold(v, "null") {
		return ""
	}
	return v
}
