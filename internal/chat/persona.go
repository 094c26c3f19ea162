package chat

import (
	"fmt"
	"strings"

	"mindcare/internal/store"
)

const defaultPersona = `You are MindCare, the user's supportive best friend.
They are a student or job seeker dealing with exams, interviews and everyday stress.
Casual tone. Emojis. Short replies, one to three sentences. Never lecture.
If they sound in danger, gently ask them to reach out to someone they trust or a local helpline.`

var languageRules = map[store.Language]string{
	store.LanguageHinglish: "Reply in Hinglish: Hindi words written in Latin script mixed with English.",
	store.LanguageEnglish:  "Reply in simple English.",
	store.LanguageHindi:    "Reply in Hindi using Devanagari script.",
}

// systemPrompt combines the persona with what we know about the user.
func systemPrompt(persona string, p store.Profile) string {
	if strings.TrimSpace(persona) == "" {
		persona = defaultPersona
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(persona))
	b.WriteString("\n\n")
	if rule, ok := languageRules[p.Language]; ok {
		b.WriteString(rule)
		b.WriteString("\n")
	}
	if p.Name != nil && *p.Name != "" {
		fmt.Fprintf(&b, "Their name is %s.\n", *p.Name)
	}
	if p.Mood != nil && *p.Mood != "" {
		fmt.Fprintf(&b, "Last mood they mentioned: %s.\n", *p.Mood)
	}
	fmt.Fprintf(&b, "Stress %d/10, confidence %d/10.", p.Stress, p.Confidence)
	return b.String()
}
