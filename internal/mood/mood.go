// Package mood is a keyword matcher with canned acknowledgements.
package mood

import (
	"regexp"
	"strings"
)

type Mood string

const (
	Tired    Mood = "tired"
	Sad      Mood = "sad"
	Stressed Mood = "stressed"
	Anxious  Mood = "anxious"
	Angry    Mood = "angry"
	Happy    Mood = "happy"
)

// Order is the match precedence when a message hits several moods.
var Order = []Mood{Tired, Sad, Stressed, Anxious, Angry, Happy}

var keywords = map[Mood][]string{
	Tired:    {"tired", "exhausted", "sleepy", "drained", "burnt out", "burned out", "thak gaya", "thaka hua", "neend"},
	Sad:      {"sad", "lonely", "depressed", "crying", "upset", "heartbroken", "udaas", "dukhi"},
	Stressed: {"stressed", "stress", "overwhelmed", "pressure", "tension"},
	Anxious:  {"anxious", "nervous", "scared", "worried", "panic", "ghabrahat", "dar lag"},
	Angry:    {"angry", "furious", "pissed", "irritated", "gussa"},
	Happy:    {"happy", "excited", "awesome", "great day", "khush", "mast"},
}

var replies = map[Mood][]string{
	Tired: {
		"Bro 😴 you sound drained. Drink some water and take a 10 min break 💙",
		"Rest is productive too 😌 Close your eyes for a bit, I'm here 💙",
		"Tired hona normal hai yaar 😮‍💨 Small break, then we go again 🔥",
	},
	Sad: {
		"Hey 🫂 I'm right here. Want to tell me what happened? 💙",
		"Sending you a big hug bro 🤗 It's okay to not be okay 💙",
		"Dil halka karna hai? Bol de, I'm listening 💙",
	},
	Stressed: {
		"Deep breath 😮‍💨 In for 4, hold for 4, out for 4. One thing at a time 💙",
		"Bro you've handled tough stuff before 💪 Let's break it into small steps 🔥",
		"Stress means you care 💙 Let's make a tiny plan for the next hour 😤",
	},
	Anxious: {
		"It's okay to feel nervous 😌 Your body is just getting ready. You've got this 💙",
		"Name 5 things you can see around you 👀 Let's ground you first 💙",
		"Ghabrao mat bro 🫶 Whatever happens, we figure it out together 💙",
	},
	Angry: {
		"Valid to be angry 😤 Want to vent? I'm all ears 💙",
		"Take a breath bro 🌬️ then tell me what set you off 💙",
		"Gussa aana normal hai 😤 Let's not let it ruin your day 💙",
	},
	Happy: {
		"Let's gooo 🔥🔥 Love this energy bro 💙",
		"Yesss 😄 Tell me everything!",
		"Khush dekh ke mujhe bhi khushi hui 😁💙",
	},
}

// Effect is how a mood nudges the 1..10 profile scales.
type Effect struct {
	Stress     int
	Confidence int
}

var effects = map[Mood]Effect{
	Tired:    {Stress: 1},
	Sad:      {Confidence: -1},
	Stressed: {Stress: 2},
	Anxious:  {Stress: 1, Confidence: -1},
	Angry:    {Stress: 1},
	Happy:    {Stress: -1, Confidence: 1},
}

var matchers = func() map[Mood]*regexp.Regexp {
	out := make(map[Mood]*regexp.Regexp, len(keywords))
	for m, words := range keywords {
		quoted := make([]string, len(words))
		for i, w := range words {
			quoted[i] = regexp.QuoteMeta(w)
		}
		out[m] = regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	}
	return out
}()

// Detect returns the first mood in Order whose keyword appears as a whole word.
func Detect(text string) (Mood, bool) {
	lower := strings.ToLower(text)
	for _, m := range Order {
		if matchers[m].MatchString(lower) {
			return m, true
		}
	}
	return "", false
}

// Replies returns the fixed reply set for m.
func Replies(m Mood) []string {
	return append([]string(nil), replies[m]...)
}

// Reply picks one reply for m; pick(n) must return a value in [0, n).
func Reply(m Mood, pick func(n int) int) string {
	set := replies[m]
	if len(set) == 0 {
		return "I hear you 💙"
	}
	i := pick(len(set))
	if i < 0 || i >= len(set) {
		i = 0
	}
	return set[i]
}

// Apply nudges stress and confidence, clamped to 1..10.
func Apply(m Mood, stress, confidence int) (int, int) {
	e := effects[m]
	return clamp(stress + e.Stress), clamp(confidence + e.Confidence)
}

func clamp(v int) int {
	if v < 1 {
		return 1
	}
	if v > 10 {
		return 10
	}
	return v
}
