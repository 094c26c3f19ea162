package notify

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare/internal/config"
)

type recordPusher struct {
	name   string
	tokens []string
}

func (r *recordPusher) Push(_ context.Context, token string, _ Notification) error {
	r.tokens = append(r.tokens, token)
	return nil
}

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, f.err
}

func TestRouter_PrefixAndDefault(t *testing.T) {
	def := &recordPusher{name: "fcm"}
	tg := &recordPusher{name: "tg"}
	r := NewRouter(def)
	r.Handle(TelegramPrefix, tg)

	require.NoError(t, r.Push(context.Background(), "tg:42", Notification{}))
	require.NoError(t, r.Push(context.Background(), "c8DfoR59TNy14v3i:APA91b", Notification{}))

	assert.Equal(t, []string{"tg:42"}, tg.tokens)
	assert.Equal(t, []string{"c8DfoR59TNy14v3i:APA91b"}, def.tokens)
}

func TestRouter_NoProvider(t *testing.T) {
	err := NewRouter(nil).Push(context.Background(), "abc", Notification{})
	assert.ErrorIs(t, err, ErrUnsupportedToken)
}

func TestTelegramPusher_Sends(t *testing.T) {
	fs := &fakeSender{}
	p := NewTelegram(fs)
	err := p.Push(context.Background(), TelegramIdentity(100), Notification{Title: "⏰ exam soon", Body: "You've got this"})
	require.NoError(t, err)
	require.Len(t, fs.sent, 1)
	assert.Equal(t, int64(100), fs.sent[0].ChatID)
	assert.Equal(t, "⏰ exam soon\nYou've got this", fs.sent[0].Text)
}

func TestTelegramPusher_Errors(t *testing.T) {
	p := NewTelegram(&fakeSender{err: errors.New("blocked by user")})
	assert.Error(t, p.Push(context.Background(), "tg:1", Notification{Body: "x"}))
	assert.ErrorIs(t, p.Push(context.Background(), "fcm-token", Notification{}), ErrUnsupportedToken)
	assert.Error(t, p.Push(context.Background(), "tg:abc", Notification{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Push(ctx, "tg:1", Notification{}), context.Canceled)
}

func TestBuildFCMMessage(t *testing.T) {
	data := map[string]string{"eventId": "e1", "milestone": "before"}
	msg := buildFCMMessage("tok", Notification{Title: "T", Body: "B", Data: data})
	assert.Equal(t, "tok", msg.Token)
	assert.Equal(t, "T", msg.Notification.Title)
	assert.Equal(t, "B", msg.Notification.Body)
	assert.Equal(t, data, msg.Data)
	data["eventId"] = "mutated"
	assert.Equal(t, "e1", msg.Data["eventId"])

	assert.Nil(t, buildFCMMessage("tok", Notification{}).Data)
}

func TestNewFCM_BadCredentials(t *testing.T) {
	_, err := NewFCM(context.Background(), "{not json", "")
	assert.Error(t, err)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "short", Redact("short"))
	assert.Equal(t, "c8DfoR…GyY1", Redact("c8DfoR59TNy14v3iPFBEcm:APA91bGyY1"))
}

func TestFromConfig_LogOnly(t *testing.T) {
	p, err := FromConfig(context.Background(), &config.Config{}, nil)
	require.NoError(t, err)
	r, ok := p.(*Router)
	require.True(t, ok)
	assert.IsType(t, LogPusher{}, r.Default)
	assert.Empty(t, r.routes)
	assert.NoError(t, p.Push(context.Background(), "device-token", Notification{Title: "t", Body: "b"}))
}
