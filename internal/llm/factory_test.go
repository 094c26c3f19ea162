package llm

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindcare/internal/config"
)

func TestNewFromConfig_OpenAIWrapsTimeout(t *testing.T) {
	c, err := NewFromConfig(&config.Config{LLMProvider: config.ProviderOpenAI, OpenAIAPIKey: "k", OpenAIModel: "m", LLMTimeout: time.Second})
	require.NoError(t, err)
	tc, ok := c.(*timeoutClient)
	require.True(t, ok)
	assert.IsType(t, &OpenAIClient{}, tc.next)
}

func TestNewFromConfig_MissingCredentials(t *testing.T) {
	for name, cfg := range map[string]*config.Config{
		"openai": {LLMProvider: config.ProviderOpenAI},
		"yandex": {LLMProvider: config.ProviderYandex, YandexOAuthToken: "t"},
	} {
		_, err := NewFromConfig(cfg)
		assert.ErrorIs(t, err, ErrMissingCredentials, name)
	}
}

func TestNewFromConfig_UnknownProvider(t *testing.T) {
	_, err := NewFromConfig(&config.Config{LLMProvider: "llama-local"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrMissingCredentials)
}

func TestYandexToken_RefreshesAfterAnHour(t *testing.T) {
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	minted := 0
	c := &YandexClient{
		mint: func() (string, error) {
			minted++
			return "iam-" + string(rune('0'+minted)), nil
		},
		now: func() time.Time { return now },
	}

	tok, err := c.token()
	require.NoError(t, err)
	assert.Equal(t, "iam-1", tok)

	now = now.Add(30 * time.Minute)
	tok, _ = c.token()
	assert.Equal(t, "iam-1", tok)

	now = now.Add(time.Hour)
	tok, _ = c.token()
	assert.Equal(t, "iam-2", tok)
	assert.Equal(t, 2, minted)
}

func TestYandexToken_KeepsOldTokenWhenRefreshFails(t *testing.T) {
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	fail := false
	c := &YandexClient{
		mint: func() (string, error) {
			if fail {
				return "", errors.New("iam down")
			}
			return "iam-ok", nil
		},
		now: func() time.Time { return now },
	}
	_, err := c.token()
	require.NoError(t, err)

	fail = true
	now = now.Add(2 * time.Hour)
	tok, err := c.token()
	require.NoError(t, err)
	assert.Equal(t, "iam-ok", tok)

	_, err = (&YandexClient{mint: c.mint, now: c.now}).token()
	assert.Error(t, err)
}
