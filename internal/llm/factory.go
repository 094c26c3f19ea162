package llm

import (
	"errors"
	"fmt"

	"mindcare/internal/config"
)

// ErrMissingCredentials is returned when the selected provider has no usable credentials.
var ErrMissingCredentials = errors.New("llm credentials missing")

// NewFromConfig builds the client for cfg.LLMProvider, bounded by cfg.LLMTimeout.
// The same client serves replies, event extraction and the time fallback.
func NewFromConfig(cfg *config.Config) (Client, error) {
	var (
		client Client
		err    error
	)
	switch cfg.LLMProvider {
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("%w: OPENAI_API_KEY is required for provider %s", ErrMissingCredentials, cfg.LLMProvider)
		}
		client = NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.OpenRouterReferrer, cfg.OpenRouterTitle)
	case config.ProviderYandex:
		if cfg.YandexOAuthToken == "" || cfg.YandexFolderID == "" {
			return nil, fmt.Errorf("%w: YANDEX_OAUTH_TOKEN and YANDEX_FOLDER_ID are required for provider %s", ErrMissingCredentials, cfg.LLMProvider)
		}
		client, err = NewYandex(cfg.YandexOAuthToken, cfg.YandexFolderID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLMProvider)
	}
	return WithTimeout(client, cfg.LLMTimeout), nil
}
