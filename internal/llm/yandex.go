package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Morwran/yagpt"
)

// IAM tokens live for at most 12 hours; refresh well before that.
const iamRefreshAfter = time.Hour

type YandexClient struct {
	ya   yagpt.YaGPTFace
	mint func() (string, error)
	now  func() time.Time

	mu       sync.Mutex
	iamToken string
	mintedAt time.Time
}

// NewYandex exchanges the OAuth token for an IAM token up front so bad credentials fail at startup.
func NewYandex(oauthToken, folderID string) (*YandexClient, error) {
	iam, err := yagpt.NewYaIam(oauthToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init yandex iam: %w", err)
	}
	ya, err := yagpt.NewYagpt(folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to init yagpt: %w", err)
	}
	c := &YandexClient{
		ya: ya,
		mint: func() (string, error) {
			resp, err := iam.Create()
			if err != nil {
				return "", err
			}
			return resp.IamToken, nil
		},
		now: time.Now,
	}
	if _, err := c.token(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *YandexClient) token() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.iamToken != "" && c.now().Sub(c.mintedAt) < iamRefreshAfter {
		return c.iamToken, nil
	}
	tok, err := c.mint()
	if err != nil {
		if c.iamToken != "" {
			return c.iamToken, nil
		}
		return "", fmt.Errorf("failed to create iam token: %w", err)
	}
	c.iamToken, c.mintedAt = tok, c.now()
	return tok, nil
}

func (c *YandexClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	tok, err := c.token()
	if err != nil {
		return Response{}, err
	}
	yaMsgs := make([]yagpt.Message, 0, len(messages))
	for _, m := range messages {
		yaMsgs = append(yaMsgs, yagpt.Message{Role: m.Role, Content: m.Content})
	}

	resp, err := c.ya.CompletionWithCtx(ctx, tok, yaMsgs)
	if err != nil {
		return Response{}, fmt.Errorf("yagpt completion failed: %w", err)
	}
	if resp == nil || len(resp.Alternatives) == 0 {
		return Response{}, ErrEmptyResponse
	}
	return Response{Content: resp.Alternatives[0].Message.Content, Model: yagpt.YaModelLite}, nil
}
