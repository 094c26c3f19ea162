package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type timeoutClient struct {
	next    Client
	timeout time.Duration
}

// WithTimeout bounds every Generate call of next. A zero timeout returns next unchanged.
func WithTimeout(next Client, timeout time.Duration) Client {
	if timeout <= 0 {
		return next
	}
	return &timeoutClient{next: next, timeout: timeout}
}

func (c *timeoutClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.next.Generate(ctx, messages)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return Response{}, fmt.Errorf("%w after %s: %v", ErrTimeout, c.timeout, err)
	}
	return resp, err
}
