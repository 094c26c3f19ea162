package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Response is one completion. Model names the model that produced it, for logs.
type Response struct {
	Content string
	Model   string
}

type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}
