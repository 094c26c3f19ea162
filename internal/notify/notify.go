// Package notify delivers push notifications to identity tokens.
package notify

import (
	"context"
	"errors"
	"log"
	"strings"
)

// ErrUnsupportedToken is returned when no provider handles a token.
var ErrUnsupportedToken = errors.New("no push provider for token")

type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Pusher delivers a single notification. Implementations must honour ctx cancellation.
type Pusher interface {
	Push(ctx context.Context, token string, n Notification) error
}

// PusherFunc adapts a function to Pusher.
type PusherFunc func(ctx context.Context, token string, n Notification) error

func (f PusherFunc) Push(ctx context.Context, token string, n Notification) error {
	return f(ctx, token, n)
}

// LogPusher only logs. It is the default when no provider is configured.
type LogPusher struct{}

func (LogPusher) Push(_ context.Context, token string, n Notification) error {
	log.Printf("🔔 [dry-run push] to=%s title=%q body=%q", Redact(token), n.Title, n.Body)
	return nil
}

// Router picks a provider by token prefix, falling back to Default.
type Router struct {
	routes  map[string]Pusher
	Default Pusher
}

func NewRouter(def Pusher) *Router {
	return &Router{routes: make(map[string]Pusher), Default: def}
}

// Handle routes tokens starting with prefix to p.
func (r *Router) Handle(prefix string, p Pusher) {
	r.routes[prefix] = p
}

func (r *Router) Push(ctx context.Context, token string, n Notification) error {
	best := ""
	var target Pusher
	for prefix, p := range r.routes {
		if strings.HasPrefix(token, prefix) && len(prefix) > len(best) {
			best, target = prefix, p
		}
	}
	if target == nil {
		target = r.Default
	}
	if target == nil {
		return ErrUnsupportedToken
	}
	return target.Push(ctx, token, n)
}

// Redact shortens a token for logs.
func Redact(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:6] + "…" + token[len(token)-4:]
}
