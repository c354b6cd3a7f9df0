// File path: internal/llm/providers/local.go
package providers

import (
	"context"
	"errors"
)

// Message roles accepted by Chat.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Name() string
}

// ErrUnavailable signals that no language model is configured. Callers fall
// back to deterministic generation when they see it.
var ErrUnavailable = errors.New("language model unavailable")

// LocalProvider stands in when no API key is configured. Every call reports
// ErrUnavailable so collaborators use their offline fallbacks.
type LocalProvider struct{}

func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (l *LocalProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	return "", ErrUnavailable
}

func (l *LocalProvider) Name() string {
	return "local"
}
