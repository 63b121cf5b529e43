package llm

import (
	"context"

	"github.com/yoockh/yoavatar/internal/models"
	"github.com/yoockh/yoavatar/internal/utils"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type CompletionRequest struct {
	Messages    []models.ChatMessage
	MaxTokens   int
	Temperature float64
}

type Provider interface {
	// Complete returns the full reply text for the conversation.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Close() error
}

// Unconfigured stands in for a provider that could not be built at start-up.
type Unconfigured struct {
	Provider string
	Cause    error
}

func (u Unconfigured) Complete(context.Context, CompletionRequest) (string, error) {
	return "", utils.K(utils.KindConfiguration, "llm.Unconfigured", u.Provider+" reply generation unavailable", u.Cause)
}

func (Unconfigured) Close() error { return nil }

// BuildMessages returns the system prompt, the last limit history turns and
// the new user turn, in that order.
func BuildMessages(system string, history []models.ChatMessage, transcript string, limit int) []models.ChatMessage {
	if limit >= 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	out := make([]models.ChatMessage, 0, len(history)+2)
	out = append(out, models.ChatMessage{Role: RoleSystem, Content: system})
	out = append(out, history...)
	out = append(out, models.ChatMessage{Role: RoleUser, Content: transcript})
	return out
}
