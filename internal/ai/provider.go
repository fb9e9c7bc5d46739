package ai

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenOptions carries per-call generation parameters. Each prompt mode ships
// its own options; the provider only forwards them.
type GenOptions struct {
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
}

type Provider interface {
	Chat(ctx context.Context, messages []Message, opts GenOptions) (string, error)
}
