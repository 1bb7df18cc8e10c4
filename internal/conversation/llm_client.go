package conversation

import "context"

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is an internal message representation that can include system prompts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMRequest carries a provider-agnostic completion request.
type LLMRequest struct {
	Model       string
	System      string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
}

// LLMResponse is the provider-agnostic completion result.
type LLMResponse struct {
	Text       string
	StopReason string
}

// LLMClient abstracts the external text-completion service.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
