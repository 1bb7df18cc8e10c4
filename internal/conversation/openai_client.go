package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type chatCompletionAPI interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient adapts the OpenAI chat completion API to LLMClient.
type OpenAIClient struct {
	api chatCompletionAPI
}

// NewOpenAIClient builds a client from an API key.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	if strings.TrimSpace(apiKey) == "" {
		panic("conversation: openai api key cannot be empty")
	}
	return &OpenAIClient{api: openai.NewClient(apiKey)}
}

// NewOpenAIClientWithAPI injects a custom API implementation, used in tests.
func NewOpenAIClientWithAPI(api chatCompletionAPI) *OpenAIClient {
	if api == nil {
		panic("conversation: chat client cannot be nil")
	}
	return &OpenAIClient{api: api}
}

// Complete sends a chat completion request and returns the first choice.
func (c *OpenAIClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case ChatRoleSystem:
			role = openai.ChatMessageRoleSystem
		case ChatRoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: content})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   int(req.MaxTokens),
		Temperature: req.Temperature,
	})
	if err != nil {
		return LLMResponse{}, fmt.Errorf("conversation: openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return LLMResponse{}, errors.New("conversation: openai returned no choices")
	}

	choice := resp.Choices[0]
	return LLMResponse{
		Text:       strings.TrimSpace(choice.Message.Content),
		StopReason: string(choice.FinishReason),
	}, nil
}
