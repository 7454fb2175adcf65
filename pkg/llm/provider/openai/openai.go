// Package openai implements the chat provider against the OpenAI Chat
// Completions API using the official client.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// Config holds the OpenAI provider settings. The API key comes from
// OPENAI_API_KEY in the environment.
type Config struct {
	Model string
}

// Provider wraps the OpenAI Chat Completions API.
type Provider struct {
	client openai.Client
	model  openai.ChatModel
}

// NewProvider creates an OpenAI provider using the official client.
func NewProvider(cfg Config) *Provider {
	model := openai.ChatModel(cfg.Model)
	if cfg.Model == "" {
		model = DefaultModel
	}

	return &Provider{
		client: openai.NewClient(),
		model:  model,
	}
}

// Name identifies the backend.
func (p *Provider) Name() string {
	return "openai"
}

// Chat sends the prompt as a single user message and returns the first
// choice's content.
func (p *Provider) Chat(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}
