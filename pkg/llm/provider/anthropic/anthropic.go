// Package anthropic implements the chat provider against the Anthropic
// Messages API using the official client.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// DefaultModel is used when no model is configured.
const DefaultModel = anthropic.ModelClaudeSonnet4_20250514

const maxTokens = 4096

// Config holds the Anthropic provider settings. The API key comes from
// ANTHROPIC_API_KEY in the environment.
type Config struct {
	Model string
}

// Provider wraps the Anthropic Messages API.
type Provider struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewProvider creates an Anthropic provider using the official client.
func NewProvider(cfg Config) *Provider {
	model := anthropic.Model(cfg.Model)
	if cfg.Model == "" {
		model = DefaultModel
	}

	return &Provider{
		client: anthropic.NewClient(),
		model:  model,
	}
}

// Name identifies the backend.
func (p *Provider) Name() string {
	return "anthropic"
}

// Chat sends the prompt as a single user message and concatenates the text
// blocks of the reply.
func (p *Provider) Chat(ctx context.Context, prompt string) (string, error) {
	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}

	return b.String(), nil
}
