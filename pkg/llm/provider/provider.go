// Package provider defines the chat capability interface model backends
// implement, and resolves the configured backend into an enumerated variant
// once at startup.
package provider

import (
	"context"
	"fmt"

	"github.com/papercomputeco/warren/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/warren/pkg/llm/provider/ollama"
	"github.com/papercomputeco/warren/pkg/llm/provider/openai"
)

// Provider is the fixed chat capability every model backend implements.
type Provider interface {
	// Name identifies the backend (anthropic, openai, ollama).
	Name() string

	// Chat sends a prompt and returns the raw model reply.
	Chat(ctx context.Context, prompt string) (string, error)
}

// Config selects and parameterizes a backend.
type Config struct {
	// Provider is one of "anthropic", "openai", "ollama".
	Provider string

	// Target is the API base URL. Backends fall back to their canonical
	// endpoint when empty.
	Target string

	// Model is the model identifier to invoke.
	Model string
}

// New resolves the configured provider into its variant. Credentials come
// from the environment (ANTHROPIC_API_KEY, OPENAI_API_KEY).
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewProvider(anthropic.Config{Model: cfg.Model}), nil
	case "openai":
		return openai.NewProvider(openai.Config{Model: cfg.Model}), nil
	case "ollama":
		return ollama.NewProvider(ollama.Config{BaseURL: cfg.Target, Model: cfg.Model}), nil
	default:
		return nil, fmt.Errorf("unknown model provider: %q (available: anthropic, openai, ollama)", cfg.Provider)
	}
}
