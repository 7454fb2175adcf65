// Package tools implements the agent's built-in tools: arithmetic
// evaluation, web search with content fetch, local file reading, and forum
// search. Tools are addressed by name through a small registry.
package tools

import (
	"context"
	"fmt"
)

// Tool is one invocable capability.
type Tool interface {
	// Name is the registry key (also the slash command suffix).
	Name() string

	// Description is a short human-readable summary.
	Description() string

	// Call runs the tool on the given input and returns its text output.
	Call(ctx context.Context, input string) (string, error)
}

// Registry maps tool names to implementations.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates a registry holding the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %q", name)
	}
	return t, nil
}

// Names lists the registered tool names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}
