// Package perception provides the LLM backend client used by the research
// stage. All model access goes through the LLMClient interface so tests and
// alternative providers can swap the transport.
package perception

import (
	"context"
	"fmt"
	"time"
)

// LLMClient is the minimal completion surface the rest of the system needs.
type LLMClient interface {
	// Complete sends a prompt and returns the completion text.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithSystem sends a prompt with a system message.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Config selects and configures a provider.
type Config struct {
	// Provider is the backend name; currently "openai" covers any
	// OpenAI-compatible chat-completions endpoint.
	Provider string

	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewClient builds a client for the configured provider.
func NewClient(cfg Config) (LLMClient, error) {
	switch cfg.Provider {
	case "", "openai":
		return NewOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// chat wire types shared by OpenAI-compatible providers.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}
