// Package llm implements the LLM provider component (C3): a single
// Provider interface in front of OpenAI, Anthropic, and WatsonX drivers,
// so the pipeline (C10) and CoT controller (C9) never branch on which
// model answered a prompt.
package llm

import (
	"context"
	"time"

	"ragcore/internal/types"
)

// Completion is a single provider response.
type Completion struct {
	Content      string
	Provider     string
	Model        string
	Usage        types.TokenUsage
	FinishReason string
	Latency      time.Duration
}

// Capabilities describes what a provider supports, as reported by each
// driver's Capabilities method.
type Capabilities struct {
	Provider              string
	SupportedModels       []string
	MaxTokens             int
	SupportsSystemMessage bool
}

// Provider generates completions from a prompt. Every driver -- OpenAI,
// Anthropic, WatsonX -- implements this the same way regardless of its
// wire protocol.
type Provider interface {
	Generate(ctx context.Context, prompt string, params types.LLMParameters) (Completion, error)
	HealthCheck(ctx context.Context) error
	Capabilities() Capabilities
}
