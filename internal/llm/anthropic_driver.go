package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"ragcore/internal/rcerrors"
	"ragcore/internal/types"
)

// AnthropicDriver implements Provider against the Messages API via the
// official SDK, rather than the hand-rolled BaseClient plumbing the
// OpenAI/WatsonX drivers use.
type AnthropicDriver struct {
	client anthropic.Client
	model  string
}

// NewAnthropicDriver builds an Anthropic Messages driver.
func NewAnthropicDriver(apiKey, baseURL, model string) (*AnthropicDriver, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: Anthropic API key is required")
	}
	if model == "" {
		model = "claude-3-5-sonnet-latest"
	}

	requestOptions := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		requestOptions = append(requestOptions, option.WithBaseURL(baseURL))
	}

	return &AnthropicDriver{
		client: anthropic.NewClient(requestOptions...),
		model:  model,
	}, nil
}

// Capabilities reports what this driver supports.
func (d *AnthropicDriver) Capabilities() Capabilities {
	return Capabilities{
		Provider: "anthropic",
		SupportedModels: []string{
			"claude-3-5-sonnet-latest",
			"claude-3-5-haiku-latest",
			"claude-3-opus-latest",
		},
		MaxTokens:             200000,
		SupportsSystemMessage: true,
	}
}

// Generate sends a single-turn Messages request and converts the result
// to a Completion.
func (d *AnthropicDriver) Generate(ctx context.Context, prompt string, params types.LLMParameters) (Completion, error) {
	start := time.Now()

	maxTokens := int64(params.MaxNewTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(d.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if params.Temperature > 0 {
		req.Temperature = param.NewOpt(params.Temperature)
	}
	if params.TopP > 0 {
		req.TopP = param.NewOpt(params.TopP)
	}
	if len(params.StopSequences) > 0 {
		req.StopSequences = params.StopSequences
	}

	msg, err := d.client.Messages.New(ctx, req)
	if err != nil {
		return Completion{}, classifyAnthropicError(err)
	}

	var content string
	for _, block := range msg.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	return Completion{
		Content:      content,
		Provider:     "anthropic",
		Model:        string(msg.Model),
		FinishReason: string(msg.StopReason),
		Usage: types.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
		},
		Latency: time.Since(start),
	}, nil
}

// HealthCheck issues a minimal generation to confirm the provider answers.
func (d *AnthropicDriver) HealthCheck(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := d.Generate(healthCtx, "ping", types.LLMParameters{MaxNewTokens: 1})
	return err
}

// classifyAnthropicError maps an SDK error onto the shared error taxonomy.
// The SDK surfaces HTTP failures as *anthropic.Error, which carries the
// status code the rest of the codebase classifies retryability on.
func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeUpstreamUnavailable, "llm: anthropic request failed", err)
	}

	switch {
	case apiErr.StatusCode == 429:
		retryAfter := time.Second
		return rcerrors.RateLimitedf(&retryAfter, "llm: anthropic rate limited: %s", apiErr.Error())
	case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
		return rcerrors.New(rcerrors.KindPermanentUpstream, rcerrors.CodeAuthFailed, "llm: anthropic auth failed")
	case apiErr.StatusCode >= 500:
		return rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeUpstreamError, "llm: anthropic upstream error", err)
	default:
		return rcerrors.Wrap(rcerrors.KindPermanentUpstream, rcerrors.CodeUpstreamError, "llm: anthropic request rejected", err)
	}
}
