package llm

import (
	"encoding/json"
	"fmt"
	"time"

	"ragcore/internal/types"
)

// OpenAIDriver implements Provider against OpenAI's chat completions API.
type OpenAIDriver struct {
	*BaseClient
	model string
}

// NewOpenAIDriver builds an OpenAI chat-completions driver.
func NewOpenAIDriver(apiKey, baseURL, model string) (*OpenAIDriver, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: OpenAI API key is required")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}

	cfg := BaseConfig{
		APIKey:   apiKey,
		BaseURL:  baseURL + "/chat/completions",
		Model:    model,
		Provider: "openai",
		Timeout:  30 * time.Second,
	}
	base := NewBaseClient(cfg, BearerTokenAuth{}, openAIRequestConverter{}, openAIResponseConverter{})
	return &OpenAIDriver{BaseClient: base, model: model}, nil
}

// Capabilities reports what this driver supports.
func (d *OpenAIDriver) Capabilities() Capabilities {
	return Capabilities{
		Provider:              "openai",
		SupportedModels:       []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo"},
		MaxTokens:             128000,
		SupportsSystemMessage: true,
	}
}

type openAIRequestConverter struct{}

func (openAIRequestConverter) ConvertRequest(prompt string, params types.LLMParameters, cfg BaseConfig) (any, error) {
	req := map[string]any{
		"model":    cfg.Model,
		"messages": []map[string]string{{"role": "user", "content": prompt}},
	}
	if params.Temperature > 0 {
		req["temperature"] = params.Temperature
	}
	if params.MaxNewTokens > 0 {
		req["max_tokens"] = params.MaxNewTokens
	}
	if params.TopP > 0 {
		req["top_p"] = params.TopP
	}
	if len(params.StopSequences) > 0 {
		req["stop"] = params.StopSequences
	}
	return req, nil
}

type openAIResponseConverter struct{}

func (openAIResponseConverter) ConvertResponse(body []byte, _ time.Time) (Completion, error) {
	var parsed struct {
		Model   string `json:"model"`
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Completion{}, fmt.Errorf("openai: unmarshal response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Completion{}, fmt.Errorf("openai: no choices in response")
	}

	return Completion{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		FinishReason: parsed.Choices[0].FinishReason,
		Usage: types.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
		},
	}, nil
}
