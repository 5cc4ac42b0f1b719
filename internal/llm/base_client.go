package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ragcore/internal/rcerrors"
	"ragcore/internal/types"
)

// AuthProvider adds a provider's authentication scheme to an outbound
// request -- a bearer token (BearerTokenAuth) for the OpenAI/WatsonX
// drivers. The Anthropic driver uses the Anthropic SDK, not BaseClient.
type AuthProvider interface {
	AddAuth(req *http.Request, apiKey string)
}

// RequestConverter turns a prompt + parameters into a provider's wire
// request body.
type RequestConverter interface {
	ConvertRequest(prompt string, params types.LLMParameters, cfg BaseConfig) (any, error)
}

// ResponseConverter turns a provider's raw response body into a Completion.
type ResponseConverter interface {
	ConvertResponse(body []byte, start time.Time) (Completion, error)
}

// BaseConfig holds the connection details common to every HTTP-based
// driver.
type BaseConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Provider string
	Timeout  time.Duration
}

// BaseClient provides the HTTP plumbing shared by every hand-rolled
// driver (OpenAI, WatsonX): marshal, POST, unmarshal, with the
// provider-specific pieces supplied via the three interfaces above.
type BaseClient struct {
	config     BaseConfig
	httpClient *http.Client
	auth       AuthProvider
	reqConv    RequestConverter
	respConv   ResponseConverter
}

// NewBaseClient wires a BaseClient for one provider.
func NewBaseClient(cfg BaseConfig, auth AuthProvider, reqConv RequestConverter, respConv ResponseConverter) *BaseClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &BaseClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		auth:       auth,
		reqConv:    reqConv,
		respConv:   respConv,
	}
}

// Generate converts prompt+params, issues the HTTP call, and converts the
// response -- the three-stage pipeline every BaseClient-backed driver
// shares.
func (b *BaseClient) Generate(ctx context.Context, prompt string, params types.LLMParameters) (Completion, error) {
	start := time.Now()

	providerReq, err := b.reqConv.ConvertRequest(prompt, params, b.config)
	if err != nil {
		return Completion{}, fmt.Errorf("llm: convert request: %w", err)
	}

	body, err := b.call(ctx, providerReq)
	if err != nil {
		return Completion{}, err
	}

	completion, err := b.respConv.ConvertResponse(body, start)
	if err != nil {
		return Completion{}, rcerrors.Wrap(rcerrors.KindPermanentUpstream, rcerrors.CodeResponseParseError, "llm: parse response", err)
	}
	completion.Latency = time.Since(start)
	completion.Provider = b.config.Provider
	return completion, nil
}

// HealthCheck issues a minimal generation to confirm the provider answers.
func (b *BaseClient) HealthCheck(ctx context.Context) error {
	healthCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	params := types.LLMParameters{MaxNewTokens: 1, Temperature: 0}
	_, err := b.Generate(healthCtx, "ping", params)
	return err
}

func (b *BaseClient) call(ctx context.Context, payload any) ([]byte, error) {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.config.BaseURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	b.auth.AddAuth(req, b.config.APIKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeUpstreamUnavailable, "llm: request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := time.Second
		return nil, rcerrors.RateLimitedf(&retryAfter, "llm: %s rate limited: %s", b.config.Provider, rcerrors.ExcerptBody(string(body), 200))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, rcerrors.New(rcerrors.KindPermanentUpstream, rcerrors.CodeAuthFailed, fmt.Sprintf("llm: %s auth failed", b.config.Provider))
	case resp.StatusCode >= 500:
		return nil, rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeUpstreamError,
			fmt.Sprintf("llm: %s upstream %d", b.config.Provider, resp.StatusCode), fmt.Errorf("%s", rcerrors.ExcerptBody(string(body), 200)))
	case resp.StatusCode != http.StatusOK:
		return nil, rcerrors.New(rcerrors.KindPermanentUpstream, rcerrors.CodeUpstreamError,
			fmt.Sprintf("llm: %s returned %d: %s", b.config.Provider, resp.StatusCode, rcerrors.ExcerptBody(string(body), 200)))
	}

	return body, nil
}

// BearerTokenAuth implements AuthProvider for bearer-token schemes
// (OpenAI, WatsonX).
type BearerTokenAuth struct{}

func (BearerTokenAuth) AddAuth(req *http.Request, apiKey string) {
	req.Header.Set("Authorization", "Bearer "+apiKey)
}
