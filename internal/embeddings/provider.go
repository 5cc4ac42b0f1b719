package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ragcore/internal/logging"
	"ragcore/internal/rcerrors"
	"ragcore/internal/ratelimit"
)

// openAIDimensions maps known OpenAI embedding models to their vector
// width; models outside this set fall back to the ada-002 dimension.
var openAIDimensions = map[string]int{
	"text-embedding-ada-002": 1536,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
}

// OpenAIConfig configures the OpenAI embedding driver.
type OpenAIConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Timeout       time.Duration
	CacheSize     int
	CacheTTL      time.Duration
	RatePerSecond float64
	MaxQueue      int
}

// DefaultOpenAIConfig returns sensible defaults for the OpenAI driver.
func DefaultOpenAIConfig() *OpenAIConfig {
	return &OpenAIConfig{
		BaseURL:       "https://api.openai.com/v1",
		Model:         "text-embedding-ada-002",
		Timeout:       30 * time.Second,
		CacheSize:     10000,
		CacheTTL:      24 * time.Hour,
		RatePerSecond: 50,
		MaxQueue:      10,
	}
}

// OpenAIProvider implements Provider against the OpenAI embeddings API.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *logging.EnhancedLogger
	cache      *EmbeddingCache
	bucket     *ratelimit.Bucket
	maxQueue   int
}

// NewOpenAIProvider builds an OpenAI-backed embedding provider.
func NewOpenAIProvider(cfg *OpenAIConfig) (*OpenAIProvider, error) {
	if cfg == nil {
		cfg = DefaultOpenAIConfig()
	}
	if cfg.APIKey == "" {
		return nil, rcerrors.New(rcerrors.KindConfiguration, rcerrors.CodeMissingCredential, "OpenAI API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIConfig().BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIConfig().Model
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = 10
	}

	return &OpenAIProvider{
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logging.NewEnhancedLogger("embeddings.openai"),
		cache:      NewEmbeddingCache(cfg.CacheSize, cfg.CacheTTL),
		bucket:     ratelimit.NewBucket(cfg.RatePerSecond, cfg.RatePerSecond),
		maxQueue:   cfg.MaxQueue,
	}, nil
}

// Generate embeds a single text, serving from cache when possible.
func (p *OpenAIProvider) Generate(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, rcerrors.New(rcerrors.KindValidation, rcerrors.CodeInvalidInput, "text cannot be empty")
	}

	if cached, found := p.cache.Get(text); found {
		return cached, nil
	}

	if err := p.bucket.Wait(ctx, p.maxQueue); err != nil {
		return nil, err
	}

	embeddings, err := p.callEmbeddingsAPI(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, rcerrors.New(rcerrors.KindPermanentUpstream, rcerrors.CodeUpstreamBadResponse, "no embeddings returned")
	}

	p.cache.Set(text, embeddings[0])
	return embeddings[0], nil
}

// GenerateBatch embeds multiple texts, only calling upstream for the
// entries that miss cache.
func (p *OpenAIProvider) GenerateBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	results := make([][]float64, len(texts))
	var uncachedTexts []string
	var uncachedIndices []int

	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, rcerrors.New(rcerrors.KindValidation, rcerrors.CodeInvalidInput, fmt.Sprintf("text at index %d cannot be empty", i))
		}
		if cached, found := p.cache.Get(text); found {
			results[i] = cached
			continue
		}
		uncachedTexts = append(uncachedTexts, text)
		uncachedIndices = append(uncachedIndices, i)
	}

	if len(uncachedTexts) == 0 {
		return results, nil
	}

	if err := p.bucket.Wait(ctx, p.maxQueue); err != nil {
		return nil, err
	}

	embeddings, err := p.callEmbeddingsAPI(ctx, uncachedTexts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(uncachedTexts) {
		return nil, rcerrors.New(rcerrors.KindPermanentUpstream, rcerrors.CodeUpstreamBadResponse,
			fmt.Sprintf("mismatch between requested (%d) and returned (%d) embeddings", len(uncachedTexts), len(embeddings)))
	}

	for i, embedding := range embeddings {
		results[uncachedIndices[i]] = embedding
		p.cache.Set(uncachedTexts[i], embedding)
	}

	p.logger.Info("batch embeddings generated", "total", len(texts), "generated", len(uncachedTexts))
	return results, nil
}

// Dimensions returns the embedding width for the configured model.
func (p *OpenAIProvider) Dimensions() int {
	if d, ok := openAIDimensions[p.model]; ok {
		return d
	}
	return 1536
}

// HealthCheck verifies the provider can reach OpenAI by embedding a
// throwaway string.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	_, err := p.Generate(ctx, "health check")
	return err
}

func (p *OpenAIProvider) callEmbeddingsAPI(ctx context.Context, texts []string) ([][]float64, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": texts,
		"model": p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("embeddings: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeUpstreamUnavailable, "embeddings: request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embeddings: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Second
		return nil, rcerrors.RateLimitedf(&retryAfter, "embeddings: rate limited by upstream: %s", rcerrors.ExcerptBody(string(respBody), 200))
	}
	if resp.StatusCode >= 500 {
		return nil, rcerrors.Wrap(rcerrors.KindTransientUpstream, rcerrors.CodeUpstreamUnavailable,
			fmt.Sprintf("embeddings: upstream %d", resp.StatusCode), fmt.Errorf("%s", rcerrors.ExcerptBody(string(respBody), 200)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, rcerrors.New(rcerrors.KindPermanentUpstream, rcerrors.CodeUpstreamBadResponse,
			fmt.Sprintf("embeddings: upstream %d: %s", resp.StatusCode, rcerrors.ExcerptBody(string(respBody), 200)))
	}

	var parsed struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("embeddings: parse response: %w", err)
	}

	out := make([][]float64, len(parsed.Data))
	for i, item := range parsed.Data {
		out[i] = item.Embedding
	}
	return out, nil
}
