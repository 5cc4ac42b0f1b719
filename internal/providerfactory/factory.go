// Package providerfactory implements the provider factory component (C6):
// it turns environment/config-driven ProviderConfig records into concrete
// llm.Provider/embeddings.Provider instances, caching one instance per
// provider name until its config.ProviderSettings change.
package providerfactory

import (
	"fmt"
	"sync"

	"ragcore/internal/config"
	"ragcore/internal/embeddings"
	"ragcore/internal/llm"
	"ragcore/internal/vectorstore"
)

// Factory builds and caches LLM and embedding providers from config. It
// generalizes the teacher's initializeClients() env-gated construction:
// instead of building every enabled client eagerly at startup, it builds
// lazily on first request and keeps the result pinned to the config
// snapshot that produced it.
type Factory struct {
	mu          sync.Mutex
	cfg         *config.LLMConfig
	llmCache    map[string]cachedLLM
	embedCfg    *config.EmbeddingConfig
	embedding   embeddings.Provider
	vectorCfg   *config.VectorStoreConfig
	vectorStore vectorstore.Store
}

type cachedLLM struct {
	provider llm.Provider
	snapshot config.ProviderSettings
}

// New builds a Factory bound to the given LLM configuration.
func New(cfg *config.LLMConfig) *Factory {
	return &Factory{
		cfg:      cfg,
		llmCache: make(map[string]cachedLLM),
	}
}

// LLM returns the cached provider for name, constructing it on first use
// and rebuilding it if its ProviderSettings have changed since the last
// build (the stand-in for ProviderConfig.UpdatedAt invalidation when
// providers are sourced from static config rather than a live registry).
func (f *Factory) LLM(name string) (llm.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	settings, err := f.settingsFor(name)
	if err != nil {
		return nil, err
	}
	if !settings.Enabled {
		return nil, fmt.Errorf("providerfactory: provider %q is not enabled", name)
	}

	if cached, ok := f.llmCache[name]; ok && cached.snapshot == settings {
		return cached.provider, nil
	}

	provider, err := f.buildLLM(name, settings)
	if err != nil {
		return nil, err
	}
	f.llmCache[name] = cachedLLM{provider: provider, snapshot: settings}
	return provider, nil
}

// Default returns the provider named by LLMConfig.DefaultProvider.
func (f *Factory) Default() (llm.Provider, error) {
	f.mu.Lock()
	name := f.cfg.DefaultProvider
	f.mu.Unlock()
	if name == "" {
		return nil, fmt.Errorf("providerfactory: no default provider configured")
	}
	return f.LLM(name)
}

func (f *Factory) settingsFor(name string) (config.ProviderSettings, error) {
	switch name {
	case "openai":
		return f.cfg.OpenAI, nil
	case "anthropic":
		return f.cfg.Anthropic, nil
	case "watsonx":
		return f.cfg.WatsonX, nil
	default:
		return config.ProviderSettings{}, fmt.Errorf("providerfactory: unknown provider %q", name)
	}
}

func (f *Factory) buildLLM(name string, settings config.ProviderSettings) (llm.Provider, error) {
	switch name {
	case "openai":
		return llm.NewOpenAIDriver(settings.APIKey, settings.BaseURL, settings.Model)
	case "anthropic":
		return llm.NewAnthropicDriver(settings.APIKey, settings.BaseURL, settings.Model)
	case "watsonx":
		return llm.NewWatsonXDriver(settings.APIKey, settings.BaseURL, settings.Model, settings.ProjectID)
	default:
		return nil, fmt.Errorf("providerfactory: unknown provider %q", name)
	}
}

// Embedding returns the configured embedding provider, built once and
// reused across calls since SPEC_FULL.md only names a single embedding
// provider per deployment (unlike the multi-provider LLM side).
func (f *Factory) Embedding(cfg *config.EmbeddingConfig) (embeddings.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.embedding != nil && f.embedCfg != nil && *f.embedCfg == *cfg {
		return f.embedding, nil
	}

	opts := embeddings.DefaultOpenAIConfig()
	opts.APIKey = cfg.APIKey
	if cfg.BaseURL != "" {
		opts.BaseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		opts.Model = cfg.Model
	}
	if cfg.CacheSize > 0 {
		opts.CacheSize = cfg.CacheSize
	}

	provider, err := embeddings.NewOpenAIProvider(opts)
	if err != nil {
		return nil, fmt.Errorf("providerfactory: build embedding provider: %w", err)
	}

	f.embedding = embeddings.NewCircuitBreakerProvider(embeddings.NewRetryableProvider(provider, nil), nil)
	f.embedCfg = cfg
	return f.embedding, nil
}

// VectorStore returns the configured Store, built once and reused across
// calls. Kind selects between the production Qdrant backend and the
// in-process HNSW backend, matching SPEC_FULL.md's index-selection guide
// for when an embedded index suffices over a standalone Qdrant deployment.
func (f *Factory) VectorStore(cfg *config.VectorStoreConfig) (vectorstore.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.vectorStore != nil && f.vectorCfg != nil && *f.vectorCfg == *cfg {
		return f.vectorStore, nil
	}

	var store vectorstore.Store
	switch cfg.Kind {
	case "memory":
		store = vectorstore.NewHNSWDriver()
	default:
		driver, err := vectorstore.NewQdrantDriver(vectorstore.QdrantConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			APIKey:   cfg.APIKey,
			UseTLS:   cfg.UseTLS,
			PoolSize: cfg.PoolSize,
		})
		if err != nil {
			return nil, fmt.Errorf("providerfactory: build vector store: %w", err)
		}
		store = driver
	}

	f.vectorStore = vectorstore.NewCircuitBreakerStore(vectorstore.NewRetryableStore(store, nil), nil)
	f.vectorCfg = cfg
	return f.vectorStore, nil
}
