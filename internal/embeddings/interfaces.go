// Package embeddings implements the embedding provider component (C2):
// text -> vector, batched and cached, behind a single Provider interface
// so the retriever (C7) and indexing paths never see a concrete driver.
package embeddings

import "context"

// Provider generates vector embeddings for text.
type Provider interface {
	// Generate embeds a single text.
	Generate(ctx context.Context, text string) ([]float64, error)

	// GenerateBatch embeds multiple texts, batching upstream calls and
	// reusing cached results where possible. The returned slice is
	// positionally aligned with texts.
	GenerateBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions reports the vector width this provider produces.
	Dimensions() int

	// HealthCheck verifies the provider can currently serve requests.
	HealthCheck(ctx context.Context) error
}
