package ratelimit

import "sync"

// Registry hands out one Bucket per provider name, creating it lazily from
// the supplied limits the first time that provider is seen.
type Registry struct {
	mu      sync.Mutex
	buckets map[string]*Bucket
}

// NewRegistry returns an empty provider-keyed bucket registry.
func NewRegistry() *Registry {
	return &Registry{buckets: make(map[string]*Bucket)}
}

// Bucket returns the bucket for provider, creating one with the given
// requests-per-second rate on first access. Subsequent calls for the same
// provider ignore ratePerSecond and return the existing bucket.
func (r *Registry) Bucket(provider string, ratePerSecond float64) *Bucket {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.buckets[provider]; ok {
		return b
	}
	b := NewBucket(ratePerSecond, ratePerSecond)
	r.buckets[provider] = b
	return b
}
