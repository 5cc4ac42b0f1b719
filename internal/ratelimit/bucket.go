// Package ratelimit provides a requests-per-second token bucket. The
// embedding provider (internal/embeddings) waits for a token before each
// upstream call; once the bucket is empty callers queue up to a given
// number of waiters, and fail fast beyond that with
// rcerrors.KindTransientUpstream/CodeRateLimited. The LLM drivers
// (internal/llm) do not acquire tokens from it.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"ragcore/internal/rcerrors"
)

// Bucket is an in-process token bucket. Tokens refill continuously at
// rate-per-second; Allow/Wait consume one token per call.
type Bucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	waiters    int
}

// NewBucket creates a bucket that holds at most capacity tokens and
// refills at ratePerSecond tokens/sec. A non-positive ratePerSecond
// disables refilling (capacity acts as a fixed allowance).
func NewBucket(capacity float64, ratePerSecond float64) *Bucket {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: ratePerSecond,
		lastRefill: time.Now(),
	}
}

// Allow reports whether a token is available and, if so, consumes it.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked()
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available, the queue depth would exceed
// maxQueue, or ctx is cancelled. maxQueue bounds concurrent waiters --
// SPEC_FULL.md's concurrency_limit -- beyond which it returns a
// rcerrors TransientUpstream/CodeRateLimited error instead of blocking.
func (b *Bucket) Wait(ctx context.Context, maxQueue int) error {
	if !b.tryEnqueue(maxQueue) {
		retryAfter := b.retryAfter()
		return rcerrors.RateLimitedf(&retryAfter, "rate limit queue full (max %d waiters)", maxQueue)
	}
	defer b.dequeue()

	for {
		if b.Allow() {
			return nil
		}
		wait := b.retryAfter()
		if wait <= 0 {
			wait = time.Millisecond
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (b *Bucket) refillLocked() {
	if b.refillRate <= 0 {
		return
	}
	now := time.Now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}

// retryAfter estimates the wait until the next token is available.
func (b *Bucket) retryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refillRate <= 0 {
		return time.Second
	}
	needed := 1 - b.tokens
	if needed <= 0 {
		return 0
	}
	return time.Duration(needed / b.refillRate * float64(time.Second))
}

func (b *Bucket) tryEnqueue(maxQueue int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.waiters >= maxQueue {
		return false
	}
	b.waiters++
	return true
}

func (b *Bucket) dequeue() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waiters--
}
