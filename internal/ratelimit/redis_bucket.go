package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript is the teacher's Redis Lua token-bucket algorithm,
// trimmed to the single KEYS[1]/ARGV shape this package needs: capacity,
// refill-window-in-ms, now-in-ms. Burst is folded into capacity by the
// caller rather than passed separately.
const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refillTime = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local bucket = redis.call('HMGET', key, 'tokens', 'lastRefill')
local tokens = tonumber(bucket[1]) or capacity
local lastRefill = tonumber(bucket[2]) or now

local timePassed = now - lastRefill
local tokensToAdd = math.floor(timePassed / refillTime * capacity)
tokens = math.min(capacity, tokens + tokensToAdd)

local allowed = tokens >= 1
if allowed then
    tokens = tokens - 1
    redis.call('HMSET', key, 'tokens', tokens, 'lastRefill', now)
    redis.call('EXPIRE', key, math.ceil(refillTime / 1000) * 2)
end

local remaining = math.max(0, tokens)
return {allowed, remaining}
`

// DistributedBucket is a Redis-backed token bucket shared across process
// instances -- used when multiple ragcore replicas must agree on a single
// provider's rate limit rather than each enforcing its own in-process one.
type DistributedBucket struct {
	client   *redis.Client
	script   *redis.Script
	key      string
	capacity int
	window   time.Duration
}

// NewDistributedBucket wires a distributed bucket for the given key
// (typically "ratelimit:<provider>"), allowing capacity requests per
// window.
func NewDistributedBucket(client *redis.Client, key string, capacity int, window time.Duration) *DistributedBucket {
	return &DistributedBucket{
		client:   client,
		script:   redis.NewScript(tokenBucketScript),
		key:      key,
		capacity: capacity,
		window:   window,
	}
}

// Allow consults the shared bucket and reports whether a token was
// available and consumed.
func (d *DistributedBucket) Allow(ctx context.Context) (bool, error) {
	now := time.Now().UnixMilli()
	res, err := d.script.Run(ctx, d.client, []string{d.key},
		d.capacity, d.window.Milliseconds(), now).Result()
	if err != nil {
		return false, fmt.Errorf("ratelimit: token bucket script: %w", err)
	}

	vals, ok := res.([]interface{})
	if !ok || len(vals) < 1 {
		return false, fmt.Errorf("ratelimit: unexpected script result %v", res)
	}
	// Redis converts a Lua `true` to integer 1 and `false` to a nil reply,
	// so an untyped nil here means "not allowed".
	allowed, _ := vals[0].(int64)
	return allowed == 1, nil
}
