package elevenlabs

import (
	"context"
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter for API requests.
// This keeps bursty session creation (one agent plus several document
// uploads) from tripping the provider's 429 responses.
type RateLimiter struct {
	mu sync.Mutex

	tokens            float64       // Current number of tokens
	maxTokens         float64       // Maximum tokens (bucket size)
	refillRate        float64       // Tokens added per second
	lastRefillTime    time.Time     // Last time tokens were refilled
	minInterval       time.Duration // Minimum interval between requests
	lastRequestTime   time.Time
	backoffMultiplier float64 // Slows refill after a 429
}

// RateLimiterConfig holds configuration for the rate limiter
type RateLimiterConfig struct {
	MaxTokens   float64       // Max burst capacity (default: 10)
	RefillRate  float64       // Tokens per second (default: 2)
	MinInterval time.Duration // Minimum time between requests (default: 200ms)
}

// DefaultRateLimiterConfig returns sensible defaults for the ElevenLabs API
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		MaxTokens:   10,
		RefillRate:  2,
		MinInterval: 200 * time.Millisecond,
	}
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	return &RateLimiter{
		tokens:            config.MaxTokens,
		maxTokens:         config.MaxTokens,
		refillRate:        config.RefillRate,
		lastRefillTime:    time.Now(),
		minInterval:       config.MinInterval,
		backoffMultiplier: 1.0,
	}
}

// SetBackoffMultiplier slows the refill rate after the API signals rate
// limiting. The multiplier decays back to 1.0 as refills succeed.
func (r *RateLimiter) SetBackoffMultiplier(multiplier float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if multiplier > r.backoffMultiplier {
		r.backoffMultiplier = multiplier
	}
}

// Wait blocks until a token is available or the context is cancelled
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait := r.reserve()
		if wait <= 0 {
			return nil
		}
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// reserve refills the bucket and either consumes a token (returning 0) or
// returns how long to wait before trying again.
func (r *RateLimiter) reserve() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastRefillTime).Seconds()
	r.tokens += elapsed * (r.refillRate / r.backoffMultiplier)
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
	r.lastRefillTime = now

	// Decay the backoff once the bucket has recovered
	if r.backoffMultiplier > 1.0 && r.tokens >= r.maxTokens {
		r.backoffMultiplier = 1.0
	}

	if sinceLast := now.Sub(r.lastRequestTime); sinceLast < r.minInterval {
		return r.minInterval - sinceLast
	}

	if r.tokens >= 1 {
		r.tokens--
		r.lastRequestTime = now
		return 0
	}

	// Time until one token refills
	deficit := 1 - r.tokens
	return time.Duration(deficit / (r.refillRate / r.backoffMultiplier) * float64(time.Second))
}
