package ai

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedEmbedder paces calls to the wrapped Embedder.
// One batch call consumes one token, matching one request to the server.
type RateLimitedEmbedder struct {
	next    Embedder
	limiter *rate.Limiter
}

var _ Embedder = (*RateLimitedEmbedder)(nil)

// NewRateLimitedEmbedder allows rps requests per second with the given burst.
func NewRateLimitedEmbedder(next Embedder, rps float64, burst int) *RateLimitedEmbedder {
	return &RateLimitedEmbedder{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), max(burst, 1)),
	}
}

// EmbedText waits for a token, then embeds text.
func (e *RateLimitedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.next.EmbedText(ctx, text)
}

// EmbedTexts waits for a token, then embeds texts in one request.
func (e *RateLimitedEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return e.next.EmbedTexts(ctx, texts)
}

// WrapEmbedder applies the embedding rate limit configured in c, if any.
func (c *Config) WrapEmbedder(e Embedder) Embedder {
	if c.EmbeddingRPS <= 0 {
		return e
	}
	return NewRateLimitedEmbedder(e, c.EmbeddingRPS, c.EmbeddingBurst)
}

// WrapCompleter applies the circuit breaker configured in c, if any.
func (c *Config) WrapCompleter(completer Completer) Completer {
	if c.BreakerFailures == 0 {
		return completer
	}
	return NewBreakerCompleter(completer, c.BreakerFailures, c.BreakerCooldown, nil)
}
