// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Backend names a family of model servers.
type Backend string

const (
	// BackendOllama talks to an Ollama server through its native API.
	BackendOllama Backend = "ollama"
	// BackendOpenAI talks to any OpenAI-compatible server (OpenAI, vLLM, LocalAI, Ollama's /v1).
	BackendOpenAI Backend = "openai"
)

// GenerationOptions are sampling knobs passed unchanged to the language model.
type GenerationOptions struct {
	Temperature   float64
	MaxTokens     int
	ContextWindow int // Ollama num_ctx; ignored by OpenAI-compatible servers
	TopP          float64
	RepeatPenalty float64
}

// DefaultGenerationOptions returns conservative settings for factual answers.
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		Temperature:   0.3,
		MaxTokens:     512,
		ContextWindow: 4096,
		TopP:          0.9,
		RepeatPenalty: 1.1,
	}
}

// Config holds configuration for AI service providers.
type Config struct {
	// Backend selects the provider implementation.
	// Default: ollama
	Backend Backend

	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434" for a local Ollama server
	EmbeddingHost string

	// GenerationHost is the base URL for the text generation service API.
	GenerationHost string

	// APIKey is sent as bearer token to OpenAI-compatible servers.
	// Local servers accept any value.
	APIKey string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "embeddinggemma", "text-embedding-3-small"
	EmbeddingModel string

	// GenerationModel is the model identifier used to answer questions.
	// Example: "llama3.2:3b", "gpt-4o-mini"
	GenerationModel string

	Generation GenerationOptions

	// EmbeddingRPS caps embedding requests per second. Zero disables pacing.
	EmbeddingRPS float64
	// EmbeddingBurst is the number of requests allowed above the steady rate.
	EmbeddingBurst int

	// BreakerFailures is the number of consecutive generation failures that
	// open the circuit breaker. Zero disables the breaker.
	BreakerFailures uint32
	// BreakerCooldown is how long the breaker stays open before probing again.
	BreakerCooldown time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithBackend selects the provider implementation.
func WithBackend(backend Backend) ConfigOption {
	return func(c *Config) {
		c.Backend = backend
	}
}

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithGenerationHost sets the generation service host URL.
func WithGenerationHost(host string) ConfigOption {
	return func(c *Config) {
		c.GenerationHost = host
	}
}

// WithHost sets both embedding and generation hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.GenerationHost = host
	}
}

// WithAPIKey sets the bearer token for OpenAI-compatible servers.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithGenerationModel sets the generation model identifier.
func WithGenerationModel(model string) ConfigOption {
	return func(c *Config) {
		c.GenerationModel = model
	}
}

// WithGenerationOptions replaces the sampling options.
func WithGenerationOptions(opts GenerationOptions) ConfigOption {
	return func(c *Config) {
		c.Generation = opts
	}
}

// WithEmbeddingRateLimit paces embedding requests.
func WithEmbeddingRateLimit(rps float64, burst int) ConfigOption {
	return func(c *Config) {
		c.EmbeddingRPS = rps
		c.EmbeddingBurst = burst
	}
}

// WithCircuitBreaker guards generation calls with a circuit breaker.
func WithCircuitBreaker(failures uint32, cooldown time.Duration) ConfigOption {
	return func(c *Config) {
		c.BreakerFailures = failures
		c.BreakerCooldown = cooldown
	}
}

// DefaultConfig returns a Config with sensible defaults for a local Ollama server.
// By default, both embedding and generation use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434"
	return &Config{
		Backend:         BackendOllama,
		EmbeddingHost:   defaultHost,
		GenerationHost:  defaultHost,
		APIKey:          "none",
		EmbeddingModel:  "embeddinggemma",
		GenerationModel: "llama3.2:3b",
		Generation:      DefaultGenerationOptions(),
		EmbeddingBurst:  1,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//   cfg := NewConfig(
//       WithBackend(BackendOpenAI),
//       WithHost("https://api.openai.com"),
//       WithEmbeddingModel("text-embedding-3-small"),
//   )
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// OpenAI-compatible hosts get the /v1 suffix most servers require,
// Ollama hosts lose it since the native API lives at the root.
func (c *Config) Normalize() {
	if c.Backend == "" {
		c.Backend = BackendOllama
	}
	c.EmbeddingHost = c.normalizeHost(c.EmbeddingHost)
	c.GenerationHost = c.normalizeHost(c.GenerationHost)
	if c.APIKey == "" {
		// langchaingo's openai client refuses an empty token
		c.APIKey = "none"
	}
	if c.EmbeddingBurst < 1 {
		c.EmbeddingBurst = 1
	}
}

func (c *Config) normalizeHost(host string) string {
	if host == "" {
		return host
	}
	host = strings.TrimSuffix(host, "/")
	switch c.Backend {
	case BackendOpenAI:
		if !strings.HasSuffix(host, "/v1") {
			host += "/v1"
		}
	case BackendOllama:
		host = strings.TrimSuffix(host, "/v1")
	}
	return host
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.Backend != BackendOllama && c.Backend != BackendOpenAI {
		return fmt.Errorf("ai config: unknown Backend %q", c.Backend)
	}
	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.GenerationHost == "" {
		return errors.New("ai config: GenerationHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.GenerationModel == "" {
		return errors.New("ai config: GenerationModel is required")
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return errors.New("ai config: Temperature must be between 0 and 2")
	}
	if c.Generation.TopP < 0 || c.Generation.TopP > 1 {
		return errors.New("ai config: TopP must be between 0 and 1")
	}
	if c.Generation.MaxTokens < 0 {
		return errors.New("ai config: MaxTokens must not be negative")
	}
	if c.Generation.ContextWindow < 0 {
		return errors.New("ai config: ContextWindow must not be negative")
	}
	if c.EmbeddingRPS < 0 {
		return errors.New("ai config: EmbeddingRPS must not be negative")
	}
	if c.BreakerFailures > 0 && c.BreakerCooldown <= 0 {
		return errors.New("ai config: BreakerCooldown must be positive when the breaker is enabled")
	}
	return nil
}
