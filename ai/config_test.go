package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, BackendOllama, cfg.Backend)
	assert.Equal(t, "http://localhost:11434", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434", cfg.GenerationHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, "llama3.2:3b", cfg.GenerationModel)
	assert.Equal(t, 0.3, cfg.Generation.Temperature)
	assert.Equal(t, 512, cfg.Generation.MaxTokens)
	assert.Equal(t, 4096, cfg.Generation.ContextWindow)
	assert.Equal(t, 0.9, cfg.Generation.TopP)
	assert.Equal(t, 1.1, cfg.Generation.RepeatPenalty)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080"))

		assert.Equal(t, "http://custom:8080", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080", cfg.GenerationHost)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080"),
			WithGenerationHost("http://generate:9090"),
		)

		assert.Equal(t, "http://embed:8080", cfg.EmbeddingHost)
		assert.Equal(t, "http://generate:9090", cfg.GenerationHost)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithBackend(BackendOpenAI),
			WithAPIKey("sk-test"),
			WithEmbeddingModel("text-embedding-3-small"),
			WithGenerationModel("gpt-4o-mini"),
			WithEmbeddingRateLimit(5, 2),
			WithCircuitBreaker(3, time.Minute),
		)

		assert.Equal(t, BackendOpenAI, cfg.Backend)
		assert.Equal(t, "sk-test", cfg.APIKey)
		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "gpt-4o-mini", cfg.GenerationModel)
		assert.Equal(t, 5.0, cfg.EmbeddingRPS)
		assert.Equal(t, 2, cfg.EmbeddingBurst)
		assert.Equal(t, uint32(3), cfg.BreakerFailures)
		assert.Equal(t, time.Minute, cfg.BreakerCooldown)
	})

	t.Run("with generation options", func(t *testing.T) {
		opts := GenerationOptions{Temperature: 0.1, MaxTokens: 64}
		cfg := NewConfig(WithGenerationOptions(opts))
		assert.Equal(t, opts, cfg.Generation)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name     string
		backend  Backend
		host     string
		expected string
	}{
		{"openai already has /v1", BackendOpenAI, "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"openai missing /v1", BackendOpenAI, "http://localhost:11434", "http://localhost:11434/v1"},
		{"openai trailing slash", BackendOpenAI, "http://localhost:11434/", "http://localhost:11434/v1"},
		{"ollama strips /v1", BackendOllama, "http://localhost:11434/v1", "http://localhost:11434"},
		{"ollama trailing slash", BackendOllama, "http://localhost:11434/", "http://localhost:11434"},
		{"ollama plain", BackendOllama, "http://localhost:11434", "http://localhost:11434"},
		{"empty host", BackendOpenAI, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Backend:        tt.backend,
				EmbeddingHost:  tt.host,
				GenerationHost: tt.host,
			}

			cfg.Normalize()

			assert.Equal(t, tt.expected, cfg.EmbeddingHost)
			assert.Equal(t, tt.expected, cfg.GenerationHost)
		})
	}

	t.Run("fills backend, key and burst", func(t *testing.T) {
		cfg := &Config{}
		cfg.Normalize()
		assert.Equal(t, BackendOllama, cfg.Backend)
		assert.Equal(t, "none", cfg.APIKey)
		assert.Equal(t, 1, cfg.EmbeddingBurst)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Backend = BackendOpenAI

		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"unknown backend", func(c *Config) { c.Backend = "vertex" }, "Backend"},
		{"missing embedding host", func(c *Config) { c.EmbeddingHost = "" }, "EmbeddingHost"},
		{"missing generation host", func(c *Config) { c.GenerationHost = "" }, "GenerationHost"},
		{"missing embedding model", func(c *Config) { c.EmbeddingModel = "" }, "EmbeddingModel"},
		{"missing generation model", func(c *Config) { c.GenerationModel = "" }, "GenerationModel"},
		{"temperature too high", func(c *Config) { c.Generation.Temperature = 2.5 }, "Temperature"},
		{"top p too high", func(c *Config) { c.Generation.TopP = 1.5 }, "TopP"},
		{"negative max tokens", func(c *Config) { c.Generation.MaxTokens = -1 }, "MaxTokens"},
		{"negative context window", func(c *Config) { c.Generation.ContextWindow = -1 }, "ContextWindow"},
		{"negative rps", func(c *Config) { c.EmbeddingRPS = -1 }, "EmbeddingRPS"},
		{"breaker without cooldown", func(c *Config) { c.BreakerCooldown = 0 }, "BreakerCooldown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("breaker disabled needs no cooldown", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.BreakerFailures = 0
		cfg.BreakerCooldown = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfigWrap(t *testing.T) {
	base := &countingEmbedder{}

	t.Run("no rate limit returns embedder unchanged", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.Same(t, base, cfg.WrapEmbedder(base))
	})

	t.Run("rate limit wraps embedder", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingRateLimit(100, 1))
		_, ok := cfg.WrapEmbedder(base).(*RateLimitedEmbedder)
		assert.True(t, ok)
	})

	t.Run("breaker wraps completer", func(t *testing.T) {
		cfg := DefaultConfig()
		_, ok := cfg.WrapCompleter(&funcCompleter{}).(*BreakerCompleter)
		assert.True(t, ok)
	})

	t.Run("disabled breaker returns completer unchanged", func(t *testing.T) {
		cfg := NewConfig(WithCircuitBreaker(0, 0))
		c := &funcCompleter{}
		assert.Same(t, c, cfg.WrapCompleter(c))
	})
}
