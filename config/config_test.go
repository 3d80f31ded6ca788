package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/furrow"
	"github.com/poiesic/furrow/ai"
	"github.com/poiesic/furrow/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "furrow_db", cfg.Storage.Path)
	assert.Equal(t, "agriculture_docs", cfg.Storage.Collection)
	assert.Equal(t, "ollama", cfg.AI.Backend)
	assert.Equal(t, "llama3.2:3b", cfg.AI.GenerationModel)
	assert.Equal(t, 500, cfg.Chunking.ChunkSize)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, 3, cfg.Retrieval.MaxResults)
	assert.Equal(t, 500, cfg.Retrieval.TruncateLength)
	assert.Equal(t, 0.3, cfg.Generation.Temperature)
	assert.Equal(t, 2*time.Minute, cfg.Generation.Timeout)
	assert.Equal(t, 4000, cfg.Generation.MaxContextChars)
}

func TestParse(t *testing.T) {
	data := []byte(`
storage:
  path: /var/lib/furrow
ai:
  backend: openai
  host: https://llm.example.com/
  generation_model: gpt-4o-mini
  breaker_cooldown: 45s
chunking:
  chunk_size: 800
generation:
  temperature: 0
  timeout: 90s
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/furrow", cfg.Storage.Path)
	assert.Equal(t, "agriculture_docs", cfg.Storage.Collection, "missing keys keep defaults")
	assert.Equal(t, "openai", cfg.AI.Backend)
	assert.Equal(t, 45*time.Second, cfg.AI.BreakerCooldown)
	assert.Equal(t, 800, cfg.Chunking.ChunkSize)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, 0.0, cfg.Generation.Temperature)
	assert.Equal(t, 90*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, 0.9, cfg.Generation.TopP)

	aiConfig := cfg.AIConfig()
	assert.Equal(t, ai.BackendOpenAI, aiConfig.Backend)
	assert.Equal(t, "https://llm.example.com/v1", aiConfig.EmbeddingHost)
	assert.Equal(t, "https://llm.example.com/v1", aiConfig.GenerationHost)
	assert.Equal(t, "gpt-4o-mini", aiConfig.GenerationModel)
	assert.Equal(t, 0.0, aiConfig.Generation.Temperature)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("storage: [unterminated"))
	assert.Error(t, err)
}

func TestLoadAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "furrow.yaml")

	cfg := Default()
	cfg.Storage.Collection = "orchard_docs"
	cfg.Generation.Timeout = 30 * time.Second
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAIConfig_APIKeyFromEnv(t *testing.T) {
	t.Setenv("FURROW_TEST_KEY", "sk-test")

	cfg := Default()
	cfg.AI.APIKeyEnv = "FURROW_TEST_KEY"
	assert.Equal(t, "sk-test", cfg.AIConfig().APIKey)

	cfg.AI.APIKeyEnv = "FURROW_UNSET_KEY"
	assert.Equal(t, "none", cfg.AIConfig().APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing path", func(c *Config) { c.Storage.Path = "" }},
		{"missing collection", func(c *Config) { c.Storage.Collection = "" }},
		{"unknown backend", func(c *Config) { c.AI.Backend = "bard" }},
		{"zero chunk size", func(c *Config) { c.Chunking.ChunkSize = 0 }},
		{"overlap too large", func(c *Config) { c.Chunking.Overlap = c.Chunking.ChunkSize }},
		{"zero batch size", func(c *Config) { c.Chunking.BatchSize = 0 }},
		{"zero max results", func(c *Config) { c.Retrieval.MaxResults = 0 }},
		{"zero truncate length", func(c *Config) { c.Retrieval.TruncateLength = 0 }},
		{"zero timeout", func(c *Config) { c.Generation.Timeout = 0 }},
		{"zero context budget", func(c *Config) { c.Generation.MaxContextChars = 0 }},
		{"temperature out of range", func(c *Config) { c.Generation.Temperature = 3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("in memory needs no path", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.Path = ""
		cfg.Storage.InMemory = true
		assert.NoError(t, cfg.Validate())
	})
}

func TestOptions(t *testing.T) {
	cfg := Default()
	cfg.Storage.InMemory = true
	cfg.Chunking.PoolSize = 2
	cfg.Retrieval.MaxResults = 2

	opts := append(cfg.Options(), furrow.WithProvider(mock.NewMockProvider()))
	orch, err := furrow.Open("", opts...)
	require.NoError(t, err)
	defer orch.Close()

	docs, err := orch.Documents(t.Context())
	require.NoError(t, err)
	assert.Empty(t, docs)

	t.Run("sync writes on disk", func(t *testing.T) {
		cfg := Default()
		cfg.Storage.Path = filepath.Join(t.TempDir(), "db")
		cfg.Storage.SyncWrites = true

		opts := append(cfg.Options(), furrow.WithProvider(mock.NewMockProvider()))
		orch, err := furrow.Open(cfg.Storage.Path, opts...)
		require.NoError(t, err)
		require.NoError(t, orch.Close())
		assert.DirExists(t, cfg.Storage.Path)
	})
}
