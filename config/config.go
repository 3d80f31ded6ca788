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


// Package config loads the YAML configuration file of the furrow command
// and turns it into orchestrator options.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/poiesic/furrow"
	"github.com/poiesic/furrow/ai"
	"github.com/poiesic/furrow/chunker"
	"github.com/poiesic/furrow/generation"
	"github.com/poiesic/furrow/retrieval"
	"github.com/poiesic/furrow/storage/badger"
	"github.com/poiesic/furrow/vectorstore"
	"gopkg.in/yaml.v3"
)

// DefaultAPIKeyEnv names the environment variable holding the backend API key.
const DefaultAPIKeyEnv = "FURROW_API_KEY"

// StorageConfig locates the embedded database.
type StorageConfig struct {
	Path       string `yaml:"path"`
	InMemory   bool   `yaml:"in_memory"`
	Collection string `yaml:"collection"`
	// SyncWrites fsyncs every commit.
	SyncWrites bool `yaml:"sync_writes,omitempty"`
}

// AIConfig selects and configures the model backend.
type AIConfig struct {
	Backend         string        `yaml:"backend"`
	Host            string        `yaml:"host"`
	EmbeddingHost   string        `yaml:"embedding_host,omitempty"`
	GenerationHost  string        `yaml:"generation_host,omitempty"`
	APIKeyEnv       string        `yaml:"api_key_env"`
	EmbeddingModel  string        `yaml:"embedding_model"`
	GenerationModel string        `yaml:"generation_model"`
	EmbeddingRPS    float64       `yaml:"embedding_rps"`
	EmbeddingBurst  int           `yaml:"embedding_burst"`
	BreakerFailures uint32        `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}

// ChunkingConfig controls splitting and indexing.
type ChunkingConfig struct {
	ChunkSize   int `yaml:"chunk_size"`
	Overlap     int `yaml:"overlap"`
	MinLength   int `yaml:"min_length"`
	FloorLength int `yaml:"floor_length"`
	BatchSize   int `yaml:"batch_size"`
	PoolSize    int `yaml:"pool_size"`
}

// RetrievalConfig bounds query results.
type RetrievalConfig struct {
	MaxResults     int `yaml:"max_results"`
	TruncateLength int `yaml:"truncate_length"`
}

// GenerationConfig holds the answer generation knobs.
type GenerationConfig struct {
	Temperature     float64       `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
	ContextWindow   int           `yaml:"context_window"`
	TopP            float64       `yaml:"top_p"`
	RepeatPenalty   float64       `yaml:"repeat_penalty"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxContextChars int           `yaml:"max_context_chars"`
}

// Config is the root configuration structure.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	AI         AIConfig         `yaml:"ai"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	gen := aiDefaults.Generation
	return &Config{
		Storage: StorageConfig{
			Path:       "furrow_db",
			Collection: vectorstore.DefaultCollection,
		},
		AI: AIConfig{
			Backend:         string(aiDefaults.Backend),
			Host:            aiDefaults.EmbeddingHost,
			APIKeyEnv:       DefaultAPIKeyEnv,
			EmbeddingModel:  aiDefaults.EmbeddingModel,
			GenerationModel: aiDefaults.GenerationModel,
			EmbeddingBurst:  aiDefaults.EmbeddingBurst,
			BreakerFailures: aiDefaults.BreakerFailures,
			BreakerCooldown: aiDefaults.BreakerCooldown,
		},
		Chunking: ChunkingConfig{
			ChunkSize:   chunker.DefaultChunkSize,
			Overlap:     chunker.DefaultOverlap,
			MinLength:   chunker.DefaultMinLength,
			FloorLength: chunker.DefaultFloorLength,
			BatchSize:   vectorstore.DefaultBatchSize,
		},
		Retrieval: RetrievalConfig{
			MaxResults:     retrieval.DefaultMaxResults,
			TruncateLength: retrieval.DefaultTruncateLength,
		},
		Generation: GenerationConfig{
			Temperature:     gen.Temperature,
			MaxTokens:       gen.MaxTokens,
			ContextWindow:   gen.ContextWindow,
			TopP:            gen.TopP,
			RepeatPenalty:   gen.RepeatPenalty,
			Timeout:         generation.DefaultTimeout,
			MaxContextChars: generation.DefaultMaxContextChars,
		},
	}
}

// Load reads a YAML file. Keys missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// AIConfig builds the backend configuration. The API key is read from the
// environment variable named by APIKeyEnv.
func (c *Config) AIConfig() *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithBackend(ai.Backend(c.AI.Backend)),
		ai.WithHost(c.AI.Host),
		ai.WithEmbeddingModel(c.AI.EmbeddingModel),
		ai.WithGenerationModel(c.AI.GenerationModel),
		ai.WithGenerationOptions(ai.GenerationOptions{
			Temperature:   c.Generation.Temperature,
			MaxTokens:     c.Generation.MaxTokens,
			ContextWindow: c.Generation.ContextWindow,
			TopP:          c.Generation.TopP,
			RepeatPenalty: c.Generation.RepeatPenalty,
		}),
		ai.WithEmbeddingRateLimit(c.AI.EmbeddingRPS, c.AI.EmbeddingBurst),
		ai.WithCircuitBreaker(c.AI.BreakerFailures, c.AI.BreakerCooldown),
	}
	if c.AI.EmbeddingHost != "" {
		opts = append(opts, ai.WithEmbeddingHost(c.AI.EmbeddingHost))
	}
	if c.AI.GenerationHost != "" {
		opts = append(opts, ai.WithGenerationHost(c.AI.GenerationHost))
	}
	if c.AI.APIKeyEnv != "" {
		if key := os.Getenv(c.AI.APIKeyEnv); key != "" {
			opts = append(opts, ai.WithAPIKey(key))
		}
	}

	config := ai.NewConfig(opts...)
	config.Normalize()
	return config
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if !c.Storage.InMemory && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage: path is required unless in_memory is set"))
	}
	if c.Storage.Collection == "" {
		errs = append(errs, errors.New("storage: collection is required"))
	}
	if err := c.AIConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Chunking.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("chunking: chunk_size must be positive, got %d", c.Chunking.ChunkSize))
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		errs = append(errs, fmt.Errorf("chunking: overlap must be in [0, chunk_size), got %d", c.Chunking.Overlap))
	}
	if c.Chunking.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("chunking: batch_size must be positive, got %d", c.Chunking.BatchSize))
	}
	if c.Retrieval.MaxResults <= 0 {
		errs = append(errs, fmt.Errorf("retrieval: max_results must be positive, got %d", c.Retrieval.MaxResults))
	}
	if c.Retrieval.TruncateLength <= 0 {
		errs = append(errs, fmt.Errorf("retrieval: truncate_length must be positive, got %d", c.Retrieval.TruncateLength))
	}
	if c.Generation.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("generation: timeout must be positive, got %s", c.Generation.Timeout))
	}
	if c.Generation.MaxContextChars <= 0 {
		errs = append(errs, fmt.Errorf("generation: max_context_chars must be positive, got %d", c.Generation.MaxContextChars))
	}
	return errors.Join(errs...)
}

// Options translates the configuration into orchestrator options.
func (c *Config) Options() []furrow.Option {
	storeOpts := []vectorstore.Option{vectorstore.WithBatchSize(c.Chunking.BatchSize)}
	if c.Chunking.PoolSize > 0 {
		storeOpts = append(storeOpts, vectorstore.WithPoolSize(c.Chunking.PoolSize))
	}

	opts := []furrow.Option{
		furrow.WithAIConfig(c.AIConfig()),
		furrow.WithCollection(c.Storage.Collection),
		furrow.WithChunkerOptions(
			chunker.WithChunkSize(c.Chunking.ChunkSize),
			chunker.WithChunkOverlap(c.Chunking.Overlap),
			chunker.WithMinLength(c.Chunking.MinLength),
			chunker.WithFloorLength(c.Chunking.FloorLength),
		),
		furrow.WithStoreOptions(storeOpts...),
		furrow.WithRetrieverOptions(
			retrieval.WithMaxResults(c.Retrieval.MaxResults),
			retrieval.WithTruncateLength(c.Retrieval.TruncateLength),
		),
		furrow.WithGeneratorOptions(
			generation.WithTimeout(c.Generation.Timeout),
			generation.WithMaxContextChars(c.Generation.MaxContextChars),
		),
	}
	if c.Storage.InMemory {
		opts = append(opts, furrow.WithInMemory())
	}
	if c.Storage.SyncWrites {
		opts = append(opts, furrow.WithBackendOptions(badger.WithSyncWrites(true)))
	}
	return opts
}
