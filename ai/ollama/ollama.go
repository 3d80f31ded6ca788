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


package ollama

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/furrow/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Embedder implements ai.Embedder on Ollama's embedding endpoint.
type Embedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	client, err := ollama.New(
		ollama.WithServerURL(config.EmbeddingHost),
		ollama.WithModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		logger:   slog.Default().With("component", "ollama-embedder"),
	}, nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("failed to generate embedding", "err", err)
		return nil, err
	}
	if len(vector) == 0 {
		return nil, ai.ErrEmptyEmbedding
	}
	return vector, nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ai.ErrEmptyEmbedding, len(vectors), len(texts))
	}
	return vectors, nil
}

// Completer implements ai.Completer on Ollama's generate endpoint.
type Completer struct {
	client  llms.Model
	options ai.GenerationOptions
	logger  *slog.Logger
}

func newCompleter(config *ai.Config) (*Completer, error) {
	opts := []ollama.Option{
		ollama.WithServerURL(config.GenerationHost),
		ollama.WithModel(config.GenerationModel),
	}
	if config.Generation.ContextWindow > 0 {
		opts = append(opts, ollama.WithRunnerNumCtx(config.Generation.ContextWindow))
	}

	client, err := ollama.New(opts...)
	if err != nil {
		return nil, err
	}

	return &Completer{
		client:  client,
		options: config.Generation,
		logger:  slog.Default().With("component", "ollama-completer"),
	}, nil
}

// Stream generates a completion for prompt, forwarding increments to fn.
func (c *Completer) Stream(ctx context.Context, prompt string, fn ai.StreamFunc) error {
	c.logger.Debug("streaming completion", "prompt_length", len(prompt))

	opts := []llms.CallOption{
		llms.WithTemperature(c.options.Temperature),
		llms.WithTopP(c.options.TopP),
		llms.WithRepetitionPenalty(c.options.RepeatPenalty),
		llms.WithStreamingFunc(fn),
	}
	if c.options.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.options.MaxTokens))
	}

	if _, err := llms.GenerateFromSinglePrompt(ctx, c.client, prompt, opts...); err != nil {
		c.logger.Error("completion failed", "err", err)
		return err
	}
	return nil
}

// Provider implements ai.AIProvider against an Ollama server.
type Provider struct {
	embedder  ai.Embedder
	completer ai.Completer
	logger    *slog.Logger
}

// NewProvider validates config and creates Ollama-backed services.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}
	completer, err := newCompleter(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		embedder:  config.WrapEmbedder(embedder),
		completer: config.WrapCompleter(completer),
		logger:    slog.Default().With("component", "ollama-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Completer returns the text generation service.
func (p *Provider) Completer() ai.Completer {
	return p.completer
}

// Close is a no-op; the HTTP clients need no cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing Ollama provider")
	return nil
}
