package openai

import (
	"context"
	"log/slog"

	"github.com/poiesic/furrow/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Completer implements ai.Completer using OpenAI-compatible chat APIs.
type Completer struct {
	client  llms.Model
	options ai.GenerationOptions
	logger  *slog.Logger
}

func newCompleter(config *ai.Config) (*Completer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(config.GenerationModel),
	)
	if err != nil {
		return nil, err
	}

	return &Completer{
		client:  client,
		options: config.Generation,
		logger:  slog.Default().With("component", "openai-completer"),
	}, nil
}

// Stream generates a completion for prompt, forwarding increments to fn.
func (c *Completer) Stream(ctx context.Context, prompt string, fn ai.StreamFunc) error {
	c.logger.Debug("streaming completion", "prompt_length", len(prompt))

	opts := []llms.CallOption{
		llms.WithTemperature(c.options.Temperature),
		llms.WithTopP(c.options.TopP),
		llms.WithStreamingFunc(fn),
	}
	if c.options.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(c.options.MaxTokens))
	}
	// OpenAI's frequency penalty has a different scale, so RepeatPenalty
	// and ContextWindow only apply to the Ollama backend.

	if _, err := llms.GenerateFromSinglePrompt(ctx, c.client, prompt, opts...); err != nil {
		c.logger.Error("completion failed", "err", err)
		return err
	}
	return nil
}
