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


package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/furrow/ai"
	"github.com/poiesic/furrow/core"
)

const (
	DefaultTimeout         = 2 * time.Minute
	DefaultMaxContextChars = 4000

	// NoInformationToken is the whole answer when nothing was retrieved.
	NoInformationToken = "No relevant documents found."
)

// ErrCompleterRequired is returned when a Generator is built without a backend.
var ErrCompleterRequired = errors.New("completer is required")

// Generator produces streamed answers grounded on retrieved chunks.
type Generator struct {
	completer       ai.Completer
	timeout         time.Duration
	maxContextChars int
	logger          *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator) error

// WithTimeout bounds a whole generation request.
// Default is 2 minutes.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive: %s", d)
		}
		g.timeout = d
		return nil
	}
}

// WithMaxContextChars sets the rune budget for context blocks in the prompt.
// Default is 4000.
func WithMaxContextChars(n int) Option {
	return func(g *Generator) error {
		if n < 1 {
			return fmt.Errorf("max context chars must be positive: %d", n)
		}
		g.maxContextChars = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) error {
		if logger == nil {
			logger = slog.Default()
		}
		g.logger = logger
		return nil
	}
}

// New creates a Generator on top of completer.
func New(completer ai.Completer, opts ...Option) (*Generator, error) {
	if completer == nil {
		return nil, ErrCompleterRequired
	}
	g := &Generator{
		completer:       completer,
		timeout:         DefaultTimeout,
		maxContextChars: DefaultMaxContextChars,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	g.logger = g.logger.With("component", "generator")
	return g, nil
}

// Generate starts answering query from results and returns the token stream.
// With no results the stream holds NoInformationToken alone and the backend
// is not called.
func (g *Generator) Generate(ctx context.Context, query string, results core.GenerationContext) *Stream {
	if len(results) == 0 {
		s := newStream(nil)
		go func() {
			s.setState(StateStreaming)
			s.send(ctx, Token{Text: NoInformationToken})
			s.finish(nil, "")
		}()
		return s
	}

	prompt := BuildPrompt(query, results, g.maxContextChars)
	streamCtx, cancel := context.WithTimeout(ctx, g.timeout)
	s := newStream(cancel)
	go g.run(streamCtx, prompt, s)
	return s
}

func (g *Generator) run(ctx context.Context, prompt string, s *Stream) {
	s.setState(StateStreaming)

	chunks := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errc <- fmt.Errorf("backend panic: %v", r)
			}
		}()
		errc <- g.completer.Stream(ctx, prompt, func(ctx context.Context, chunk []byte) error {
			select {
			case chunks <- string(chunk):
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	fail := func(cause error) {
		if errors.Is(cause, context.DeadlineExceeded) {
			cause = fmt.Errorf("timed out after %s: %w", g.timeout, cause)
		}
		err := fmt.Errorf("%w: %w", core.ErrGenerationStream, cause)
		g.logger.Error("generation failed", "err", err)
		s.finish(err, fmt.Sprintf("\n[generation failed: %v]", cause))
	}

	for {
		select {
		case text := <-chunks:
			if text == "" {
				continue
			}
			if !s.send(ctx, Token{Text: text}) {
				cause := ctx.Err()
				if cause == nil {
					cause = context.Canceled
				}
				fail(cause)
				return
			}
		case err := <-errc:
			if err != nil {
				fail(err)
				return
			}
			s.finish(nil, "")
			return
		case <-ctx.Done():
			fail(ctx.Err())
			return
		}
	}
}
