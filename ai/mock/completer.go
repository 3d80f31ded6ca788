package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/furrow/ai"
)

// MockCompleter is a test double for ai.Completer.
// By default it streams Response word by word.
type MockCompleter struct {
	// StreamFunc replaces the default behavior if set.
	StreamFunc func(ctx context.Context, prompt string, fn ai.StreamFunc) error

	// Response is the text streamed by the default behavior.
	Response string

	mu         sync.Mutex
	callCount  int
	lastPrompt string
}

// NewMockCompleter creates a mock completer that answers with response.
func NewMockCompleter(response string) *MockCompleter {
	return &MockCompleter{Response: response}
}

// Stream records the prompt and streams the configured response.
func (m *MockCompleter) Stream(ctx context.Context, prompt string, fn ai.StreamFunc) error {
	m.mu.Lock()
	m.callCount++
	m.lastPrompt = prompt
	m.mu.Unlock()

	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, prompt, fn)
	}

	for _, piece := range strings.SplitAfter(m.Response, " ") {
		if piece == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, []byte(piece)); err != nil {
			return err
		}
	}
	return nil
}

// CallCount returns the number of Stream calls.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPrompt returns the prompt of the most recent Stream call.
func (m *MockCompleter) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

// Reset clears recorded calls and injected behavior.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastPrompt = ""
	m.StreamFunc = nil
}
