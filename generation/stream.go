package generation

import (
	"context"
	"strings"
	"sync"
)

// State is the lifecycle stage of a Stream.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Token is one increment of generated text. A token with a non-nil Err is
// the last one and carries a human-readable failure marker in Text.
type Token struct {
	Text string
	Err  error
}

// Stream delivers generated tokens to a single consumer. The consumer must
// either drain Tokens until it is closed or call Close.
type Stream struct {
	tokens    chan Token
	closed    chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc

	mu    sync.Mutex
	state State
	err   error
}

func newStream(cancel context.CancelFunc) *Stream {
	if cancel == nil {
		cancel = func() {}
	}
	return &Stream{
		tokens: make(chan Token),
		closed: make(chan struct{}),
		cancel: cancel,
	}
}

// Tokens returns the token channel. It is closed when generation ends.
func (s *Stream) Tokens() <-chan Token {
	return s.tokens
}

// Close stops generation and cancels the backend request. Safe to call
// more than once and after the stream has finished.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cancel()
	})
}

// State reports where the stream is in its lifecycle.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the failure that ended the stream, or nil.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// send delivers a token unless the consumer closed the stream or ctx ended.
func (s *Stream) send(ctx context.Context, tok Token) bool {
	select {
	case s.tokens <- tok:
		return true
	case <-s.closed:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *Stream) finish(err error, marker string) {
	s.mu.Lock()
	if err != nil {
		s.state = StateFailed
		s.err = err
	} else {
		s.state = StateDone
	}
	s.mu.Unlock()

	if err != nil {
		// The marker is delivered after ctx ended, so only a consumer close stops it.
		select {
		case s.tokens <- Token{Text: marker, Err: err}:
		case <-s.closed:
		}
	}
	close(s.tokens)
	s.cancel()
}

// Collect drains stream and returns the generated text. The failure
// marker is not part of the text; the failure is returned as the error.
func Collect(stream *Stream) (string, error) {
	var sb strings.Builder
	for tok := range stream.Tokens() {
		if tok.Err != nil {
			return sb.String(), tok.Err
		}
		sb.WriteString(tok.Text)
	}
	return sb.String(), stream.Err()
}
