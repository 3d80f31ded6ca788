package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerCompleter fails fast while the wrapped Completer keeps failing.
type BreakerCompleter struct {
	next Completer
	cb   *gobreaker.CircuitBreaker
}

var _ Completer = (*BreakerCompleter)(nil)

// NewBreakerCompleter wraps next in a circuit breaker that opens after
// failures consecutive errors and probes again after cooldown.
// Caller cancellations and deadlines do not count as failures.
func NewBreakerCompleter(next Completer, failures uint32, cooldown time.Duration, logger *slog.Logger) *BreakerCompleter {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "completer-breaker")

	settings := gobreaker.Settings{
		Name:        "generation",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	}

	return &BreakerCompleter{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

// Stream forwards to the wrapped Completer unless the breaker is open.
func (b *BreakerCompleter) Stream(ctx context.Context, prompt string, fn StreamFunc) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Stream(ctx, prompt, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	return err
}

// State reports the breaker state, mainly for diagnostics and tests.
func (b *BreakerCompleter) State() gobreaker.State {
	return b.cb.State()
}
