// Package chunker splits canonical text into bounded, deduplicated chunks.
package chunker

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

// ErrInvalidConfig is returned for chunk settings that cannot be satisfied.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

const (
	DefaultChunkSize   = 500
	DefaultOverlap     = 50
	DefaultMinLength   = 30
	DefaultFloorLength = 10
)

// DefaultSeparators are tried in order: paragraph, line, sentence, word, character.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker segments text with hierarchical separator splitting.
// Lengths are measured in runes.
type Chunker struct {
	size        int
	overlap     int
	minLength   int
	floorLength int
	separators  []string
	splitter    textsplitter.RecursiveCharacter
	logger      *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithChunkSize sets the maximum chunk length.
func WithChunkSize(size int) Option {
	return func(c *Chunker) error {
		c.size = size
		return nil
	}
}

// WithChunkOverlap sets how many runes consecutive chunks may share.
func WithChunkOverlap(overlap int) Option {
	return func(c *Chunker) error {
		c.overlap = overlap
		return nil
	}
}

// WithMinLength drops chunks shorter than n runes after trimming.
func WithMinLength(n int) Option {
	return func(c *Chunker) error {
		c.minLength = n
		return nil
	}
}

// WithFloorLength sets the absolute lower bound applied after deduplication.
func WithFloorLength(n int) Option {
	return func(c *Chunker) error {
		c.floorLength = n
		return nil
	}
}

// WithSeparators replaces the separator hierarchy.
func WithSeparators(separators ...string) Option {
	return func(c *Chunker) error {
		if len(separators) == 0 {
			return fmt.Errorf("%w: at least one separator is required", ErrInvalidConfig)
		}
		c.separators = separators
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// New creates a Chunker. Returns ErrInvalidConfig for a non-positive size,
// an overlap outside [0, size) or negative length thresholds.
func New(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		size:        DefaultChunkSize,
		overlap:     DefaultOverlap,
		minLength:   DefaultMinLength,
		floorLength: DefaultFloorLength,
		separators:  DefaultSeparators,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	switch {
	case c.size <= 0:
		return nil, fmt.Errorf("%w: chunk size %d must be positive", ErrInvalidConfig, c.size)
	case c.overlap < 0 || c.overlap >= c.size:
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidConfig, c.overlap, c.size)
	case c.minLength < 0 || c.floorLength < 0:
		return nil, fmt.Errorf("%w: length thresholds must not be negative", ErrInvalidConfig)
	}

	c.logger = c.logger.With("component", "chunker")
	c.splitter = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.size),
		textsplitter.WithChunkOverlap(c.overlap),
		textsplitter.WithSeparators(c.separators),
	)
	return c, nil
}

// Size returns the configured maximum chunk length.
func (c *Chunker) Size() int {
	return c.size
}

// Split segments text into chunks in document order. Chunks are trimmed,
// at least MinLength runes long and unique; the first occurrence of a
// duplicate keeps its position. Empty or whitespace input yields no chunks.
func (c *Chunker) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}

	pieces, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("splitting text: %w", err)
	}

	// The splitter counts separators loosely when merging, so a piece can
	// run slightly past size.
	bounded := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		bounded = append(bounded, c.bound(strings.TrimSpace(piece))...)
	}

	seen := make(map[string]struct{}, len(bounded))
	chunks := make([]string, 0, len(bounded))
	short, duplicate := 0, 0
	for _, piece := range bounded {
		piece = strings.TrimSpace(piece)
		if utf8.RuneCountInString(piece) < c.minLength {
			short++
			continue
		}
		if _, ok := seen[piece]; ok {
			duplicate++
			continue
		}
		seen[piece] = struct{}{}
		if utf8.RuneCountInString(piece) < c.floorLength {
			short++
			continue
		}
		chunks = append(chunks, piece)
	}

	c.logger.Debug("split text",
		"pieces", len(bounded),
		"chunks", len(chunks),
		"short", short,
		"duplicates", duplicate)
	return chunks, nil
}

// bound cuts piece into windows of at most size runes that share overlap runes.
func (c *Chunker) bound(piece string) []string {
	if utf8.RuneCountInString(piece) <= c.size {
		return []string{piece}
	}
	runes := []rune(piece)
	step := c.size - c.overlap
	var out []string
	for start := 0; ; start += step {
		end := min(start+c.size, len(runes))
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			return out
		}
	}
}
