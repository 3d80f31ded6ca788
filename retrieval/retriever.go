package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/poiesic/furrow/core"
)

const (
	DefaultMaxResults     = 3
	DefaultTruncateLength = 500
)

// Searcher answers nearest-neighbor queries. *vectorstore.Store implements it.
type Searcher interface {
	Query(ctx context.Context, text string, k int) ([]*core.SearchResult, error)
}

// Retriever turns a question into a bounded list of relevant chunks.
type Retriever struct {
	searcher       Searcher
	maxResults     int
	truncateLength int
	logger         *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithMaxResults caps how many chunks a retrieval returns.
// Default is 3.
func WithMaxResults(n int) Option {
	return func(r *Retriever) error {
		if n < 1 {
			return fmt.Errorf("max results must be positive: %d", n)
		}
		r.maxResults = n
		return nil
	}
}

// WithTruncateLength bounds the text of each result, in runes.
// Default is 500.
func WithTruncateLength(n int) Option {
	return func(r *Retriever) error {
		if n < 1 {
			return fmt.Errorf("truncate length must be positive: %d", n)
		}
		r.truncateLength = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(searcher Searcher, opts ...Option) (*Retriever, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}

	r := &Retriever{
		searcher:       searcher,
		maxResults:     DefaultMaxResults,
		truncateLength: DefaultTruncateLength,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "retriever")
	return r, nil
}

// MaxResults returns the result cap.
func (r *Retriever) MaxResults() int {
	return r.maxResults
}

// Retrieve returns up to k chunks relevant to query, most similar first.
// k is capped at MaxResults; k < 1 means MaxResults.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]core.QueryResult, error) {
	return r.RetrieveWithMonitor(ctx, query, k, nil)
}

// RetrieveWithMonitor is Retrieve with callbacks at each stage.
// Failures wrap core.ErrRetrieval.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, query string, k int, monitor Monitor) ([]core.QueryResult, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	if k < 1 || k > r.maxResults {
		k = r.maxResults
	}
	monitor.Start(query, k)

	matches, err := r.searcher.Query(ctx, query, k)
	if err != nil {
		r.logger.Error("error querying vector store", "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrRetrieval, err)
	}
	monitor.AfterSearch(matches)

	if len(matches) > k {
		matches = matches[:k]
	}

	results := make([]core.QueryResult, 0, len(matches))
	for _, match := range matches {
		record := match.Record
		if record == nil {
			continue
		}
		text, cut := truncate(record.Text, r.truncateLength)
		if cut {
			monitor.Truncated(record.ChunkId, utf8.RuneCountInString(record.Text), r.truncateLength)
		}
		results = append(results, core.QueryResult{
			ChunkId:    record.ChunkId,
			DocumentId: record.DocumentId,
			SourceName: record.SourceName,
			Index:      record.Index,
			Text:       text,
			Score:      match.Score,
		})
	}

	r.logger.Debug("retrieved chunks", "k", k, "results", len(results))
	monitor.Finish(results)
	return results, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i], true
		}
		count++
	}
	return s, false
}
