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


package reindex

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/furrow/ai"
	"github.com/poiesic/furrow/core"
	"github.com/poiesic/furrow/storage"
)

// Config holds configuration for the reindexing operation.
type Config struct {
	// BatchSize is the number of chunks embedded per request
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      16,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Validate checks that every setting is usable.
func (c *Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be greater than 0", ErrInvalidConfig)
	case c.ReportInterval <= 0:
		return fmt.Errorf("%w: report interval must be greater than 0", ErrInvalidConfig)
	case c.MaxRetries <= 0:
		return fmt.Errorf("%w: max retries must be greater than 0", ErrInvalidConfig)
	}
	return nil
}

// Stats summarizes a completed run.
type Stats struct {
	Documents int
	Chunks    int
	Dimension int

	// Orphans counts documents whose records had no catalog entry and were purged.
	Orphans int
	Elapsed time.Duration
}

// Reindexer re-embeds every cataloged document of a collection.
type Reindexer struct {
	documents      storage.DocumentRepository
	vectors        storage.VectorRepository
	collections    storage.CollectionRepository
	collectionName string
	embeddingModel string
	config         *Config
	progress       io.Writer
	embedder       *BatchEmbedder
	logger         *slog.Logger
}

// NewReindexer creates a new reindexer. embeddingModel is recorded on the
// collection once the run succeeds.
// progress: where to write progress output (typically os.Stderr)
func NewReindexer(
	repos Repositories,
	collectionName string,
	embedder ai.Embedder,
	embeddingModel string,
	config *Config,
	progress io.Writer,
) *Reindexer {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reindexer{
		documents:      repos.Documents,
		vectors:        repos.Vectors,
		collections:    repos.Collections,
		collectionName: collectionName,
		embeddingModel: embeddingModel,
		config:         config,
		progress:       progress,
		embedder:       NewBatchEmbedder(embedder, config.BatchSize, config.MaxRetries, config.RetryDelay),
		logger:         slog.Default().With("component", "reindex", "collection", collectionName),
	}
}

// Repositories groups the repositories a Reindexer works on.
type Repositories struct {
	Documents   storage.DocumentRepository
	Vectors     storage.VectorRepository
	Collections storage.CollectionRepository
}

// Run re-embeds every document in the catalog. Records left behind by an
// interrupted ingest or removal have no catalog entry and are purged first,
// since their vectors would no longer match the collection. Documents are
// processed one at a time and each is rewritten in a single transaction;
// the first failure stops the run and leaves the failed document with its
// previous vectors. Running again after a failure is safe.
func (r *Reindexer) Run(ctx context.Context) (*Stats, error) {
	if err := r.config.Validate(); err != nil {
		return nil, err
	}

	docs, err := r.documents.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	stats := &Stats{}
	if stats.Orphans, err = r.purgeOrphans(ctx, docs); err != nil {
		return stats, err
	}

	total := 0
	for _, doc := range docs {
		count, err := r.vectors.CountDocumentRecords(ctx, doc.Id)
		if err != nil {
			return nil, fmt.Errorf("failed to count chunks of %s: %w", doc.Id, err)
		}
		total += count
	}

	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks found in collection %s (0 chunks)\n", r.collectionName)
		if err := r.updateCollection(ctx, 0); err != nil {
			return nil, err
		}
		return stats, nil
	}

	fmt.Fprintf(r.progress, "Starting reindex of %d chunks in %d documents (batch size: %d)\n",
		total, len(docs), r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval, "chunks")
	tracker.Start()

	for _, doc := range docs {
		n, dim, err := r.reindexDocument(ctx, doc, stats.Dimension, tracker)
		if err != nil {
			r.logger.Error("reindex stopped", "document", doc.Id, "completed", stats.Documents, "err", err)
			return stats, fmt.Errorf("failed to reindex %s (%s): %w", doc.Name, doc.Id, err)
		}
		if dim != 0 {
			stats.Dimension = dim
		}
		stats.Documents++
		stats.Chunks += n
	}

	tracker.Finish()
	stats.Elapsed = tracker.Elapsed()

	if err := r.updateCollection(ctx, stats.Dimension); err != nil {
		return stats, err
	}

	fmt.Fprintf(r.progress, "Reindex complete. Processed %d chunks in %v (%.1f chunks/sec)\n",
		stats.Chunks, stats.Elapsed.Round(time.Second), float64(stats.Chunks)/stats.Elapsed.Seconds())
	return stats, nil
}

// purgeOrphans deletes the records of documents missing from the catalog.
func (r *Reindexer) purgeOrphans(ctx context.Context, docs []*core.Document) (int, error) {
	ids, err := r.vectors.ListRecordDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list record documents: %w", err)
	}
	cataloged := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		cataloged[doc.Id] = struct{}{}
	}

	purged := 0
	for _, id := range ids {
		if _, ok := cataloged[id]; ok {
			continue
		}
		n, err := r.vectors.DeleteDocumentRecords(ctx, id)
		if err != nil {
			return purged, fmt.Errorf("failed to purge orphaned records of %s: %w", id, err)
		}
		r.logger.Warn("purged orphaned records", "document", id, "records", n)
		fmt.Fprintf(r.progress, "Purged %d orphaned chunks of uncataloged document %s\n", n, id)
		purged++
	}
	return purged, nil
}

// reindexDocument embeds a document's chunks and overwrites its records in
// place. Chunk indexes are unchanged, so the record set stays the same.
// A non-zero dim is the dimension earlier documents were embedded with.
func (r *Reindexer) reindexDocument(ctx context.Context, doc *core.Document, dim int, tracker *ProgressTracker) (int, int, error) {
	records, err := r.vectors.GetDocumentRecords(ctx, doc.Id)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(records) == 0 {
		return 0, 0, nil
	}

	fresh, err := r.embedder.Embed(ctx, records, tracker.Increment)
	if err != nil {
		return 0, 0, err
	}
	if got := len(fresh[0].Vector); dim != 0 && got != dim {
		return 0, 0, fmt.Errorf("%w: got %d dimensions, earlier documents %d", core.ErrDimensionMismatch, got, dim)
	}

	if err := r.vectors.AddVectorRecords(ctx, fresh...); err != nil {
		return 0, 0, &core.IndexingError{DocumentId: doc.Id, Err: err}
	}

	r.logger.Debug("reindexed document", "document", doc.Id, "chunks", len(fresh))
	return len(fresh), len(fresh[0].Vector), nil
}

func (r *Reindexer) updateCollection(ctx context.Context, dim int) error {
	coll, err := r.collections.LoadCollection(ctx, r.collectionName)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if coll == nil {
		coll = &core.Collection{Name: r.collectionName}
	}
	coll.EmbeddingModel = r.embeddingModel
	coll.Dimension = dim
	if err := r.collections.SaveCollection(ctx, coll); err != nil {
		return fmt.Errorf("failed to save collection: %w", err)
	}
	return nil
}
