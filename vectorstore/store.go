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


// Package vectorstore keeps the embedded chunks of a collection and answers
// nearest-neighbor queries over them.
//
// Chunks are embedded in batches on a worker pool, in parallel, and committed
// one batch per transaction in index order. A failed batch stops the add and
// leaves earlier batches committed; record keys derive from the document id
// and chunk index, so adding the same document again overwrites rather than
// duplicates.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/furrow/ai"
	"github.com/poiesic/furrow/core"
	"github.com/poiesic/furrow/storage"
)

const (
	DefaultBatchSize  = 16
	DefaultCollection = "agriculture_docs"
)

// Store is a vector store over one collection.
type Store struct {
	vectors        storage.VectorRepository
	collections    storage.CollectionRepository
	embedder       ai.Embedder
	pool           *ants.Pool
	batchSize      int
	collectionName string
	embeddingModel string
	logger         *slog.Logger

	mu         sync.Mutex
	collection *core.Collection
}

// Option configures a Store.
type Option func(*Store) error

// WithBatchSize sets how many chunks are embedded and committed together.
// Default is 16.
func WithBatchSize(size int) Option {
	return func(s *Store) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive: %d", size)
		}
		s.batchSize = size
		return nil
	}
}

// WithPoolSize sets the number of batches embedded concurrently.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(s *Store) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if s.pool != nil {
			s.pool.Release()
		}
		s.pool = pool
		return nil
	}
}

// WithCollection sets the collection name.
// Default is "agriculture_docs".
func WithCollection(name string) Option {
	return func(s *Store) error {
		s.collectionName = name
		return nil
	}
}

// WithEmbeddingModel records the embedding model the store's embedder uses.
// A collection built with a different model is refused.
func WithEmbeddingModel(model string) Option {
	return func(s *Store) error {
		s.embeddingModel = model
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New creates a Store. The embedder is used both to index chunks and to
// embed queries, so the two always share an embedding space.
func New(
	vectors storage.VectorRepository,
	collections storage.CollectionRepository,
	embedder ai.Embedder,
	opts ...Option,
) (*Store, error) {
	if vectors == nil {
		return nil, ErrVectorRepositoryRequired
	}
	if collections == nil {
		return nil, ErrCollectionRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Store{
		vectors:        vectors,
		collections:    collections,
		embedder:       embedder,
		batchSize:      DefaultBatchSize,
		collectionName: DefaultCollection,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.Close()
			return nil, err
		}
	}

	if s.pool == nil {
		pool, err := ants.NewPool(max(runtime.NumCPU()/2, 1))
		if err != nil {
			return nil, err
		}
		s.pool = pool
	}
	s.logger = s.logger.With("component", "vectorstore", "collection", s.collectionName)
	return s, nil
}

// Close releases the worker pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// GetOrCreate returns the collection descriptor, loading or creating it on
// first use. Only one caller initializes; a failed attempt is retried by the
// next call. Returns core.ErrEmbeddingMismatch when the collection was built
// with a different embedding model.
func (s *Store) GetOrCreate(ctx context.Context) (*core.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collection != nil {
		c := *s.collection
		return &c, nil
	}

	coll, err := s.collections.LoadCollection(ctx, s.collectionName)
	if err != nil {
		return nil, fmt.Errorf("loading collection %s: %w", s.collectionName, err)
	}

	if coll == nil {
		coll = &core.Collection{
			Name:           s.collectionName,
			EmbeddingModel: s.embeddingModel,
		}
		if err := s.collections.SaveCollection(ctx, coll); err != nil {
			return nil, fmt.Errorf("creating collection %s: %w", s.collectionName, err)
		}
		s.logger.Info("created collection", "embedding_model", s.embeddingModel)
	} else if s.embeddingModel != "" && coll.EmbeddingModel != "" && coll.EmbeddingModel != s.embeddingModel {
		return nil, fmt.Errorf("%w: collection %s was built with %q, embedder uses %q",
			core.ErrEmbeddingMismatch, s.collectionName, coll.EmbeddingModel, s.embeddingModel)
	}

	s.collection = coll
	c := *coll
	return &c, nil
}

// fixDimension pins the collection's vector dimension on first use and
// rejects vectors of any other length afterwards.
func (s *Store) fixDimension(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.collection.Dimension == dim {
		return nil
	}
	if s.collection.Dimension != 0 {
		return fmt.Errorf("%w: collection %s holds %d-dimensional vectors, got %d",
			core.ErrDimensionMismatch, s.collectionName, s.collection.Dimension, dim)
	}

	updated := *s.collection
	updated.Dimension = dim
	if err := s.collections.SaveCollection(ctx, &updated); err != nil {
		return fmt.Errorf("saving collection dimension: %w", err)
	}
	s.collection = &updated
	return nil
}

type batchResult struct {
	vectors [][]float32
	err     error
	done    chan struct{}
}

// Add embeds and stores chunks of a document. Returns the number of records
// committed. On failure the error is a *core.IndexingError naming the failed
// batch; batches before it remain committed.
func (s *Store) Add(ctx context.Context, documentID, sourceName string, chunks []string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	if _, err := s.GetOrCreate(ctx); err != nil {
		return 0, &core.IndexingError{DocumentId: documentID, Err: err}
	}

	records := make([]*core.VectorRecord, len(chunks))
	for i, text := range chunks {
		records[i] = &core.VectorRecord{
			ChunkId:    core.ChunkID(documentID, i),
			DocumentId: documentID,
			SourceName: sourceName,
			Index:      i,
			Text:       text,
		}
	}

	var batches [][]*core.VectorRecord
	for start := 0; start < len(records); start += s.batchSize {
		batches = append(batches, records[start:min(start+s.batchSize, len(records))])
	}

	embedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]*batchResult, len(batches))
	for i := range results {
		results[i] = &batchResult{done: make(chan struct{})}
	}
	go s.embedBatches(embedCtx, batches, results)

	committed := 0
	for i, batch := range batches {
		result := results[i]
		<-result.done

		err := result.err
		if err == nil {
			err = s.commitBatch(ctx, batch, result.vectors)
		}
		if err != nil {
			s.logger.Error("indexing batch failed", "document", documentID, "batch", i, "committed", committed, "err", err)
			return committed, &core.IndexingError{
				DocumentId: documentID,
				Batch:      i,
				Committed:  committed,
				Err:        err,
			}
		}
		committed += len(batch)
	}

	s.logger.Debug("indexed document", "document", documentID, "records", committed, "batches", len(batches))
	return committed, nil
}

// embedBatches submits every batch to the pool. Batches not yet submitted
// when ctx ends are failed with the context error.
func (s *Store) embedBatches(ctx context.Context, batches [][]*core.VectorRecord, results []*batchResult) {
	for i, batch := range batches {
		result := results[i]
		if err := ctx.Err(); err != nil {
			result.err = err
			close(result.done)
			continue
		}

		texts := make([]string, len(batch))
		for j, record := range batch {
			texts[j] = record.Text
		}

		err := s.pool.Submit(func() {
			defer close(result.done)
			result.vectors, result.err = s.embedder.EmbedTexts(ctx, texts)
		})
		if err != nil {
			result.err = err
			close(result.done)
		}
	}
}

// commitBatch attaches normalized vectors to a batch and writes it atomically.
func (s *Store) commitBatch(ctx context.Context, batch []*core.VectorRecord, vectors [][]float32) error {
	if len(vectors) != len(batch) {
		return fmt.Errorf("embedding result mismatch. expected %d, received %d", len(batch), len(vectors))
	}
	for i, record := range batch {
		if len(vectors[i]) == 0 {
			return fmt.Errorf("%w for chunk %d", ai.ErrEmptyEmbedding, record.Index)
		}
		if err := s.fixDimension(ctx, len(vectors[i])); err != nil {
			return err
		}
		record.Vector = NormalizeVector(vectors[i])
	}
	return s.vectors.AddVectorRecords(ctx, batch...)
}

// Delete removes every record of a document and returns how many were removed.
func (s *Store) Delete(ctx context.Context, documentID string) (int, error) {
	deleted, err := s.vectors.DeleteDocumentRecords(ctx, documentID)
	if err != nil {
		return deleted, err
	}
	s.logger.Debug("deleted document", "document", documentID, "records", deleted)
	return deleted, nil
}

// Count returns the number of records stored for a document.
func (s *Store) Count(ctx context.Context, documentID string) (int, error) {
	return s.vectors.CountDocumentRecords(ctx, documentID)
}

// Records returns a document's records in chunk order.
func (s *Store) Records(ctx context.Context, documentID string) ([]*core.VectorRecord, error) {
	return s.vectors.GetDocumentRecords(ctx, documentID)
}

// Query embeds text and returns the k most similar records, closest first.
// An empty collection or k < 1 yields no results.
func (s *Store) Query(ctx context.Context, text string, k int) ([]*core.SearchResult, error) {
	if k < 1 {
		return []*core.SearchResult{}, nil
	}
	coll, err := s.GetOrCreate(ctx)
	if err != nil {
		return nil, err
	}

	vector, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if coll.Dimension != 0 && len(vector) != coll.Dimension {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, collection %d",
			core.ErrDimensionMismatch, len(vector), coll.Dimension)
	}

	results, err := s.vectors.FindSimilar(ctx, NormalizeVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("searching collection: %w", err)
	}
	if results == nil {
		results = []*core.SearchResult{}
	}
	return results, nil
}
