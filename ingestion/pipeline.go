package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/furrow/chunker"
	"github.com/poiesic/furrow/clean"
	"github.com/poiesic/furrow/core"
	"github.com/poiesic/furrow/extract"
	"github.com/poiesic/furrow/storage"
)

// Indexer stores the chunks of a document. *vectorstore.Store implements it.
type Indexer interface {
	Add(ctx context.Context, documentID, sourceName string, chunks []string) (int, error)
}

// Pipeline runs a document through extraction, cleaning, chunking and
// indexing. The first stage to fail aborts the later ones.
type Pipeline struct {
	extractor extract.Extractor
	cleaner   *clean.Cleaner
	chunker   *chunker.Chunker
	indexer   Indexer
	documents storage.DocumentRepository
	newID     func() string
	logger    *slog.Logger
}

// Result describes an ingested document.
type Result struct {
	DocumentId    string
	ChunksCreated int
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithCleaner replaces the default text cleaner.
func WithCleaner(cleaner *clean.Cleaner) Option {
	return func(p *Pipeline) error {
		if cleaner == nil {
			return errors.New("cleaner cannot be nil")
		}
		p.cleaner = cleaner
		return nil
	}
}

// WithChunker replaces the default chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(p *Pipeline) error {
		if c == nil {
			return errors.New("chunker cannot be nil")
		}
		p.chunker = c
		return nil
	}
}

// WithIDGenerator sets the function assigning document instance ids.
// Default is a random UUID.
func WithIDGenerator(fn func() string) Option {
	return func(p *Pipeline) error {
		if fn == nil {
			return errors.New("id generator cannot be nil")
		}
		p.newID = fn
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	extractor extract.Extractor,
	indexer Indexer,
	documents storage.DocumentRepository,
	opts ...Option,
) (*Pipeline, error) {
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if indexer == nil {
		return nil, ErrIndexerRequired
	}
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}

	p := &Pipeline{
		extractor: extractor,
		indexer:   indexer,
		documents: documents,
		newID:     uuid.NewString,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	if p.cleaner == nil {
		cleaner, err := clean.NewCleaner()
		if err != nil {
			return nil, err
		}
		p.cleaner = cleaner
	}
	if p.chunker == nil {
		c, err := chunker.New(chunker.WithLogger(p.logger))
		if err != nil {
			return nil, err
		}
		p.chunker = c
	}
	p.logger = p.logger.With("component", "ingestion")
	return p, nil
}

// Ingest processes one document and registers it in the catalog once all
// of its chunks are stored. A fresh document id is assigned on every call.
//
// When indexing fails part way the returned Result still carries the id and
// the number of chunks committed, alongside a *core.IndexingError, so the
// caller can remove the partial document.
func (p *Pipeline) Ingest(ctx context.Context, data []byte, displayName string) (*Result, error) {
	start := time.Now()
	documentID := p.newID()
	logger := p.logger.With("document", documentID, "name", displayName)

	raw, err := p.extractor.Extract(ctx, data)
	if err != nil {
		logger.Error("extraction failed", "err", err)
		return nil, fmt.Errorf("extracting %s: %w", displayName, err)
	}

	text := p.cleaner.Clean(raw)

	chunks, err := p.chunker.Split(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrChunkingEmpty, displayName, err)
	}
	if len(chunks) == 0 {
		logger.Warn("document produced no chunks", "raw_chars", len(raw), "clean_chars", len(text))
		return nil, fmt.Errorf("%w: %s", core.ErrChunkingEmpty, displayName)
	}

	committed, err := p.indexer.Add(ctx, documentID, displayName, chunks)
	result := &Result{DocumentId: documentID, ChunksCreated: committed}
	if err != nil {
		return result, err
	}

	doc := &core.Document{
		Id:         documentID,
		Name:       displayName,
		ChunkCount: committed,
		CreatedAt:  time.Now().UTC(),
	}
	if err := p.documents.AddDocument(ctx, doc); err != nil {
		return result, fmt.Errorf("registering document %s: %w", documentID, err)
	}

	logger.Info("ingested document", "chunks", committed, "elapsed", time.Since(start))
	return result, nil
}
