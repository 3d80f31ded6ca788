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


// Package furrow answers questions about a library of agricultural PDF
// documents using retrieval-augmented generation.
//
// An Orchestrator owns the embedded store and the AI backend and exposes the
// four document operations: Ingest, Query, Ask and Remove.
package furrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/furrow/ai"
	"github.com/poiesic/furrow/ai/ollama"
	"github.com/poiesic/furrow/ai/openai"
	"github.com/poiesic/furrow/chunker"
	"github.com/poiesic/furrow/clean"
	"github.com/poiesic/furrow/core"
	"github.com/poiesic/furrow/extract"
	"github.com/poiesic/furrow/generation"
	"github.com/poiesic/furrow/ingestion"
	"github.com/poiesic/furrow/retrieval"
	"github.com/poiesic/furrow/storage"
	"github.com/poiesic/furrow/storage/badger"
	"github.com/poiesic/furrow/vectorstore"
)

// Orchestrator wires the pipeline components over one collection.
type Orchestrator struct {
	repos        *badger.Repositories
	provider     ai.AIProvider
	ownsProvider bool
	store        *vectorstore.Store
	pipeline     *ingestion.Pipeline
	retriever    *retrieval.Retriever
	generator    *generation.Generator
	logger       *slog.Logger
}

// IngestResult describes a successfully or partially ingested document.
type IngestResult = ingestion.Result

// Option configures an Orchestrator.
type Option func(*options)

type options struct {
	aiConfig      *ai.Config
	provider      ai.AIProvider
	inMemory      bool
	collection    string
	extractor     extract.Extractor
	logger        *slog.Logger
	cleanerOpts   []clean.Option
	chunkerOpts   []chunker.Option
	storeOpts     []vectorstore.Option
	retrieverOpts []retrieval.Option
	generatorOpts []generation.Option
	backendOpts   []badger.BackendOption
}

// WithAIConfig sets the backend configuration. Ignored when WithProvider is used.
func WithAIConfig(config *ai.Config) Option {
	return func(o *options) {
		o.aiConfig = config
	}
}

// WithProvider supplies a ready AI provider. The caller keeps ownership
// and must close it.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithInMemory keeps all data in memory; the path is ignored.
func WithInMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// WithCollection sets the collection name.
func WithCollection(name string) Option {
	return func(o *options) {
		o.collection = name
	}
}

// WithExtractor replaces the PDF extractor.
func WithExtractor(extractor extract.Extractor) Option {
	return func(o *options) {
		o.extractor = extractor
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithCleanerOptions(opts ...clean.Option) Option {
	return func(o *options) {
		o.cleanerOpts = append(o.cleanerOpts, opts...)
	}
}

func WithChunkerOptions(opts ...chunker.Option) Option {
	return func(o *options) {
		o.chunkerOpts = append(o.chunkerOpts, opts...)
	}
}

func WithStoreOptions(opts ...vectorstore.Option) Option {
	return func(o *options) {
		o.storeOpts = append(o.storeOpts, opts...)
	}
}

func WithRetrieverOptions(opts ...retrieval.Option) Option {
	return func(o *options) {
		o.retrieverOpts = append(o.retrieverOpts, opts...)
	}
}

func WithGeneratorOptions(opts ...generation.Option) Option {
	return func(o *options) {
		o.generatorOpts = append(o.generatorOpts, opts...)
	}
}

func WithBackendOptions(opts ...badger.BackendOption) Option {
	return func(o *options) {
		o.backendOpts = append(o.backendOpts, opts...)
	}
}

// NewProvider builds the provider the configuration names.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	config.Normalize()
	switch config.Backend {
	case ai.BackendOllama:
		return ollama.NewProvider(config)
	case ai.BackendOpenAI:
		return openai.NewProvider(config)
	default:
		return nil, fmt.Errorf("unknown AI backend %q", config.Backend)
	}
}

// Open creates an Orchestrator storing its data under path.
func Open(path string, opts ...Option) (*Orchestrator, error) {
	o := &options{
		aiConfig:   ai.DefaultConfig(),
		collection: vectorstore.DefaultCollection,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	backendOpts := append([]badger.BackendOption{badger.WithBackendLogger(o.logger)}, o.backendOpts...)
	repos, err := badger.OpenRepositories(path, o.inMemory, o.collection, backendOpts...)
	if err != nil {
		return nil, err
	}

	orch := &Orchestrator{
		repos:  repos,
		logger: o.logger.With("component", "orchestrator"),
	}
	if err := orch.wire(o); err != nil {
		orch.Close()
		return nil, err
	}
	return orch, nil
}

func (orch *Orchestrator) wire(o *options) error {
	orch.provider = o.provider
	embeddingModel := ""
	if orch.provider == nil {
		provider, err := NewProvider(o.aiConfig)
		if err != nil {
			return err
		}
		orch.provider = provider
		orch.ownsProvider = true
		embeddingModel = o.aiConfig.EmbeddingModel
	}

	storeOpts := []vectorstore.Option{
		vectorstore.WithCollection(o.collection),
		vectorstore.WithEmbeddingModel(embeddingModel),
		vectorstore.WithLogger(o.logger),
	}
	store, err := vectorstore.New(orch.repos.Vectors, orch.repos.Collections, orch.provider.Embedder(),
		append(storeOpts, o.storeOpts...)...)
	if err != nil {
		return err
	}
	orch.store = store

	extractor := o.extractor
	if extractor == nil {
		pdfExtractor, err := extract.NewPDFExtractor(extract.WithLogger(o.logger))
		if err != nil {
			return err
		}
		extractor = pdfExtractor
	}
	cleaner, err := clean.NewCleaner(o.cleanerOpts...)
	if err != nil {
		return err
	}
	chunks, err := chunker.New(append([]chunker.Option{chunker.WithLogger(o.logger)}, o.chunkerOpts...)...)
	if err != nil {
		return err
	}
	orch.pipeline, err = ingestion.NewPipeline(extractor, store, orch.repos.Documents,
		ingestion.WithCleaner(cleaner),
		ingestion.WithChunker(chunks),
		ingestion.WithLogger(o.logger),
	)
	if err != nil {
		return err
	}

	orch.retriever, err = retrieval.NewRetriever(store,
		append([]retrieval.Option{retrieval.WithLogger(o.logger)}, o.retrieverOpts...)...)
	if err != nil {
		return err
	}

	orch.generator, err = generation.New(orch.provider.Completer(),
		append([]generation.Option{generation.WithLogger(o.logger)}, o.generatorOpts...)...)
	return err
}

// Close releases the store, the provider if Open created it, and the database.
func (orch *Orchestrator) Close() error {
	if orch.store != nil {
		orch.store.Close()
	}
	if orch.ownsProvider && orch.provider != nil {
		if err := orch.provider.Close(); err != nil {
			orch.logger.Error("error closing AI provider", "err", err)
		}
	}
	if err := orch.repos.Close(); err != nil {
		orch.logger.Error("error closing storage", "err", err)
		return err
	}
	return nil
}

// Ingest extracts, cleans, chunks and indexes a PDF under displayName.
// On a *core.IndexingError the result still names the partial document.
func (orch *Orchestrator) Ingest(ctx context.Context, data []byte, displayName string) (*IngestResult, error) {
	return orch.pipeline.Ingest(ctx, data, displayName)
}

// Query returns up to k chunks relevant to text.
func (orch *Orchestrator) Query(ctx context.Context, text string, k int) ([]core.QueryResult, error) {
	return orch.retriever.Retrieve(ctx, text, k)
}

// Ask retrieves context for text and starts a streamed answer. Retrieval
// errors are returned before any streaming begins.
func (orch *Orchestrator) Ask(ctx context.Context, text string, k int) (*generation.Stream, error) {
	results, err := orch.retriever.Retrieve(ctx, text, k)
	if err != nil {
		return nil, err
	}
	return orch.generator.Generate(ctx, text, results), nil
}

// Remove deletes a document's chunks and its catalog entry. Returns
// core.ErrDocumentNotFound when neither exists.
func (orch *Orchestrator) Remove(ctx context.Context, documentID string) error {
	_, err := orch.repos.Documents.GetDocument(ctx, documentID)
	cataloged := err == nil
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	deleted, err := orch.store.Delete(ctx, documentID)
	if err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", documentID, err)
	}
	if !cataloged && deleted == 0 {
		return fmt.Errorf("%w: %s", core.ErrDocumentNotFound, documentID)
	}

	if cataloged {
		if err := orch.repos.Documents.DeleteDocument(ctx, documentID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}
	orch.logger.Info("removed document", "document", documentID, "chunks", deleted)
	return nil
}

// Documents lists the catalog ordered by name.
func (orch *Orchestrator) Documents(ctx context.Context) ([]*core.Document, error) {
	return orch.repos.Documents.ListDocuments(ctx)
}

// Store exposes the vector store, for maintenance tasks such as reindexing.
func (orch *Orchestrator) Store() *vectorstore.Store {
	return orch.store
}

// Repositories exposes the underlying repositories.
func (orch *Orchestrator) Repositories() *badger.Repositories {
	return orch.repos
}
