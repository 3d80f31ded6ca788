package ingestion

import "errors"

var (
	// ErrExtractorRequired is returned when a text extractor is not provided.
	ErrExtractorRequired = errors.New("extractor required")

	// ErrIndexerRequired is returned when a vector store is not provided.
	ErrIndexerRequired = errors.New("indexer required")

	// ErrDocumentRepositoryRequired is returned when a document repository is not provided.
	ErrDocumentRepositoryRequired = errors.New("document repository required")
)
