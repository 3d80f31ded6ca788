package storage

import (
	"context"

	"github.com/poiesic/furrow/core"
)

// VectorRepository provides operations for the vector records of one collection.
// Implementations must be thread-safe and support concurrent access.
type VectorRepository interface {
	// AddVectorRecords writes records as one atomic unit.
	// Either every record is committed or none is.
	// Existing records with the same document and index are overwritten.
	AddVectorRecords(ctx context.Context, records ...*core.VectorRecord) error

	// DeleteDocumentRecords removes every record belonging to a document.
	// Returns the number of records removed; zero is not an error.
	DeleteDocumentRecords(ctx context.Context, documentID string) (int, error)

	// GetDocumentRecords retrieves a document's records ordered by chunk index.
	GetDocumentRecords(ctx context.Context, documentID string) ([]*core.VectorRecord, error)

	// CountDocumentRecords returns the number of records stored for a document.
	CountDocumentRecords(ctx context.Context, documentID string) (int, error)

	// ListRecordDocuments returns the ids of every document that has records,
	// cataloged or not, in key order.
	ListRecordDocuments(ctx context.Context) ([]string, error)

	// FindSimilar scores every record against vector and returns the closest.
	// Records whose dimension differs from vector are skipped.
	// Results are ordered by similarity score (highest first), up to limit results.
	FindSimilar(ctx context.Context, vector []float32, limit int) ([]*core.SearchResult, error)

	// Close releases resources held by the repository.
	Close() error
}

// DocumentRepository provides operations for the catalog of ingested documents.
type DocumentRepository interface {
	// AddDocument stores or replaces a catalog entry.
	AddDocument(ctx context.Context, doc *core.Document) error

	// GetDocument retrieves a document by id.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// ListDocuments returns every catalog entry ordered by name, then id.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// DeleteDocument removes a catalog entry.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id string) error

	// Close releases resources held by the repository.
	Close() error
}

// CollectionRepository persists collection descriptors.
type CollectionRepository interface {
	// SaveCollection persists a descriptor, setting UpdatedAt.
	SaveCollection(ctx context.Context, collection *core.Collection) error

	// LoadCollection retrieves the descriptor with the given name.
	// Returns nil, nil if no descriptor exists.
	LoadCollection(ctx context.Context, name string) (*core.Collection, error)
}
