package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored entities.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID derives the identifier of the chunk at position index of a document.
// Re-ingesting the same document instance yields the same ids, while a new
// document instance never collides with chunks of a prior one.
func ChunkID(documentID string, index int) ID {
	return IDFromContent(documentID + ":" + strconv.Itoa(index))
}

// Document is an ingested source document.
type Document struct {
	Id         string // Instance identifier assigned at ingestion (UUID)
	Name       string // Display name, usually the file name
	ChunkCount int
	CreatedAt  time.Time
}

// Chunk is a bounded fragment of a document's canonical text.
type Chunk struct {
	Id         ID
	DocumentId string
	Index      int
	Text       string
	SourceName string
}

// VectorRecord is a chunk together with its embedding as persisted by the vector store.
type VectorRecord struct {
	ChunkId    ID
	DocumentId string
	SourceName string
	Index      int
	Text       string
	Vector     []float32
	InsertedAt time.Time
}

// Chunk returns the chunk this record was built from.
func (r *VectorRecord) Chunk() Chunk {
	return Chunk{
		Id:         r.ChunkId,
		DocumentId: r.DocumentId,
		Index:      r.Index,
		Text:       r.Text,
		SourceName: r.SourceName,
	}
}

// Collection describes the logical collection vector records live in.
// EmbeddingModel and Dimension pin the embedding space the collection was built with.
type Collection struct {
	Name           string
	EmbeddingModel string
	Dimension      int // 0 until the first vector is stored
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SearchResult is a vector record matched by similarity search.
type SearchResult struct {
	Record *VectorRecord
	Score  float32 // Cosine similarity, higher is closer
}

// QueryResult is a retrieved chunk shaped for callers and prompt assembly.
type QueryResult struct {
	ChunkId    ID
	DocumentId string
	SourceName string
	Index      int
	Text       string // Truncated to the retriever's bound
	Score      float32
}

// GenerationContext is the ordered set of retrieved chunks an answer is grounded on.
type GenerationContext []QueryResult
