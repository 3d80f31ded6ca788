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


package core

import (
	"errors"
	"fmt"
)

// Pipeline error kinds
var (
	// ErrExtraction indicates no recoverable text could be read from a source document.
	ErrExtraction = errors.New("text extraction failed")

	// ErrChunkingEmpty indicates cleaning and splitting produced no usable chunks.
	ErrChunkingEmpty = errors.New("document produced no usable chunks")

	// ErrIndexing indicates a batch write to the vector store failed.
	ErrIndexing = errors.New("indexing failed")

	// ErrRetrieval indicates the vector store or embedding backend could not serve a query.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGenerationStream indicates the language model backend failed while streaming.
	ErrGenerationStream = errors.New("generation stream failed")

	// ErrDocumentNotFound indicates no document exists with the given id.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrEmbeddingMismatch indicates the configured embedding model differs from the
	// model the collection was built with.
	ErrEmbeddingMismatch = errors.New("embedding model does not match collection")

	// ErrDimensionMismatch indicates a vector's length differs from the collection dimension.
	ErrDimensionMismatch = errors.New("vector dimension does not match collection")
)

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidVectorRecord indicates a VectorRecord failed validation.
	ErrInvalidVectorRecord = errors.New("invalid vector record")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyContent indicates the text of a chunk or record is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyDocumentID indicates a missing document id.
	ErrEmptyDocumentID = errors.New("document id cannot be empty")

	// ErrNegativeIndex indicates a chunk position below zero.
	ErrNegativeIndex = errors.New("chunk index cannot be negative")
)

// IndexingError reports a failed batch write. Batches before Batch were
// committed and are not rolled back; Committed counts their records.
type IndexingError struct {
	DocumentId string
	Batch      int
	Committed  int
	Err        error
}

func (e *IndexingError) Error() string {
	return fmt.Sprintf("%s: document %s batch %d (%d records committed): %v",
		ErrIndexing, e.DocumentId, e.Batch, e.Committed, e.Err)
}

// Unwrap exposes both ErrIndexing and the underlying cause to errors.Is and errors.As.
func (e *IndexingError) Unwrap() []error {
	return []error{ErrIndexing, e.Err}
}
