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
	"fmt"
	"strings"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Text must not be blank
//   - DocumentId must not be empty or contain ':'
//   - Index must not be negative
//   - Id must match ChunkID(DocumentId, Index)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if strings.TrimSpace(chunk.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}

	if chunk.DocumentId == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyDocumentID)
	}

	// ':' separates key segments, so "a" would prefix-match "a:b".
	if strings.Contains(chunk.DocumentId, ":") {
		return fmt.Errorf("%w: document id %q contains ':'", ErrInvalidChunk, chunk.DocumentId)
	}

	if chunk.Index < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrNegativeIndex)
	}

	if want := ChunkID(chunk.DocumentId, chunk.Index); chunk.Id != want {
		return fmt.Errorf("%w: id %d does not match position (want %d)", ErrInvalidChunk, chunk.Id, want)
	}

	return nil
}

// ValidateVectorRecord validates a VectorRecord before it is stored.
// Records share the chunk rules and must carry a non-empty vector.
func ValidateVectorRecord(record *VectorRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidVectorRecord)
	}

	chunk := record.Chunk()
	if err := ValidateChunk(&chunk); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidVectorRecord, err)
	}

	if len(record.Vector) == 0 {
		return fmt.Errorf("%w: vector is empty", ErrInvalidVectorRecord)
	}

	return nil
}

// ValidateDocument validates a Document catalog entry.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Id == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyDocumentID)
	}

	if strings.Contains(doc.Id, ":") {
		return fmt.Errorf("%w: id %q contains ':'", ErrInvalidDocument, doc.Id)
	}

	if doc.ChunkCount < 0 {
		return fmt.Errorf("%w: negative chunk count %d", ErrInvalidDocument, doc.ChunkCount)
	}

	return nil
}
