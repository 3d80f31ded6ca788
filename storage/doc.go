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


// Package storage provides the storage abstraction layer for furrow.
//
// This package defines repository interfaces that decouple the vector store
// and ingestion logic from the storage engine, plus the binary encoding of
// persisted records.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - VectorRepository: vector records of one collection, atomic batch writes,
//     delete by document, brute-force similarity search
//   - DocumentRepository: the catalog of ingested documents
//   - CollectionRepository: collection descriptors (embedding model, dimension)
//
// The badger subpackage implements all three on a single BadgerDB instance.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	vectors, err := badger.NewVectorRepository(backend, "agriculture_docs")
//
// Use in tests with in-memory storage:
//
//	repos, err := badger.NewMemoryRepositories("test")
//	defer repos.Close()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
