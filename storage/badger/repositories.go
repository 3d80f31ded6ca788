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


package badger

// Repositories bundles the repositories of one collection on a shared backend.
type Repositories struct {
	Backend     *Backend
	Vectors     *VectorRepository
	Documents   *DocumentRepository
	Collections *CollectionRepository
}

// OpenRepositories opens a backend and creates the repositories of a collection.
// Caller must call Close when done.
func OpenRepositories(filePath string, inMemory bool, collection string, opts ...BackendOption) (*Repositories, error) {
	backend, err := OpenBackend(filePath, inMemory, opts...)
	if err != nil {
		return nil, err
	}

	vectors, err := NewVectorRepository(backend, collection)
	if err != nil {
		backend.Close()
		return nil, err
	}

	documents, err := NewDocumentRepository(backend, collection)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Repositories{
		Backend:     backend,
		Vectors:     vectors,
		Documents:   documents,
		Collections: NewCollectionRepository(backend),
	}, nil
}

// NewMemoryRepositories creates in-memory repositories for testing.
func NewMemoryRepositories(collection string) (*Repositories, error) {
	return OpenRepositories("", true, collection)
}

// Close closes the repositories and then the backend.
func (r *Repositories) Close() error {
	r.Documents.Close()
	r.Vectors.Close()
	return r.Backend.Close()
}
