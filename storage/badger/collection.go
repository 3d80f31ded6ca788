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

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/furrow/core"
	"github.com/poiesic/furrow/storage"
)

// CollectionRepository implements storage.CollectionRepository for BadgerDB.
type CollectionRepository struct {
	backend *Backend
}

var _ storage.CollectionRepository = (*CollectionRepository)(nil)

// NewCollectionRepository creates a new CollectionRepository.
func NewCollectionRepository(backend *Backend) *CollectionRepository {
	return &CollectionRepository{
		backend: backend,
	}
}

// SaveCollection persists a collection descriptor.
func (r *CollectionRepository) SaveCollection(ctx context.Context, collection *core.Collection) error {
	if err := validateCollectionName(collection.Name); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		collection.UpdatedAt = time.Now().UTC()
		if collection.CreatedAt.IsZero() {
			collection.CreatedAt = collection.UpdatedAt
		}
		key := makeCollectionKey(collection.Name)
		if err := tx.Set(key, storage.MarshalCollection(collection)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// LoadCollection retrieves the descriptor with the given name.
// Returns nil, nil if no descriptor exists.
func (r *CollectionRepository) LoadCollection(ctx context.Context, name string) (*core.Collection, error) {
	var collection *core.Collection
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeCollectionKey(name))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			collection, unmarshalErr = storage.UnmarshalCollection(val)
			return unmarshalErr
		})
	}, false)

	return collection, err
}
