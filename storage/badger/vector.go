package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/furrow/core"
	"github.com/poiesic/furrow/storage"
)

// deleteBatchSize bounds the number of deletes committed per transaction.
const deleteBatchSize = 512

// VectorRepository implements storage.VectorRepository for BadgerDB.
// Each repository is bound to one collection.
type VectorRepository struct {
	backend    *Backend
	collection string
}

var _ storage.VectorRepository = (*VectorRepository)(nil)

// NewVectorRepository creates a VectorRepository for the named collection.
func NewVectorRepository(backend *Backend, collection string) (*VectorRepository, error) {
	if err := validateCollectionName(collection); err != nil {
		return nil, err
	}
	return &VectorRepository{
		backend:    backend,
		collection: collection,
	}, nil
}

// Close releases resources. VectorRepository has no resources to release.
func (r *VectorRepository) Close() error {
	return nil
}

// AddVectorRecords writes all records in a single transaction.
func (r *VectorRepository) AddVectorRecords(ctx context.Context, records ...*core.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, record := range records {
		if err := core.ValidateVectorRecord(record); err != nil {
			return err
		}
	}

	return r.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, record := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if record.InsertedAt.IsZero() {
				record.InsertedAt = now
			}
			key := makeVectorRecordKey(r.collection, record.DocumentId, record.Index)
			if err := tx.Set(key, storage.MarshalVectorRecord(record)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteDocumentRecords removes every record under the document's key prefix.
// Deletes are committed in bounded transactions, so a failure part way
// through can leave some records behind; calling again finishes the job.
func (r *VectorRepository) DeleteDocumentRecords(ctx context.Context, documentID string) (int, error) {
	keys, err := r.documentKeys(documentID)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for start := 0; start < len(keys); start += deleteBatchSize {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		end := min(start+deleteBatchSize, len(keys))
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			for _, key := range keys[start:end] {
				if err := tx.Delete(key); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return deleted, fmt.Errorf("deleting records of document %s: %w", documentID, err)
		}
		deleted += end - start
	}

	if deleted > 0 {
		r.backend.logger.Debug("deleted document records", "collection", r.collection, "document", documentID, "records", deleted)
	}
	return deleted, nil
}

// documentKeys collects the keys of all records belonging to a document.
func (r *VectorRepository) documentKeys(documentID string) ([][]byte, error) {
	var keys [][]byte
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocumentRecordPrefix(r.collection, documentID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		return nil
	}, false)
	return keys, err
}

// GetDocumentRecords retrieves a document's records in chunk order.
func (r *VectorRepository) GetDocumentRecords(ctx context.Context, documentID string) ([]*core.VectorRecord, error) {
	var records []*core.VectorRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocumentRecordPrefix(r.collection, documentID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			err := iter.Item().Value(func(val []byte) error {
				record, err := storage.UnmarshalVectorRecord(val)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return records, err
}

// CountDocumentRecords counts a document's records without decoding them.
func (r *VectorRepository) CountDocumentRecords(ctx context.Context, documentID string) (int, error) {
	keys, err := r.documentKeys(documentID)
	return len(keys), err
}

// ListRecordDocuments walks the collection's record keys without decoding values.
func (r *VectorRepository) ListRecordDocuments(ctx context.Context) ([]string, error) {
	prefix := makeCollectionRecordPrefix(r.collection)
	ids := []string{}
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, ok := documentIDFromRecordKey(prefix, iter.Item().Key())
			if !ok {
				continue
			}
			if len(ids) == 0 || ids[len(ids)-1] != id {
				ids = append(ids, id)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FindSimilar scans the collection for the records closest to vector.
func (r *VectorRepository) FindSimilar(ctx context.Context, vector []float32, limit int) ([]*core.SearchResult, error) {
	return r.backend.scanSimilar(makeCollectionRecordPrefix(r.collection), vector, limit)
}
