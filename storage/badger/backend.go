package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/furrow/core"
	"github.com/poiesic/furrow/storage"
)

// Backend owns the BadgerDB instance shared by a collection's repositories.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// BackendOption configures OpenBackend.
type BackendOption func(*backendOptions)

type backendOptions struct {
	logger     *slog.Logger
	syncWrites bool
}

// WithBackendLogger routes badger's own log output to logger.
func WithBackendLogger(logger *slog.Logger) BackendOption {
	return func(o *backendOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSyncWrites makes every commit fsync before returning.
func WithSyncWrites(sync bool) BackendOption {
	return func(o *backendOptions) {
		o.syncWrites = sync
	}
}

// slogAdapter forwards badger's printf-style logging to slog.
type slogAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) log(level slog.Level, msg string, items []any) {
	a.logger.Log(context.Background(), level, strings.TrimRight(fmt.Sprintf(msg, items...), "\n"))
}

func (a *slogAdapter) Errorf(msg string, items ...any)   { a.log(slog.LevelError, msg, items) }
func (a *slogAdapter) Warningf(msg string, items ...any) { a.log(slog.LevelWarn, msg, items) }
func (a *slogAdapter) Infof(msg string, items ...any)    { a.log(slog.LevelDebug, msg, items) }
func (a *slogAdapter) Debugf(msg string, items ...any)   { a.log(slog.LevelDebug, msg, items) }

// OpenBackend opens the database directory at filePath, creating it when
// missing. With inMemory set, filePath is ignored and nothing touches disk.
func OpenBackend(filePath string, inMemory bool, opts ...BackendOption) (*Backend, error) {
	o := &backendOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger.With("component", "badger")

	var dbOpts badger.Options
	if inMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(filePath, 0o755); err != nil {
			return nil, fmt.Errorf("%s is not a usable database directory: %w", filePath, err)
		}
		dbOpts = badger.DefaultOptions(filePath).WithSyncWrites(o.syncWrites)
	}
	// Badger's info chatter is demoted to debug by the adapter.
	dbOpts.Logger = &slogAdapter{logger: logger}
	dbOpts.Compression = options.None

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}
	logger.Debug("opened database", "path", filePath, "in_memory", inMemory)
	return &Backend{db: db, logger: logger}, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx runs fn inside a transaction, read-write when isWrite is set.
// fn must commit a write transaction itself; anything left uncommitted is
// discarded.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return translateErr(fn(tx))
}

func translateErr(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return fmt.Errorf("%w: %w", storage.ErrStorageClosed, err)
	}
	return err
}

// scanSimilar scores every vector record under prefix against vector and
// keeps the limit best, highest first. Records of another dimension are
// skipped. Ties keep key order, so earlier
// chunks of a document win. A negative limit keeps everything.
func (b *Backend) scanSimilar(prefix []byte, vector []float32, limit int) ([]*core.SearchResult, error) {
	if limit == 0 {
		return []*core.SearchResult{}, nil
	}
	var results []*core.SearchResult
	err := b.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *core.VectorRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalVectorRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			// Records from another embedding model cannot be compared.
			if len(record.Vector) != len(vector) {
				continue
			}

			candidate := &core.SearchResult{Record: record, Score: dotProduct(vector, record.Vector)}
			if limit > 0 && len(results) == limit {
				if candidate.Score <= results[limit-1].Score {
					continue
				}
				results = results[:limit-1]
			}
			// Insert after entries with an equal score to keep key order.
			pos, _ := slices.BinarySearchFunc(results, candidate, func(e, t *core.SearchResult) int {
				if e.Score >= t.Score {
					return -1
				}
				return 1
			})
			results = slices.Insert(results, pos, candidate)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// dotProduct equals cosine similarity for unit vectors of equal length.
func dotProduct(a, b []float32) float32 {
	var sum float32
	for i := range min(len(a), len(b)) {
		sum += a[i] * b[i]
	}
	return sum
}
