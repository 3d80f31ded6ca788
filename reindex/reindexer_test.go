package reindex

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/furrow/ai/mock"
	"github.com/poiesic/furrow/core"
	"github.com/poiesic/furrow/storage"
	"github.com/poiesic/furrow/storage/badger"
	"github.com/poiesic/furrow/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const collection = vectorstore.DefaultCollection

// seed indexes docs (name -> chunk count) with a 64-dimensional embedder.
func seed(t *testing.T, docs map[string]int) *badger.Repositories {
	t.Helper()
	repos, err := badger.NewMemoryRepositories(collection)
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	store, err := vectorstore.New(repos.Vectors, repos.Collections, mock.NewMockEmbedder(),
		vectorstore.WithEmbeddingModel("old-model"), vectorstore.WithPoolSize(2))
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	for name, n := range docs {
		chunks := make([]string, n)
		for i := range chunks {
			chunks[i] = fmt.Sprintf("%s section %d on irrigation scheduling", name, i)
		}
		_, err := store.Add(ctx, "id-"+name, name+".pdf", chunks)
		require.NoError(t, err)
		require.NoError(t, repos.Documents.AddDocument(ctx, &core.Document{
			Id: "id-" + name, Name: name + ".pdf", ChunkCount: n, CreatedAt: time.Now(),
		}))
	}
	return repos
}

func reposOf(r *badger.Repositories) Repositories {
	return Repositories{Documents: r.Documents, Vectors: r.Vectors, Collections: r.Collections}
}

func fastConfig() *Config {
	return &Config{BatchSize: 4, ReportInterval: 5, MaxRetries: 3, RetryDelay: time.Millisecond}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"batch size", func(c *Config) { c.BatchSize = 0 }},
		{"report interval", func(c *Config) { c.ReportInterval = 0 }},
		{"max retries", func(c *Config) { c.MaxRetries = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestReindexer_Run(t *testing.T) {
	repos := seed(t, map[string]int{"maize": 10, "sorghum": 3})
	ctx := context.Background()

	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 32

	var out bytes.Buffer
	r := NewReindexer(reposOf(repos), collection, embedder, "new-model", fastConfig(), &out)
	stats, err := r.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 13, stats.Chunks)
	assert.Equal(t, 32, stats.Dimension)
	// maize in 3 batches, sorghum in 1
	assert.Equal(t, 4, embedder.CallCount())

	for id, n := range map[string]int{"id-maize": 10, "id-sorghum": 3} {
		records, err := repos.Vectors.GetDocumentRecords(ctx, id)
		require.NoError(t, err)
		require.Len(t, records, n)
		for i, record := range records {
			assert.Equal(t, i, record.Index)
			assert.Len(t, record.Vector, 32)
		}
	}

	coll, err := repos.Collections.LoadCollection(ctx, collection)
	require.NoError(t, err)
	assert.Equal(t, "new-model", coll.EmbeddingModel)
	assert.Equal(t, 32, coll.Dimension)

	assert.Contains(t, out.String(), "Starting reindex of 13 chunks in 2 documents")
	assert.Contains(t, out.String(), "Reindex complete")

	// The reindexed collection is usable by a store configured with the new model.
	store, err := vectorstore.New(repos.Vectors, repos.Collections, embedder, vectorstore.WithEmbeddingModel("new-model"))
	require.NoError(t, err)
	defer store.Close()
	results, err := store.Query(ctx, "maize section 2 on irrigation scheduling", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestReindexer_EmptyCatalog(t *testing.T) {
	repos := seed(t, nil)

	var out bytes.Buffer
	r := NewReindexer(reposOf(repos), collection, mock.NewMockEmbedder(), "new-model", fastConfig(), &out)
	stats, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Chunks)
	assert.Contains(t, out.String(), "No chunks found")

	coll, err := repos.Collections.LoadCollection(context.Background(), collection)
	require.NoError(t, err)
	assert.Equal(t, "new-model", coll.EmbeddingModel)
}

func TestReindexer_RetriesTransientFailures(t *testing.T) {
	repos := seed(t, map[string]int{"wheat": 2})

	embedder := mock.NewMockEmbedder()
	failures := 2
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if failures > 0 {
			failures--
			return nil, errors.New("503 service unavailable")
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.BagOfWords(text, 16)
		}
		return out, nil
	}

	r := NewReindexer(reposOf(repos), collection, embedder, "new-model", fastConfig(), nil)
	stats, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, 16, stats.Dimension)
}

func TestReindexer_FailureKeepsOldVectors(t *testing.T) {
	repos := seed(t, map[string]int{"wheat": 2})
	ctx := context.Background()

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("model not loaded")
	}

	r := NewReindexer(reposOf(repos), collection, embedder, "new-model", fastConfig(), nil)
	_, err := r.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wheat.pdf")

	records, err := repos.Vectors.GetDocumentRecords(ctx, "id-wheat")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Len(t, records[0].Vector, mock.DefaultDimension)

	coll, err := repos.Collections.LoadCollection(ctx, collection)
	require.NoError(t, err)
	assert.Equal(t, "old-model", coll.EmbeddingModel)
	assert.Equal(t, mock.DefaultDimension, coll.Dimension)
}

// failingWrites rejects every record write.
type failingWrites struct {
	storage.VectorRepository
}

func (f failingWrites) AddVectorRecords(ctx context.Context, records ...*core.VectorRecord) error {
	return errors.New("disk full")
}

func TestReindexer_FailedWriteKeepsOldVectors(t *testing.T) {
	repos := seed(t, map[string]int{"barley": 9})
	ctx := context.Background()

	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 32
	rs := reposOf(repos)
	rs.Vectors = failingWrites{repos.Vectors}

	r := NewReindexer(rs, collection, embedder, "new-model", fastConfig(), nil)
	_, err := r.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrIndexing)

	records, err := repos.Vectors.GetDocumentRecords(ctx, "id-barley")
	require.NoError(t, err)
	require.Len(t, records, 9)
	for _, record := range records {
		assert.Len(t, record.Vector, mock.DefaultDimension)
	}
}

func TestReindexer_PurgesOrphanedRecords(t *testing.T) {
	repos := seed(t, map[string]int{"oats": 2})
	ctx := context.Background()

	// Records from an ingest that never reached the catalog.
	orphan := &core.VectorRecord{
		ChunkId:    core.ChunkID("id-lost", 0),
		DocumentId: "id-lost",
		SourceName: "lost.pdf",
		Text:       "oats section 0 on irrigation scheduling",
		Vector:     mock.BagOfWords("oats section 0 on irrigation scheduling", mock.DefaultDimension),
	}
	require.NoError(t, repos.Vectors.AddVectorRecords(ctx, orphan))

	embedder := mock.NewMockEmbedder()
	embedder.Dimension = 32
	var out bytes.Buffer
	r := NewReindexer(reposOf(repos), collection, embedder, "new-model", fastConfig(), &out)
	stats, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Orphans)
	assert.Equal(t, 2, stats.Chunks)
	assert.Contains(t, out.String(), "uncataloged document id-lost")

	ids, err := repos.Vectors.ListRecordDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"id-oats"}, ids)

	results, err := repos.Vectors.FindSimilar(ctx, mock.BagOfWords("oats irrigation", 32), -1)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, result := range results {
		assert.Equal(t, "id-oats", result.Record.DocumentId)
	}
}

func TestReindexer_InvalidConfig(t *testing.T) {
	repos := seed(t, nil)
	r := NewReindexer(reposOf(repos), collection, mock.NewMockEmbedder(), "m", &Config{}, nil)
	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBatchEmbedder(t *testing.T) {
	records := make([]*core.VectorRecord, 5)
	for i := range records {
		records[i] = &core.VectorRecord{
			ChunkId:    core.ChunkID("doc", i),
			DocumentId: "doc",
			Index:      i,
			Text:       fmt.Sprintf("cover crop note %d", i),
			Vector:     []float32{1},
		}
	}

	t.Run("copies records with new vectors", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		b := NewBatchEmbedder(embedder, 2, 1, time.Millisecond)

		var batches []int
		fresh, err := b.Embed(context.Background(), records, func(n int) { batches = append(batches, n) })
		require.NoError(t, err)
		require.Len(t, fresh, 5)
		assert.Equal(t, []int{2, 2, 1}, batches)
		for i, record := range fresh {
			assert.Equal(t, records[i].ChunkId, record.ChunkId)
			assert.Len(t, record.Vector, mock.DefaultDimension)
			assert.Equal(t, []float32{1}, records[i].Vector, "input must not change")
		}
	})

	t.Run("count mismatch is not retried", func(t *testing.T) {
		embedder := mock.NewMockEmbedder()
		embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{1, 0}}, nil
		}
		b := NewBatchEmbedder(embedder, 2, 2, time.Millisecond)
		_, err := b.Embed(context.Background(), records, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "embedding count mismatch")
		assert.Equal(t, 1, embedder.CallCount())
	})
}
