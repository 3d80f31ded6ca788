package badger

import (
	"context"
	"testing"

	"github.com/poiesic/furrow/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecord(docID string, index int, text string, vector []float32) *core.VectorRecord {
	return &core.VectorRecord{
		ChunkId:    core.ChunkID(docID, index),
		DocumentId: docID,
		SourceName: docID + ".pdf",
		Index:      index,
		Text:       text,
		Vector:     vector,
	}
}

func newTestRepositories(t *testing.T) *Repositories {
	t.Helper()
	repos, err := NewMemoryRepositories("test")
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func TestNewVectorRepository_InvalidCollection(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()

	_, err = NewVectorRepository(backend, "")
	assert.Error(t, err)
}

func TestVectorRepository_AddAndGet(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	records := []*core.VectorRecord{
		newTestRecord("doc-a", 2, "third", []float32{0, 0, 1}),
		newTestRecord("doc-a", 0, "first", []float32{1, 0, 0}),
		newTestRecord("doc-a", 1, "second", []float32{0, 1, 0}),
	}
	require.NoError(t, repos.Vectors.AddVectorRecords(ctx, records...))

	got, err := repos.Vectors.GetDocumentRecords(ctx, "doc-a")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, record := range got {
		assert.Equal(t, i, record.Index)
		assert.Equal(t, core.ChunkID("doc-a", i), record.ChunkId)
		assert.False(t, record.InsertedAt.IsZero())
	}
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "doc-a.pdf", got[0].SourceName)
}

func TestVectorRepository_AddEmpty(t *testing.T) {
	repos := newTestRepositories(t)
	assert.NoError(t, repos.Vectors.AddVectorRecords(context.Background()))
}

func TestVectorRepository_AddIsAtomic(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	bad := newTestRecord("doc-a", 1, "bad", nil)
	err := repos.Vectors.AddVectorRecords(ctx,
		newTestRecord("doc-a", 0, "good", []float32{1, 0}),
		bad,
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidVectorRecord)

	count, err := repos.Vectors.CountDocumentRecords(ctx, "doc-a")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestVectorRepository_DeleteDocumentRecords(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, repos.Vectors.AddVectorRecords(ctx, newTestRecord("doc-a", i, "a text", []float32{1, 0})))
	}
	require.NoError(t, repos.Vectors.AddVectorRecords(ctx,
		newTestRecord("doc-ab", 0, "ab text", []float32{0, 1}),
		newTestRecord("doc-b", 0, "b text", []float32{0, 1}),
	))

	deleted, err := repos.Vectors.DeleteDocumentRecords(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, 5, deleted)

	count, err := repos.Vectors.CountDocumentRecords(ctx, "doc-a")
	require.NoError(t, err)
	assert.Zero(t, count)

	// Documents sharing an id prefix are untouched
	count, err = repos.Vectors.CountDocumentRecords(ctx, "doc-ab")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repos.Vectors.CountDocumentRecords(ctx, "doc-b")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	t.Run("second delete is a no-op", func(t *testing.T) {
		deleted, err := repos.Vectors.DeleteDocumentRecords(ctx, "doc-a")
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})
}

func TestVectorRepository_DeleteAcrossBatches(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	total := deleteBatchSize + 10
	records := make([]*core.VectorRecord, 0, total)
	for i := range total {
		records = append(records, newTestRecord("big", i, "chunk", []float32{1}))
	}
	require.NoError(t, repos.Vectors.AddVectorRecords(ctx, records...))

	deleted, err := repos.Vectors.DeleteDocumentRecords(ctx, "big")
	require.NoError(t, err)
	assert.Equal(t, total, deleted)
}

func TestVectorRepository_FindSimilar(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	require.NoError(t, repos.Vectors.AddVectorRecords(ctx,
		newTestRecord("doc-a", 0, "close", []float32{0.9, 0.1}),
		newTestRecord("doc-a", 1, "exact", []float32{1, 0}),
		newTestRecord("doc-b", 0, "far", []float32{0, 1}),
		newTestRecord("doc-b", 1, "opposite", []float32{-1, 0}),
	))

	tests := []struct {
		name      string
		limit     int
		wantTexts []string
	}{
		{"limit one", 1, []string{"exact"}},
		{"limit two", 2, []string{"exact", "close"}},
		{"unlimited", -1, []string{"exact", "close", "far", "opposite"}},
		{"limit beyond size", 10, []string{"exact", "close", "far", "opposite"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := repos.Vectors.FindSimilar(ctx, []float32{1, 0}, tt.limit)
			require.NoError(t, err)
			texts := make([]string, len(results))
			for i, r := range results {
				texts[i] = r.Record.Text
			}
			assert.Equal(t, tt.wantTexts, texts)
		})
	}

	t.Run("ties keep chunk order", func(t *testing.T) {
		results, err := repos.Vectors.FindSimilar(ctx, []float32{0, 0}, 3)
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.Equal(t, "close", results[0].Record.Text)
		assert.Equal(t, "exact", results[1].Record.Text)
		assert.Equal(t, "far", results[2].Record.Text)
	})

	t.Run("scores descend", func(t *testing.T) {
		results, err := repos.Vectors.FindSimilar(ctx, []float32{1, 0}, -1)
		require.NoError(t, err)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
		}
	})
}

func TestVectorRepository_CollectionIsolation(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	crops, err := NewVectorRepository(backend, "crops")
	require.NoError(t, err)
	soils, err := NewVectorRepository(backend, "soils")
	require.NoError(t, err)

	require.NoError(t, crops.AddVectorRecords(ctx, newTestRecord("doc", 0, "wheat", []float32{1})))

	results, err := soils.FindSimilar(ctx, []float32{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = crops.FindSimilar(ctx, []float32{1}, 5)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestVectorRepository_FindSimilarSkipsOtherDimensions(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	require.NoError(t, repos.Vectors.AddVectorRecords(ctx,
		newTestRecord("old", 0, "wide", []float32{1, 1, 1}),
		newTestRecord("new", 0, "narrow", []float32{0.5, 0.5}),
	))

	results, err := repos.Vectors.FindSimilar(ctx, []float32{1, 0}, -1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "narrow", results[0].Record.Text)
}

func TestVectorRepository_ListRecordDocuments(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	ids, err := repos.Vectors.ListRecordDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, repos.Vectors.AddVectorRecords(ctx,
		newTestRecord("doc-b", 0, "b0", []float32{1}),
		newTestRecord("doc-a", 0, "a0", []float32{1}),
		newTestRecord("doc-a", 1, "a1", []float32{1}),
		newTestRecord("doc-a", 300, "a300", []float32{1}),
	))

	ids, err = repos.Vectors.ListRecordDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-a", "doc-b"}, ids)

	_, err = repos.Vectors.DeleteDocumentRecords(ctx, "doc-a")
	require.NoError(t, err)
	ids, err = repos.Vectors.ListRecordDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-b"}, ids)
}

func TestVectorRepository_RejectsSeparatorInDocumentID(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	require.NoError(t, repos.Vectors.AddVectorRecords(ctx, newTestRecord("a", 0, "kept", []float32{1})))
	err := repos.Vectors.AddVectorRecords(ctx, newTestRecord("a:b", 0, "rejected", []float32{1}))
	assert.ErrorIs(t, err, core.ErrInvalidVectorRecord)

	n, err := repos.Vectors.CountDocumentRecords(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
