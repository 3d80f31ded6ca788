package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/furrow/core"
	"github.com/poiesic/furrow/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRepository(t *testing.T) {
	repos := newTestRepositories(t)
	ctx := context.Background()

	docs := []*core.Document{
		{Id: "id-2", Name: "wheat.pdf", ChunkCount: 4, CreatedAt: time.Now().UTC()},
		{Id: "id-1", Name: "barley.pdf", ChunkCount: 2, CreatedAt: time.Now().UTC()},
		{Id: "id-0", Name: "wheat.pdf", ChunkCount: 1, CreatedAt: time.Now().UTC()},
	}
	for _, doc := range docs {
		require.NoError(t, repos.Documents.AddDocument(ctx, doc))
	}

	t.Run("get", func(t *testing.T) {
		doc, err := repos.Documents.GetDocument(ctx, "id-1")
		require.NoError(t, err)
		assert.Equal(t, "barley.pdf", doc.Name)
		assert.Equal(t, 2, doc.ChunkCount)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repos.Documents.GetDocument(ctx, "nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("list ordered by name then id", func(t *testing.T) {
		list, err := repos.Documents.ListDocuments(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "id-1", list[0].Id)
		assert.Equal(t, "id-0", list[1].Id)
		assert.Equal(t, "id-2", list[2].Id)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repos.Documents.DeleteDocument(ctx, "id-0"))
		_, err := repos.Documents.GetDocument(ctx, "id-0")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		err = repos.Documents.DeleteDocument(ctx, "id-0")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("invalid document", func(t *testing.T) {
		err := repos.Documents.AddDocument(ctx, &core.Document{Name: "x.pdf"})
		assert.ErrorIs(t, err, core.ErrInvalidDocument)
	})
}

func TestDocumentRepository_EmptyList(t *testing.T) {
	repos := newTestRepositories(t)
	list, err := repos.Documents.ListDocuments(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
