package reindex

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/furrow/ai"
	"github.com/poiesic/furrow/core"
	"github.com/poiesic/furrow/vectorstore"
)

// BatchEmbedder computes fresh vectors for vector records.
type BatchEmbedder struct {
	embedder       ai.Embedder
	batchSize      int
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchEmbedder creates a new batch embedder.
// maxRetries: maximum number of attempts per batch
// retryBaseDelay: base delay for exponential backoff
func NewBatchEmbedder(embedder ai.Embedder, batchSize, maxRetries int, retryBaseDelay time.Duration) *BatchEmbedder {
	return &BatchEmbedder{
		embedder:       embedder,
		batchSize:      max(batchSize, 1),
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Embed returns copies of records carrying normalized vectors from the
// embedder, in the same order. The input records are not modified.
// onBatch, if set, is called after each batch with its size.
func (b *BatchEmbedder) Embed(ctx context.Context, records []*core.VectorRecord, onBatch func(n int)) ([]*core.VectorRecord, error) {
	out := make([]*core.VectorRecord, 0, len(records))
	dim := 0

	for start := 0; start < len(records); start += b.batchSize {
		batch := records[start:min(start+b.batchSize, len(records))]
		texts := make([]string, len(batch))
		for i, record := range batch {
			texts[i] = record.Text
		}

		var vectors [][]float32
		err := RetryWithBackoff(ctx, func() error {
			var err error
			vectors, err = b.embedder.EmbedTexts(ctx, texts)
			if err != nil {
				return err
			}
			if len(vectors) != len(texts) {
				return Permanent(fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(vectors)))
			}
			return nil
		}, b.maxRetries, b.retryBaseDelay)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}

		for i, record := range batch {
			vector := vectors[i]
			if len(vector) == 0 {
				return nil, fmt.Errorf("%w for chunk %d", ai.ErrEmptyEmbedding, record.Index)
			}
			if dim == 0 {
				dim = len(vector)
			} else if len(vector) != dim {
				return nil, fmt.Errorf("%w: got %d, expected %d", core.ErrDimensionMismatch, len(vector), dim)
			}

			updated := *record
			updated.Vector = vectorstore.NormalizeVector(vector)
			out = append(out, &updated)
		}
		if onBatch != nil {
			onBatch(len(batch))
		}
	}
	return out, nil
}
