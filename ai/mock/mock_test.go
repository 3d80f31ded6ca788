package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/poiesic/furrow/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func TestBagOfWords(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, BagOfWords("nitrogen uptake", 32), BagOfWords("nitrogen uptake", 32))
	})

	t.Run("unit length", func(t *testing.T) {
		v := BagOfWords("wheat yields rose in 2023", DefaultDimension)
		var sum float64
		for _, x := range v {
			sum += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
	})

	t.Run("case and punctuation insensitive", func(t *testing.T) {
		assert.Equal(t, BagOfWords("Soil, pH!", 16), BagOfWords("soil ph", 16))
	})

	t.Run("shared words are closer", func(t *testing.T) {
		query := BagOfWords("wheat rust disease", DefaultDimension)
		related := BagOfWords("rust disease spreads through wheat fields", DefaultDimension)
		unrelated := BagOfWords("irrigation pump maintenance schedule", DefaultDimension)
		assert.Greater(t, dot(query, related), dot(query, unrelated))
	})

	t.Run("empty text is zero vector", func(t *testing.T) {
		v := BagOfWords("", 8)
		assert.Len(t, v, 8)
		assert.Equal(t, make([]float32, 8), v)
	})
}

func TestMockEmbedder(t *testing.T) {
	ctx := context.Background()
	m := NewMockEmbedder()

	v, err := m.EmbedText(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, v, DefaultDimension)

	vs, err := m.EmbedTexts(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vs, 2)
	assert.Equal(t, 2, m.CallCount())

	m.Dimension = 8
	v, err = m.EmbedText(ctx, "hello")
	require.NoError(t, err)
	assert.Len(t, v, 8)

	boom := errors.New("boom")
	m.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, boom
	}
	_, err = m.EmbedTexts(ctx, []string{"a"})
	assert.ErrorIs(t, err, boom)

	m.Reset()
	assert.Zero(t, m.CallCount())
	assert.Nil(t, m.EmbedTextsFunc)
}

func TestMockCompleter(t *testing.T) {
	ctx := context.Background()
	m := NewMockCompleter("wheat needs nitrogen")

	var chunks []string
	err := m.Stream(ctx, "the prompt", func(ctx context.Context, chunk []byte) error {
		chunks = append(chunks, string(chunk))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"wheat ", "needs ", "nitrogen"}, chunks)
	assert.Equal(t, 1, m.CallCount())
	assert.Equal(t, "the prompt", m.LastPrompt())

	t.Run("callback error stops stream", func(t *testing.T) {
		stop := errors.New("stop")
		calls := 0
		err := m.Stream(ctx, "p", func(ctx context.Context, chunk []byte) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})

	t.Run("reset", func(t *testing.T) {
		m.Reset()
		assert.Zero(t, m.CallCount())
		assert.Empty(t, m.LastPrompt())
	})
}

func TestMockProvider(t *testing.T) {
	provider := NewMockProvider()
	defer provider.Close()

	mp, ok := provider.(*MockProvider)
	require.True(t, ok)
	assert.Same(t, mp.GetMockEmbedder(), provider.Embedder())
	assert.Same(t, mp.GetMockCompleter(), provider.Completer())

	var _ ai.AIProvider = NewMockProviderWithServices(NewMockEmbedder(), NewMockCompleter("x"))
}
