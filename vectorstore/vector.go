package vectorstore

import "math"

// NormalizeVector returns v scaled to unit length, so the dot product of two
// normalized vectors is their cosine similarity. The input is not modified.
// Empty input is returned as is and a zero vector stays zero.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}
	out := make([]float32, len(v))
	norm := l2Norm(v)
	if norm == 0 {
		return out
	}
	scale := 1 / norm
	for i, x := range v {
		out[i] = float32(float64(x) * scale)
	}
	return out
}

// l2Norm accumulates in float64 to keep precision on long vectors.
func l2Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
