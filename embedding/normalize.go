package embedding

import "math"

// Normalize L2-normalizes v, returning a new slice. The all-zero vector
// normalizes to itself. Applied identically regardless of which path
// produced v so results stay reproducible.
func Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		out := make([]float32, len(v))
		copy(out, v)
		return out
	}

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
