package vector

import "math"

// Normalize returns a unit-length copy of v. Zero vectors are copied
// unchanged to avoid dividing by zero; their similarity against anything
// stays zero.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		copy(out, v)
		return out
	}

	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Dot returns the inner product of two equal-length vectors. For normalized
// vectors this is their cosine similarity.
func Dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}
