// Package vector: distance and normalization helpers.
package vector

import "math"

// SquaredDistance returns the squared Euclidean distance between two vectors
// of equal length.
func SquaredDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Normalize scales v in place to unit L2 length. A zero vector is left
// unchanged: it has no direction, and dividing by its zero norm would poison
// the index with NaNs.
func Normalize(v []float32) {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}

// Similarity converts a squared distance to a relevance score in (0, 1],
// monotonically decreasing as distance grows.
func Similarity(distance float64) float64 {
	return 1 / (1 + distance)
}
