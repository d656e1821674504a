package utils

import "math"

// NormalizeL2 scales x in place to unit L2 norm so that inner product
// equals cosine similarity. A zero vector is left as is.
func NormalizeL2(x []float32) {
	var sum float32
	for _, v := range x {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range x {
		x[i] *= inv
	}
}

// Dot returns the inner product of a and b. The caller guarantees equal
// lengths; over normalized vectors this is the cosine similarity.
func Dot(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}
