package matcher

import "math"

// normEpsilon guards against division by zero on a near-zero-norm vector.
const normEpsilon = 1e-9

// Normalize returns an L2-normalized copy of v. The epsilon in the
// denominator makes this safe for zero vectors.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum) + normEpsilon

	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Cosine computes the cosine similarity between two embeddings. Both inputs
// are normalized defensively regardless of the provider's contract, so the
// similarity reduces to a dot product of unit vectors. Mismatched or empty
// vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	na := Normalize(a)
	nb := Normalize(b)

	var dot float64
	for i := range na {
		dot += float64(na[i]) * float64(nb[i])
	}
	return dot
}
