// Package vector implements the similarity math used to rank catalog entries.
package vector

import (
	"fmt"
	"math"

	"github.com/velora/visearch/internal/domain"
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
//
// Invalid input never panics: nil, empty or unequal-length vectors and
// zero-norm vectors yield 0 together with an error wrapping
// domain.ErrInvalidVector. Callers that rank many entries treat the error as
// a diagnostic and keep going with the 0 score.
func Cosine(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: empty vector (len %d vs %d)", domain.ErrInvalidVector, len(a), len(b))
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: length mismatch %d vs %d", domain.ErrInvalidVector, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("%w: zero norm", domain.ErrInvalidVector)
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// rounding can push |sim| slightly past 1
	return math.Max(-1, math.Min(1, sim)), nil
}
