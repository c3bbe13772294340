package match

import (
	"fmt"
	"math"

	"github.com/velora/visearch/internal/domain"
)

// DefaultTopK is used when a request leaves topK at zero.
const DefaultTopK = 5

// Request is a single ranking job: a query vector plus cut-off settings.
type Request struct {
	query     []float32
	threshold float64
	topK      int
}

// NewRequest validates and creates a match request.
// threshold must lie in [0, 1]; topK must be positive, or zero for DefaultTopK.
func NewRequest(query []float32, threshold float64, topK int) (Request, error) {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return Request{}, fmt.Errorf("%w: threshold must be within [0, 1], got %v", domain.ErrInvalidMatchRequest, threshold)
	}
	if topK < 0 {
		return Request{}, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrInvalidMatchRequest, topK)
	}
	if topK == 0 {
		topK = DefaultTopK
	}
	return Request{query: query, threshold: threshold, topK: topK}, nil
}

// Query returns the query feature vector.
func (r *Request) Query() []float32 { return r.query }

// Threshold returns the minimum cosine similarity in [0, 1].
func (r *Request) Threshold() float64 { return r.threshold }

// TopK returns the maximum number of results.
func (r *Request) TopK() int { return r.topK }
