package visearch

import (
	"context"

	"github.com/shopspring/decimal"
)

// Extractor turns image bytes into a feature vector.
type Extractor interface {
	Extract(ctx context.Context, img Image) ([]float32, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, img Image) ([]float32, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, img Image) ([]float32, error) { return f(ctx, img) }

// Image is an uploaded image.
type Image struct {
	Data        []byte
	Filename    string
	ContentType string
}

// Item is a catalog entry. Features nil means the item is never scored.
type Item struct {
	ID          string
	Name        string
	Category    string
	Price       decimal.Decimal
	Description string
	Image       string
	Features    []float32
}

// Result is a ranked match. Similarity is cosine similarity in percent.
type Result struct {
	ID          string
	Name        string
	Category    string
	Price       decimal.Decimal
	Description string
	Image       string
	Similarity  float64
}
