package search

import (
	"context"

	"github.com/velora/visearch/internal/domain"
	"github.com/velora/visearch/internal/domain/catalog"
	"github.com/velora/visearch/internal/domain/match"
)

// Extractor turns an uploaded image into a feature vector.
type Extractor interface {
	Extract(ctx context.Context, img domain.Image) (domain.Features, error)
}

// Matcher ranks catalog entries against a query vector.
type Matcher interface {
	Match(req match.Request, cat *catalog.Catalog) []match.Scored
}
