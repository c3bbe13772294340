package visearch

import (
	"context"
	"errors"

	"github.com/velora/visearch/internal/domain"
)

// extractorAdapter wraps a public Extractor to satisfy domain.Extractor.
type extractorAdapter struct {
	inner Extractor
}

func (a *extractorAdapter) Extract(ctx context.Context, img domain.Image) (domain.Features, error) {
	vec, err := a.inner.Extract(ctx, Image{Data: img.Data, Filename: img.Filename, ContentType: img.ContentType})
	if err != nil {
		return domain.Features{}, err //nolint:wrapcheck // wrapped by the search service
	}
	return domain.Features{Vector: vec}, nil
}

var errNoExtractor = errors.New("no extractor configured (use WithExtractor or WithFeatureAPI)")

// noopExtractor fails every call; Match still works without an extractor.
type noopExtractor struct{}

func (noopExtractor) Extract(context.Context, domain.Image) (domain.Features, error) {
	return domain.Features{}, errNoExtractor
}
