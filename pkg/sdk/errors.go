package visearch

import "github.com/velora/visearch/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNoFileProvided          = domain.ErrNoFileProvided
	ErrFeatureExtractionFailed = domain.ErrFeatureExtractionFailed
	ErrEmptyFeatures           = domain.ErrEmptyFeatures
	ErrCatalogLoadFailed       = domain.ErrCatalogLoadFailed
	ErrInvalidMatchRequest     = domain.ErrInvalidMatchRequest
	ErrNotFound                = domain.ErrNotFound
)
