package health

import "context"

// CachePinger checks feature cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// ExtractorChecker checks feature extractor availability.
type ExtractorChecker interface {
	HealthCheck(ctx context.Context) error
}

// CatalogStats exposes the catalog counts the health report needs.
type CatalogStats interface {
	Len() int
	Unscoreable() []string
}
