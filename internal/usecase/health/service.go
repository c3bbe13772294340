package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Catalog CatalogReport
}

// CatalogReport summarises the loaded catalog.
type CatalogReport struct {
	Entries     int
	Unscoreable int
}

// Service coordinates health checks.
type Service struct {
	catalog   CatalogStats
	extractor ExtractorChecker
	cache     CachePinger
}

// New creates a Service. extractor and cache can be nil.
func New(catalog CatalogStats, extractor ExtractorChecker, cache CachePinger) *Service {
	return &Service{catalog: catalog, extractor: extractor, cache: cache}
}

// Check runs health checks against all components.
// A catalog with no scoreable entries cannot answer any search and is Unhealthy.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	var rep CatalogReport

	if s.catalog != nil {
		rep = CatalogReport{Entries: s.catalog.Len(), Unscoreable: len(s.catalog.Unscoreable())}
	}
	if rep.Entries > rep.Unscoreable {
		checks["catalog"] = CheckOK
	} else {
		checks["catalog"] = CheckError
	}

	if s.extractor != nil {
		if err := s.extractor.HealthCheck(ctx); err != nil {
			checks["extractor"] = CheckError
		} else {
			checks["extractor"] = CheckOK
		}
	}

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			checks["cache"] = CheckError
		} else {
			checks["cache"] = CheckOK
		}
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks["catalog"] == CheckError {
		status = Unhealthy
	}

	return Report{Status: status, Checks: checks, Catalog: rep}
}
