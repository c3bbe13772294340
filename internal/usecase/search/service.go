package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/velora/visearch/internal/domain"
	"github.com/velora/visearch/internal/domain/catalog"
	"github.com/velora/visearch/internal/domain/match"
	"github.com/velora/visearch/internal/logger"
	"github.com/velora/visearch/internal/metrics"
)

// Outcome labels for the search outcome counter.
const (
	OutcomeOK               = "ok"
	OutcomeNoFile           = "no_file"
	OutcomeExtractionFailed = "extraction_failed"
	OutcomeEmptyFeatures    = "empty_features"
	OutcomeInvalidRequest   = "invalid_request"
)

// Service runs an image search: extract features, then rank the catalog.
type Service struct {
	extractor Extractor
	matcher   Matcher
	catalog   *catalog.Catalog
	cfg       domain.MatchConfig
	logger    *zap.Logger

	results  prometheus.Observer
	outcomes *prometheus.CounterVec
}

// New creates a search service over a frozen catalog.
// Non-positive TopK and ExtractTimeout fall back to domain.DefaultMatchConfig.
// Threshold is taken as given; 0 accepts every comparison.
func New(
	extractor Extractor, matcher Matcher, cat *catalog.Catalog,
	cfg domain.MatchConfig, log *zap.Logger,
) *Service {
	def := domain.DefaultMatchConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = def.ExtractTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		extractor: extractor,
		matcher:   matcher,
		catalog:   cat,
		cfg:       cfg,
		logger:    log,
		results:   metrics.SearchResults,
		outcomes:  metrics.SearchOutcomesTotal,
	}
}

// Catalog returns the catalog the service searches.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Config returns the effective matching configuration.
func (s *Service) Config() domain.MatchConfig { return s.cfg }

// Search extracts features from img and returns the best catalog matches.
func (s *Service) Search(ctx context.Context, img domain.Image) ([]match.Scored, error) {
	start := time.Now()
	log := logger.FromContext(ctx, s.logger).With(zap.String("search_id", IDFromContext(ctx)))

	if len(img.Data) == 0 {
		s.outcomes.WithLabelValues(OutcomeNoFile).Inc()
		log.Info("Search rejected: no file provided")
		return nil, domain.ErrNoFileProvided
	}

	feats, err := s.extract(ctx, img)
	if err != nil {
		outcome := OutcomeExtractionFailed
		if errors.Is(err, domain.ErrEmptyFeatures) {
			outcome = OutcomeEmptyFeatures
		}
		s.outcomes.WithLabelValues(outcome).Inc()
		log.Warn("Search failed",
			zap.String("filename", img.Filename),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	results, err := s.match(feats.Vector, s.cfg.Threshold, s.cfg.TopK)
	if err != nil {
		s.outcomes.WithLabelValues(OutcomeInvalidRequest).Inc()
		return nil, err
	}

	s.outcomes.WithLabelValues(OutcomeOK).Inc()
	s.results.Observe(float64(len(results)))
	log.Info("Search completed",
		zap.String("filename", img.Filename),
		zap.Int("bytes", len(img.Data)),
		zap.Int("dimensions", len(feats.Vector)),
		zap.Bool("cached", feats.Cached),
		zap.Int("results", len(results)),
		zap.Duration("latency", time.Since(start)),
	)
	return results, nil
}

// Match ranks the catalog against a vector the caller already holds.
// threshold < 0 and topK <= 0 select the configured defaults.
func (s *Service) Match(query []float32, threshold float64, topK int) ([]match.Scored, error) {
	if len(query) == 0 {
		return nil, domain.ErrEmptyFeatures
	}
	if threshold < 0 {
		threshold = s.cfg.Threshold
	}
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	return s.match(query, threshold, topK)
}

func (s *Service) extract(ctx context.Context, img domain.Image) (domain.Features, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ExtractTimeout)
	defer cancel()

	feats, err := s.extractor.Extract(ctx, img)
	if err != nil {
		return domain.Features{}, fmt.Errorf("%w: %w", domain.ErrFeatureExtractionFailed, err)
	}
	if len(feats.Vector) == 0 {
		return domain.Features{}, domain.ErrEmptyFeatures
	}
	return feats, nil
}

func (s *Service) match(query []float32, threshold float64, topK int) ([]match.Scored, error) {
	req, err := match.NewRequest(query, threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("build match request: %w", err)
	}
	return s.matcher.Match(req, s.catalog), nil
}
