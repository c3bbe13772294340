// Package extraction holds decorators around domain.Extractor that add
// observability and retries without touching the transport drivers.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/velora/visearch/internal/domain"
	"github.com/velora/visearch/internal/metrics"
)

// Instrumented wraps an Extractor with request/duration/error metrics and logging.
type Instrumented struct {
	inner  domain.Extractor
	driver string
	logger *zap.Logger

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	errs     *prometheus.CounterVec
}

// NewInstrumented wraps an extractor. driver labels every metric sample.
func NewInstrumented(inner domain.Extractor, driver string, logger *zap.Logger) *Instrumented {
	return &Instrumented{
		inner:    inner,
		driver:   driver,
		logger:   logger,
		requests: metrics.ExtractionRequestsTotal,
		duration: metrics.ExtractionRequestDuration,
		errs:     metrics.ExtractionErrorsTotal,
	}
}

// Extract delegates to the inner extractor and records the outcome.
func (p *Instrumented) Extract(ctx context.Context, img domain.Image) (domain.Features, error) {
	start := time.Now()

	res, err := p.inner.Extract(ctx, img)

	elapsed := time.Since(start)
	p.duration.WithLabelValues(p.driver).Observe(elapsed.Seconds())

	if err != nil {
		p.requests.WithLabelValues(p.driver, "error").Inc()
		p.errs.WithLabelValues(p.driver, errorType(err)).Inc()
		p.logger.Error("Feature extraction failed",
			zap.String("driver", p.driver),
			zap.String("filename", img.Filename),
			zap.Int("bytes", len(img.Data)),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return domain.Features{}, fmt.Errorf("extract: %w", err)
	}

	p.requests.WithLabelValues(p.driver, "success").Inc()
	p.logger.Debug("Feature extraction completed",
		zap.String("driver", p.driver),
		zap.String("model", res.Model),
		zap.Bool("cached", res.Cached),
		zap.Int("dimensions", len(res.Vector)),
		zap.Duration("duration", elapsed),
	)

	return res, nil
}

// HealthCheck delegates to the inner extractor when it supports health checks.
func (p *Instrumented) HealthCheck(ctx context.Context) error {
	if hc, ok := p.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "upstream"
	}
}
