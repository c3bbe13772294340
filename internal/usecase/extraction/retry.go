package extraction

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/velora/visearch/internal/domain"
	"github.com/velora/visearch/internal/metrics"
)

const (
	defaultBaseDelay = 200 * time.Millisecond
	defaultMaxDelay  = 5 * time.Second
	jitterFactor     = 0.5
)

// Retrying re-invokes the inner extractor on failure with exponential backoff.
// Context errors are never retried.
type Retrying struct {
	inner       domain.Extractor
	driver      string
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	retries     *prometheus.CounterVec
	logger      *zap.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewRetrying wraps inner. maxAttempts < 1 is treated as 1 (no retries).
func NewRetrying(
	inner domain.Extractor, driver string, maxAttempts int, baseDelay time.Duration, logger *zap.Logger,
) *Retrying {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}
	return &Retrying{
		inner:       inner,
		driver:      driver,
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    defaultMaxDelay,
		retries:     metrics.ExtractionRetriesTotal,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

// Extract tries the inner extractor up to maxAttempts times.
func (r *Retrying) Extract(ctx context.Context, img domain.Image) (domain.Features, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			r.retries.WithLabelValues(r.driver).Inc()
		}

		res, err := r.inner.Extract(ctx, img)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if isContextErr(err) || ctx.Err() != nil || attempt == r.maxAttempts-1 {
			break
		}

		delay := backoff(r.baseDelay, r.maxDelay, attempt)
		r.logger.Warn("Feature extraction failed, retrying",
			zap.String("driver", r.driver),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := r.sleep(ctx, delay); err != nil {
			return domain.Features{}, fmt.Errorf("retry wait: %w", err)
		}
	}

	if r.maxAttempts > 1 {
		return domain.Features{}, fmt.Errorf("after %d attempts: %w", r.maxAttempts, lastErr)
	}
	return domain.Features{}, lastErr
}

// HealthCheck delegates to the inner extractor when it supports health checks.
func (r *Retrying) HealthCheck(ctx context.Context) error {
	if hc, ok := r.inner.(domain.HealthChecker); ok {
		return hc.HealthCheck(ctx) //nolint:wrapcheck // transparent decorator
	}
	return nil
}

// backoff returns base*2^attempt capped at limit, plus up to 50% jitter.
func backoff(base, limit time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt && d < limit; i++ {
		d *= 2
	}
	if d > limit {
		d = limit
	}
	return d + time.Duration(rand.Float64()*jitterFactor*float64(d)) //nolint:gosec // jitter only
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
