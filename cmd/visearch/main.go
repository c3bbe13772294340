package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/velora/visearch/internal/config"
	"github.com/velora/visearch/internal/db"
	dbRedis "github.com/velora/visearch/internal/db/redis"
	"github.com/velora/visearch/internal/domain"
	"github.com/velora/visearch/internal/domain/catalog"
	"github.com/velora/visearch/internal/domain/match"
	logpkg "github.com/velora/visearch/internal/logger"
	"github.com/velora/visearch/internal/metrics"
	"github.com/velora/visearch/internal/repository/featcache"
	chiTransport "github.com/velora/visearch/internal/transport/chi"
	"github.com/velora/visearch/internal/transport/featureapi"
	openaiExt "github.com/velora/visearch/internal/transport/openai"
	"github.com/velora/visearch/internal/transport/subprocess"
	extractionuc "github.com/velora/visearch/internal/usecase/extraction"
	healthuc "github.com/velora/visearch/internal/usecase/health"
	searchuc "github.com/velora/visearch/internal/usecase/search"
	"github.com/velora/visearch/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting visearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("extractor_driver", cfg.Extractor.Driver),
		zap.String("catalog_path", cfg.Catalog.Path),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	// Register metrics explicitly (no init())
	metrics.Register()

	// Catalog is loaded once and frozen; a broken file is fatal.
	cat, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		logger.Fatal("Failed to load catalog", zap.String("path", cfg.Catalog.Path), zap.Error(err))
	}
	for _, id := range cat.Unscoreable() {
		logger.Warn("Catalog entry has no features and will never match", zap.String("id", id))
	}
	unscoreable := len(cat.Unscoreable())
	metrics.CatalogEntries.WithLabelValues("scoreable").Set(float64(cat.Len() - unscoreable))
	metrics.CatalogEntries.WithLabelValues("unscoreable").Set(float64(unscoreable))
	logger.Info("Catalog loaded",
		zap.Int("entries", cat.Len()),
		zap.Int("unscoreable", unscoreable),
		zap.Int("dimensions", cat.Dimensions()),
	)

	// Optional feature cache store
	ctx := context.Background()
	var store db.Store
	if cfg.Cache.Enabled {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Cache.Addrs,
			Password: cfg.Cache.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create cache store", zap.Error(err))
		}
		defer store.Close()

		if err := store.WaitForReady(ctx, time.Duration(cfg.Cache.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Cache not ready", zap.Error(err))
		}
		logger.Info("Connected to feature cache", zap.String("driver", cfg.Cache.Driver))
	}

	extractor, err := buildExtractor(cfg, store, logger)
	if err != nil {
		logger.Fatal("Failed to create feature extractor", zap.Error(err))
	}

	matcher := match.New(logger).WithMetrics(metrics.InvalidVectorsTotal, metrics.DimensionMismatchTotal)
	searchSvc := searchuc.New(extractor, matcher, cat, cfg.Match(), logger)

	// Pass nil interface (not typed nil pointer!) when the cache is off.
	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}
	healthSvc := healthuc.New(cat, newExtractorHealthChecker(extractor), cachePinger)

	server := chiTransport.NewServer(searchSvc, healthSvc, cfg.MaxUploadBytes(), logger)
	handler := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		AllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// extractorHealthChecker adapts domain.Extractor to health.ExtractorChecker.
type extractorHealthChecker struct {
	extractor domain.Extractor
}

func newExtractorHealthChecker(extractor domain.Extractor) *extractorHealthChecker {
	return &extractorHealthChecker{extractor: extractor}
}

func (h *extractorHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.extractor.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("extractor health check: %w", err)
		}
	}
	return nil
}

// buildExtractor assembles the decorator chain: driver -> Retrying -> Cached -> Instrumented.
func buildExtractor(cfg config.Config, store db.Store, logger *zap.Logger) (domain.Extractor, error) {
	ec := cfg.Extractor
	timeout := time.Duration(ec.TimeoutSec) * time.Second

	var base domain.Extractor
	switch ec.Driver {
	case config.DriverFeatureAPI:
		base = featureapi.New(featureapi.Config{
			BaseURL:     ec.BaseURL,
			Model:       ec.Model,
			Timeout:     timeout,
			HealthCheck: true,
		})
	case config.DriverSubprocess:
		if cfg.Uploads.Dir != "" {
			if err := os.MkdirAll(cfg.Uploads.Dir, 0o750); err != nil {
				return nil, fmt.Errorf("create uploads dir: %w", err)
			}
		}
		base = subprocess.New(subprocess.Config{
			Python: ec.Python,
			Script: ec.Script,
			Dir:    cfg.Uploads.Dir,
			Model:  ec.Model,
			Logger: logger,
		})
	case config.DriverOpenAI:
		base = openaiExt.NewExtractor(&openaiExt.Config{
			APIKey:     ec.APIKey,
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
			Logger:     logger,
		})
	default:
		return nil, fmt.Errorf("unknown extractor driver %q", ec.Driver)
	}

	var extractor domain.Extractor = base
	if ec.MaxAttempts > 1 {
		extractor = extractionuc.NewRetrying(
			extractor, ec.Driver, ec.MaxAttempts, time.Duration(ec.RetryBaseMs)*time.Millisecond, logger,
		)
	}

	if store != nil {
		extractor = featcache.New(
			extractor, store, ec.Driver+":"+ec.Model,
			time.Duration(cfg.Cache.TTLSec)*time.Second,
			metrics.FeatureCacheTotal, logger,
		)
	}

	return extractionuc.NewInstrumented(extractor, ec.Driver, logger), nil
}
