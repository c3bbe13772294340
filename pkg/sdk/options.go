package visearch

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	catalogPath  string
	catalogItems []Item
	hasItems     bool

	extractor  Extractor
	featureAPI string

	cacheAddrs    []string
	cachePassword string
	cacheTTL      time.Duration

	threshold      *float64
	topK           int
	extractTimeout time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithCatalogFile loads the catalog from a .json, .yaml or .yml file.
func WithCatalogFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.catalogPath = path
	})
}

// WithCatalog uses an in-memory catalog. Item order is the tie-break order.
func WithCatalog(items []Item) Option {
	return optionFunc(func(c *clientConfig) {
		c.catalogItems = items
		c.hasItems = true
	})
}

// WithExtractor sets a custom feature extractor.
func WithExtractor(e Extractor) Option {
	return optionFunc(func(c *clientConfig) {
		c.extractor = e
	})
}

// WithFeatureAPI uses the HTTP feature extraction service at baseURL
// (POST {baseURL}/extract). Ignored when WithExtractor is also given.
func WithFeatureAPI(baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.featureAPI = baseURL
	})
}

// WithFeatureCache caches extracted vectors in Valkey or Redis, keyed by
// the SHA-256 of the image bytes.
func WithFeatureCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddrs = []string{addr}
		c.cachePassword = password
		c.cacheTTL = ttl
	})
}

// WithThreshold sets the minimum cosine similarity in [0, 1]. Default: 0.7.
func WithThreshold(t float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.threshold = &t
	})
}

// WithTopK sets the maximum number of results. Default: 5.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithExtractTimeout bounds each extraction call. Default: 30s.
func WithExtractTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.extractTimeout = d
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
