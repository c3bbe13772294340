package visearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/velora/visearch/internal/db"
	dbRedis "github.com/velora/visearch/internal/db/redis"
	"github.com/velora/visearch/internal/domain"
	"github.com/velora/visearch/internal/domain/catalog"
	"github.com/velora/visearch/internal/domain/match"
	"github.com/velora/visearch/internal/repository/featcache"
	"github.com/velora/visearch/internal/transport/featureapi"
	searchuc "github.com/velora/visearch/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultCacheTTL         = 24 * time.Hour
)

// searchUseCase is the internal search contract, swapped out in tests.
type searchUseCase interface {
	Search(ctx context.Context, img domain.Image) ([]match.Scored, error)
	Match(query []float32, threshold float64, topK int) ([]match.Scored, error)
	Catalog() *catalog.Catalog
}

// Client is the visearch SDK entry point.
type Client struct {
	store     db.Store
	searchSvc searchUseCase
	obs       *observer
}

// New creates a Client. A catalog (WithCatalogFile or WithCatalog) is required.
// Search needs an extractor (WithExtractor or WithFeatureAPI); Match does not.
// The provided context is used for the cache readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}

	var store db.Store
	if len(cfg.cacheAddrs) > 0 {
		s, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.cacheAddrs, Password: cfg.cachePassword})
		if err != nil {
			return nil, fmt.Errorf("visearch: create cache store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("visearch: cache not ready: %w", err)
		}
		store = s
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	return wireClient(cat, store, cfg, obs), nil
}

func loadCatalog(cfg *clientConfig) (*catalog.Catalog, error) {
	switch {
	case cfg.hasItems:
		entries := make([]catalog.Entry, len(cfg.catalogItems))
		for i, it := range cfg.catalogItems {
			entries[i] = catalog.NewEntry(it.ID, catalog.Metadata{
				Name:        it.Name,
				Category:    it.Category,
				Price:       it.Price,
				Description: it.Description,
				Image:       it.Image,
			}, it.Features)
		}
		cat, err := catalog.New(entries)
		if err != nil {
			return nil, fmt.Errorf("visearch: %w", err)
		}
		return cat, nil
	case cfg.catalogPath != "":
		cat, err := catalog.LoadFile(cfg.catalogPath)
		if err != nil {
			return nil, fmt.Errorf("visearch: %w", err)
		}
		return cat, nil
	default:
		return nil, errors.New("visearch: catalog required (use WithCatalogFile or WithCatalog)")
	}
}

func wireClient(cat *catalog.Catalog, store db.Store, cfg *clientConfig, obs *observer) *Client {
	var ext domain.Extractor = noopExtractor{}
	namespace := "custom"
	switch {
	case cfg.extractor != nil:
		ext = &extractorAdapter{inner: cfg.extractor}
	case cfg.featureAPI != "":
		ext = featureapi.New(featureapi.Config{BaseURL: cfg.featureAPI})
		namespace = "featureapi"
	}

	if store != nil {
		ttl := cfg.cacheTTL
		if ttl <= 0 {
			ttl = defaultCacheTTL
		}
		ext = featcache.New(ext, store, namespace, ttl, nil, zap.NewNop())
	}

	mc := domain.DefaultMatchConfig()
	if cfg.threshold != nil {
		mc.Threshold = *cfg.threshold
	}
	if cfg.topK > 0 {
		mc.TopK = cfg.topK
	}
	if cfg.extractTimeout > 0 {
		mc.ExtractTimeout = cfg.extractTimeout
	}

	svc := searchuc.New(ext, match.New(zap.NewNop()), cat, mc, zap.NewNop())
	return &Client{store: store, searchSvc: svc, obs: obs}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Search extracts features from the image and returns the best matches.
func (c *Client) Search(ctx context.Context, data []byte, filename string) (res []Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, len(res), err) }()

	scored, err := c.searchSvc.Search(ctx, domain.Image{Data: data, Filename: filename})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return resultsFromScored(scored), nil
}

// Match ranks the catalog against a vector using the configured threshold and topK.
func (c *Client) Match(vector []float32) (res []Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("match", start, len(res), err) }()

	scored, err := c.searchSvc.Match(vector, -1, 0)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	return resultsFromScored(scored), nil
}

// Item returns a catalog entry by id.
func (c *Client) Item(id string) (Item, error) {
	e, err := c.searchSvc.Catalog().Get(id)
	if err != nil {
		return Item{}, fmt.Errorf("item: %w", err)
	}
	return itemFromEntry(&e), nil
}

// Len returns the number of catalog entries.
func (c *Client) Len() int { return c.searchSvc.Catalog().Len() }

func resultsFromScored(scored []match.Scored) []Result {
	out := make([]Result, len(scored))
	for i := range scored {
		e := &scored[i].Entry
		out[i] = Result{
			ID:          e.ID(),
			Name:        e.Name(),
			Category:    e.Category(),
			Price:       e.Price(),
			Description: e.Description(),
			Image:       e.Image(),
			Similarity:  scored[i].Similarity,
		}
	}
	return out
}

func itemFromEntry(e *catalog.Entry) Item {
	return Item{
		ID:          e.ID(),
		Name:        e.Name(),
		Category:    e.Category(),
		Price:       e.Price(),
		Description: e.Description(),
		Image:       e.Image(),
		Features:    e.Features(),
	}
}
