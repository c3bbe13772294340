// Package match ranks catalog entries against a query feature vector.
package match

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/velora/visearch/internal/domain/catalog"
	"github.com/velora/visearch/internal/domain/vector"
)

// Scored is a catalog entry with its similarity percentage for one request.
type Scored struct {
	catalog.Entry
	Similarity float64 // cosine * 100
}

// Matcher scores, filters and ranks catalog entries. It keeps no per-request
// state and may be shared by concurrent searches.
type Matcher struct {
	logger         *zap.Logger
	invalidVectors prometheus.Counter
	dimMismatches  prometheus.Counter
}

// New creates a Matcher. A nil logger discards output.
func New(logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{logger: logger}
}

// WithMetrics attaches counters for invalid comparisons and query/catalog
// dimension mismatches. Either may be nil.
func (m *Matcher) WithMetrics(invalidVectors, dimMismatches prometheus.Counter) *Matcher {
	m.invalidVectors = invalidVectors
	m.dimMismatches = dimMismatches
	return m
}

// Match returns at most req.TopK() entries whose similarity is at least
// req.Threshold()*100, best first. Equal scores keep catalog order.
// Entries without features are never scored. Comparisons that fail
// (length mismatch, zero norm) count as similarity 0 and do not abort the pass.
func (m *Matcher) Match(req Request, cat *catalog.Catalog) []Scored {
	if cat == nil || cat.Len() == 0 {
		return []Scored{}
	}

	query := req.Query()
	if dims := cat.Dimensions(); dims > 0 && dims != len(query) {
		m.logger.Warn("Query dimensionality differs from catalog",
			zap.Int("query_dims", len(query)),
			zap.Int("catalog_dims", dims),
		)
		inc(m.dimMismatches, 1)
	}

	cutoff := req.Threshold() * 100
	entries := cat.Entries()
	kept := make([]Scored, 0, min(len(entries), req.TopK()*2))
	invalid := 0

	for i := range entries {
		e := &entries[i]
		if !e.Scoreable() {
			continue
		}

		cos, err := vector.Cosine(query, e.Features())
		if err != nil {
			invalid++
			m.logger.Debug("Entry not comparable", zap.String("id", e.ID()), zap.Error(err))
		}

		sim := cos * 100
		m.logger.Debug("Entry scored", zap.String("id", e.ID()), zap.Float64("similarity", sim))

		if sim >= cutoff {
			kept = append(kept, Scored{Entry: *e, Similarity: sim})
		}
	}

	if invalid > 0 {
		m.logger.Warn("Invalid feature vectors scored as zero", zap.Int("count", invalid))
		inc(m.invalidVectors, invalid)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Similarity > kept[j].Similarity
	})

	if len(kept) > req.TopK() {
		kept = kept[:req.TopK()]
	}
	return kept
}

func inc(c prometheus.Counter, n int) {
	if c != nil {
		c.Add(float64(n))
	}
}
