package match

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/velora/visearch/internal/domain/catalog"
)

func mustCatalog(t *testing.T, entries ...catalog.Entry) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(entries)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return c
}

func entry(id string, features []float32) catalog.Entry {
	return catalog.NewEntry(id, catalog.Metadata{Name: "item-" + id}, features)
}

func mustRequest(t *testing.T, query []float32, threshold float64, topK int) Request {
	t.Helper()
	req, err := NewRequest(query, threshold, topK)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return req
}

func ids(results []Scored) []string {
	out := make([]string, len(results))
	for i := range results {
		out[i] = results[i].ID()
	}
	return out
}

func TestMatch_StableTieBreak(t *testing.T) {
	cat := mustCatalog(t,
		entry("1", []float32{1, 0}),
		entry("2", []float32{0, 1}),
		entry("3", []float32{1, 0}),
	)
	m := New(zap.NewNop())

	results := m.Match(mustRequest(t, []float32{1, 0}, 0.5, 5), cat)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %v", ids(results))
	}
	if results[0].ID() != "1" || results[1].ID() != "3" {
		t.Errorf("expected [1 3], got %v", ids(results))
	}
	for _, r := range results {
		if r.Similarity != 100 {
			t.Errorf("expected similarity 100 for %s, got %v", r.ID(), r.Similarity)
		}
	}
}

func TestMatch_RepeatedSearchesAreDeterministic(t *testing.T) {
	var entries []catalog.Entry
	for i := 0; i < 50; i++ {
		entries = append(entries, entry(strconv.Itoa(i), []float32{1, float32(i % 3)}))
	}
	cat := mustCatalog(t, entries...)
	m := New(zap.NewNop())
	req := mustRequest(t, []float32{1, 1}, 0, 20)

	first := ids(m.Match(req, cat))
	for i := 0; i < 10; i++ {
		got := ids(m.Match(req, cat))
		for j := range first {
			if got[j] != first[j] {
				t.Fatalf("run %d differs at %d: %s vs %s", i, j, got[j], first[j])
			}
		}
	}
}

func TestMatch_DimensionMismatch(t *testing.T) {
	cat := mustCatalog(t,
		entry("1", []float32{1, 0}),
		entry("2", []float32{0, 1}),
	)
	mismatches := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_dim_mismatch_total"})
	invalid := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_invalid_vectors_total"})
	m := New(zap.NewNop()).WithMetrics(invalid, mismatches)

	results := m.Match(mustRequest(t, []float32{1, 0, 0}, 0.01, 5), cat)

	if len(results) != 0 {
		t.Fatalf("expected no results, got %v", ids(results))
	}
	if got := testutil.ToFloat64(mismatches); got != 1 {
		t.Errorf("expected 1 dimension mismatch, got %v", got)
	}
	if got := testutil.ToFloat64(invalid); got != 2 {
		t.Errorf("expected 2 invalid comparisons, got %v", got)
	}
}

func TestNew_NilLogger(t *testing.T) {
	cat := mustCatalog(t,
		entry("A", []float32{1, 0}),
		entry("B", []float32{1, 0, 0}),
	)
	results := New(nil).Match(mustRequest(t, []float32{1, 0}, 0.5, 5), cat)
	if got := ids(results); len(got) != 1 || got[0] != "A" {
		t.Errorf("expected [A], got %v", got)
	}
}

func TestMatch_EmptyCatalog(t *testing.T) {
	m := New(zap.NewNop())
	for _, threshold := range []float64{0, 0.5, 1} {
		results := m.Match(mustRequest(t, []float32{1, 2}, threshold, 3), mustCatalog(t))
		if results == nil || len(results) != 0 {
			t.Errorf("threshold %v: expected empty non-nil slice, got %v", threshold, results)
		}
	}
	if got := m.Match(mustRequest(t, []float32{1}, 0.5, 3), nil); len(got) != 0 {
		t.Errorf("nil catalog: expected empty result, got %d", len(got))
	}
}

func TestMatch_UnscoreableNeverReturned(t *testing.T) {
	cat := mustCatalog(t,
		entry("with", []float32{1, 1}),
		entry("without", nil),
		entry("empty", []float32{}),
	)
	m := New(zap.NewNop())

	results := m.Match(mustRequest(t, []float32{1, 1}, 0, 10), cat)
	for _, r := range results {
		if r.ID() == "without" {
			t.Fatal("entry without features must never be returned")
		}
	}
	// "empty" has features present but degenerate: it scores 0 and passes threshold 0
	if len(results) != 2 || results[0].ID() != "with" || results[1].ID() != "empty" {
		t.Errorf("expected [with empty], got %v", ids(results))
	}
}

func TestMatch_ThresholdInclusive(t *testing.T) {
	cat := mustCatalog(t,
		entry("exact", []float32{1, 0}),
		entry("below", []float32{0, 1}),
	)
	m := New(zap.NewNop())

	results := m.Match(mustRequest(t, []float32{1, 0}, 1, 5), cat)
	if len(results) != 1 || results[0].ID() != "exact" {
		t.Errorf("expected [exact] at threshold 1, got %v", ids(results))
	}
}

func TestMatch_TopKTruncates(t *testing.T) {
	cat := mustCatalog(t,
		entry("a", []float32{1, 0.1}),
		entry("b", []float32{1, 0.2}),
		entry("c", []float32{1, 0.3}),
		entry("d", []float32{1, 0.4}),
	)
	m := New(zap.NewNop())

	results := m.Match(mustRequest(t, []float32{1, 0}, 0, 2), cat)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID() != "a" || results[1].ID() != "b" {
		t.Errorf("expected [a b], got %v", ids(results))
	}
}

func TestMatch_NegativeSimilarityFiltered(t *testing.T) {
	cat := mustCatalog(t, entry("opposite", []float32{-1, 0}))
	m := New(zap.NewNop())

	if got := m.Match(mustRequest(t, []float32{1, 0}, 0, 5), cat); len(got) != 0 {
		t.Errorf("expected opposite vector to be filtered at threshold 0, got %v", ids(got))
	}
}

// TestMatch_Properties checks the ranking invariants over random catalogs.
func TestMatch_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	m := New(zap.NewNop())

	for round := 0; round < 200; round++ {
		dims := 1 + rng.Intn(8)
		n := rng.Intn(30)
		entries := make([]catalog.Entry, n)
		for i := range entries {
			var features []float32
			if rng.Intn(5) > 0 {
				features = randomVector(rng, dims)
			}
			entries[i] = entry(strconv.Itoa(i), features)
		}
		cat := mustCatalog(t, entries...)

		threshold := rng.Float64()
		topK := 1 + rng.Intn(10)
		results := m.Match(mustRequest(t, randomVector(rng, dims), threshold, topK), cat)

		if len(results) > topK {
			t.Fatalf("round %d: %d results exceed topK %d", round, len(results), topK)
		}
		for i, r := range results {
			if r.Similarity < threshold*100 {
				t.Fatalf("round %d: similarity %v below threshold %v", round, r.Similarity, threshold*100)
			}
			if !r.Scoreable() {
				t.Fatalf("round %d: unscoreable entry %s returned", round, r.ID())
			}
			if i > 0 && r.Similarity > results[i-1].Similarity {
				t.Fatalf("round %d: results not sorted at %d", round, i)
			}
		}
	}
}

func randomVector(rng *rand.Rand, dims int) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	return v
}
