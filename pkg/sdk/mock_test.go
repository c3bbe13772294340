package visearch

import (
	"context"

	"github.com/velora/visearch/internal/domain"
	"github.com/velora/visearch/internal/domain/catalog"
	"github.com/velora/visearch/internal/domain/match"
)

// --- searchUseCase mock ---

type mockSearchUC struct {
	searchFn func(ctx context.Context, img domain.Image) ([]match.Scored, error)
	matchFn  func(query []float32, threshold float64, topK int) ([]match.Scored, error)
	cat      *catalog.Catalog
}

func (m *mockSearchUC) Search(ctx context.Context, img domain.Image) ([]match.Scored, error) {
	return m.searchFn(ctx, img)
}

func (m *mockSearchUC) Match(query []float32, threshold float64, topK int) ([]match.Scored, error) {
	return m.matchFn(query, threshold, topK)
}

func (m *mockSearchUC) Catalog() *catalog.Catalog { return m.cat }
