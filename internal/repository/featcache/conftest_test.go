package featcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/velora/visearch/internal/db"
	"github.com/velora/visearch/internal/domain"
)

type mockExtractor struct {
	result domain.Features
	err    error
	calls  int
}

func (m *mockExtractor) Extract(_ context.Context, _ domain.Image) (domain.Features, error) {
	m.calls++
	return m.result, m.err
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedExtractor(t *testing.T, inner *mockExtractor) (*CachedExtractor, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	ce := New(inner, ms, "test", time.Hour, nil, zap.NewNop())
	return ce, ms
}
