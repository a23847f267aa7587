package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// MockCatalogRepository is a mock implementation of domain.CatalogRepository
type MockCatalogRepository struct {
	snapshot *domain.CatalogSnapshot
	err      error
	calls    int
}

func (m *MockCatalogRepository) Snapshot(ctx context.Context) (*domain.CatalogSnapshot, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.snapshot, nil
}

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	data     map[string]any
	setError error
	cleared  int
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{data: make(map[string]any)}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) (any, error) {
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

func (m *MockCacheRepository) Size() int {
	return len(m.data)
}

func (m *MockCacheRepository) Clear() {
	m.cleared++
	m.data = make(map[string]any)
}

func acmeSnapshot(version string) *domain.CatalogSnapshot {
	return &domain.CatalogSnapshot{
		Version: version,
		Records: []domain.RawRecord{
			raw("Acme X200", "₹1,000", "4.2", "50", "Flipkart"),
			raw("Acme X200", "₹1,100", "4.2", "50", "Croma"),
			raw("Acme X200", "₹900", "4.2", "50", "Reliance Digital"),
			raw("Acme Phone Pro Max 128GB", "₹30,000", "4.5", "1,204", "Flipkart"),
			raw("Zenith Blender 500W", "Not Available", "No Rating", "No Data", "Croma"),
		},
	}
}

func TestNewPricingService(t *testing.T) {
	svc := NewPricingService(&MockCatalogRepository{}, nil, PricingServiceConfig{}, nil)
	require.NotNil(t, svc)
	assert.Equal(t, time.Hour, svc.cacheTTL)
	assert.Equal(t, domain.PolicyBlend, svc.blender.Policy())

	custom := NewPricingService(&MockCatalogRepository{}, nil, PricingServiceConfig{ModelCacheTTL: time.Minute}, nil)
	assert.Equal(t, time.Minute, custom.cacheTTL)
}

func TestRecommendPrice(t *testing.T) {
	ctx := context.Background()

	t.Run("exact match end to end", func(t *testing.T) {
		repo := &MockCatalogRepository{snapshot: acmeSnapshot("v1")}
		svc := NewPricingService(repo, NewMockCacheRepository(), PricingServiceConfig{}, nil)

		rec, err := svc.RecommendPrice(ctx, "Acme X200", 700)
		require.NoError(t, err)

		assert.Equal(t, "Acme X200", rec.BestTitle)
		assert.Equal(t, 100, rec.Confidence)
		assert.Equal(t, domain.TierExact, rec.Tier)
		assert.Equal(t, 3, rec.MatchedCount)
		assert.Equal(t, 1000.0, rec.CompetitorPrice)
		assert.Equal(t, 700.0, rec.CostPrice)
		assert.Equal(t, "v1", rec.CatalogVersion)
		assert.False(t, rec.ModelCached)

		// Identical features: the forest averages bootstrap means of the three prices.
		assert.GreaterOrEqual(t, rec.PredictedPrice, 900.0)
		assert.LessOrEqual(t, rec.PredictedPrice, 1100.0)
		assert.InDelta(t, 0.5*rec.PredictedPrice+0.3*1000+0.2*1.2*700, rec.Price, 0.01)
		assert.Greater(t, rec.Price, 0.0)
	})

	t.Run("repeated query reuses the fitted model", func(t *testing.T) {
		repo := &MockCatalogRepository{snapshot: acmeSnapshot("v1")}
		cache := NewMockCacheRepository()
		svc := NewPricingService(repo, cache, PricingServiceConfig{}, nil)

		first, err := svc.RecommendPrice(ctx, "Acme X200", 700)
		require.NoError(t, err)
		second, err := svc.RecommendPrice(ctx, "acme x200", 700)
		require.NoError(t, err)

		assert.False(t, first.ModelCached)
		assert.True(t, second.ModelCached)
		assert.Equal(t, first.Price, second.Price)
		assert.Len(t, cache.data, 1)
		assert.Equal(t, 2, repo.calls)
	})

	t.Run("catalog version change purges cached models", func(t *testing.T) {
		repo := &MockCatalogRepository{snapshot: acmeSnapshot("v1")}
		cache := NewMockCacheRepository()
		core, logs := observer.New(zap.InfoLevel)
		svc := NewPricingService(repo, cache, PricingServiceConfig{}, zap.New(core))

		_, err := svc.RecommendPrice(ctx, "Acme X200", 700)
		require.NoError(t, err)
		_, err = svc.ResolveProduct(ctx, "Acme Phone Pro Max 128GB")
		require.NoError(t, err)

		repo.snapshot = acmeSnapshot("v2")
		rec, err := svc.RecommendPrice(ctx, "Acme X200", 700)
		require.NoError(t, err)

		assert.Equal(t, 1, cache.cleared)
		assert.False(t, rec.ModelCached)
		assert.Equal(t, "v2", rec.CatalogVersion)

		purged := logs.FilterMessage("catalog version changed, model cache purged").All()
		require.Len(t, purged, 1)
		assert.Equal(t, int64(1), purged[0].ContextMap()["evicted"])
	})

	t.Run("cache write failure does not fail the request", func(t *testing.T) {
		repo := &MockCatalogRepository{snapshot: acmeSnapshot("v1")}
		cache := NewMockCacheRepository()
		cache.setError = errors.New("cache full")
		svc := NewPricingService(repo, cache, PricingServiceConfig{}, nil)

		_, err := svc.RecommendPrice(ctx, "Acme X200", 700)
		assert.NoError(t, err)
	})

	t.Run("works without a cache", func(t *testing.T) {
		repo := &MockCatalogRepository{snapshot: acmeSnapshot("v1")}
		svc := NewPricingService(repo, nil, PricingServiceConfig{}, nil)

		rec, err := svc.RecommendPrice(ctx, "Acme X200", 700)
		require.NoError(t, err)
		assert.False(t, rec.ModelCached)
	})

	t.Run("margin floor policy", func(t *testing.T) {
		repo := &MockCatalogRepository{snapshot: acmeSnapshot("v1")}
		svc := NewPricingService(repo, nil, PricingServiceConfig{
			Blender: BlenderConfig{Policy: domain.PolicyMarginFloor},
		}, nil)

		rec, err := svc.RecommendPrice(ctx, "Acme X200", 2000)
		require.NoError(t, err)
		assert.Equal(t, domain.PolicyMarginFloor, rec.Policy)
		assert.Equal(t, 2400.0, rec.Price)
	})

	t.Run("low confidence returns no price", func(t *testing.T) {
		repo := &MockCatalogRepository{snapshot: acmeSnapshot("v1")}
		svc := NewPricingService(repo, nil, PricingServiceConfig{
			Resolver: ResolverConfig{Scorer: func(string, string) int { return 50 }},
		}, nil)

		rec, err := svc.RecommendPrice(ctx, "Acme Gizmo Thing", 700)
		assert.Nil(t, rec)
		require.ErrorIs(t, err, domain.ErrLowConfidence)

		var matchErr *domain.MatchError
		require.True(t, errors.As(err, &matchErr))
		assert.Equal(t, 50, matchErr.Confidence)
		assert.Equal(t, "Acme X200", matchErr.BestTitle)
	})

	t.Run("unknown brand", func(t *testing.T) {
		repo := &MockCatalogRepository{snapshot: acmeSnapshot("v1")}
		svc := NewPricingService(repo, nil, PricingServiceConfig{}, nil)

		_, err := svc.RecommendPrice(ctx, "Nokia 3310", 700)
		assert.ErrorIs(t, err, domain.ErrNoBrandMatch)
	})

	t.Run("invalid input is rejected before loading the catalog", func(t *testing.T) {
		repo := &MockCatalogRepository{snapshot: acmeSnapshot("v1")}
		svc := NewPricingService(repo, nil, PricingServiceConfig{}, nil)

		_, err := svc.RecommendPrice(ctx, "Acme X200", 0)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		_, err = svc.RecommendPrice(ctx, "  ", 700)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
		assert.Zero(t, repo.calls)
	})

	t.Run("catalog without priced rows", func(t *testing.T) {
		repo := &MockCatalogRepository{snapshot: &domain.CatalogSnapshot{
			Version: "v1",
			Records: []domain.RawRecord{raw("Acme X200", "Not Available", "4", "1", "Croma")},
		}}
		svc := NewPricingService(repo, nil, PricingServiceConfig{}, nil)

		_, err := svc.RecommendPrice(ctx, "Acme X200", 700)
		assert.ErrorIs(t, err, domain.ErrNoCatalog)
	})

	t.Run("repository error is returned", func(t *testing.T) {
		repo := &MockCatalogRepository{err: domain.ErrNoCatalog}
		svc := NewPricingService(repo, nil, PricingServiceConfig{}, nil)

		_, err := svc.RecommendPrice(ctx, "Acme X200", 700)
		assert.ErrorIs(t, err, domain.ErrNoCatalog)
	})
}

func TestLocateTarget(t *testing.T) {
	catalog := domain.Catalog{
		{Title: "Acme X200", Price: 1000, Rating: 4.2, RatingCount: 50, Source: domain.SourceFlipkart},
		{Title: "ACME X200", Price: 5000, Rating: 3.0, RatingCount: 2, Source: domain.SourceCroma},
	}

	t.Run("finds the first row with the exact title", func(t *testing.T) {
		target, err := locateTarget(catalog, "ACME X200")
		require.NoError(t, err)
		assert.Equal(t, 5000.0, target.Price)
	})

	t.Run("title missing from the catalog", func(t *testing.T) {
		_, err := locateTarget(catalog, "acme x200")
		assert.ErrorIs(t, err, domain.ErrTargetNotInCatalog)
	})
}

func TestRecommendPriceIgnoresCaseVariantListings(t *testing.T) {
	repo := &MockCatalogRepository{snapshot: &domain.CatalogSnapshot{
		Version: "v1",
		Records: []domain.RawRecord{
			raw("Acme X200", "₹1,000", "4.2", "50", "Flipkart"),
			raw("ACME X200", "₹5,000", "4.2", "50", "Croma"),
			raw("acme x200", "₹6,000", "4.2", "50", "Reliance Digital"),
		},
	}}
	svc := NewPricingService(repo, nil, PricingServiceConfig{}, nil)

	rec, err := svc.RecommendPrice(context.Background(), "acme x200", 700)
	require.NoError(t, err)
	assert.Equal(t, "Acme X200", rec.BestTitle)
	assert.Equal(t, 1, rec.MatchedCount)
	assert.Equal(t, 1000.0, rec.CompetitorPrice)
}

func TestResolveProduct(t *testing.T) {
	ctx := context.Background()
	repo := &MockCatalogRepository{snapshot: acmeSnapshot("v1")}
	svc := NewPricingService(repo, nil, PricingServiceConfig{}, nil)

	t.Run("returns the cascade outcome", func(t *testing.T) {
		result, err := svc.ResolveProduct(ctx, "Acme Phone Pro Max 128GB")
		require.NoError(t, err)
		assert.Equal(t, "Acme Phone Pro Max 128GB", result.BestTitle)
		assert.Equal(t, 100, result.Confidence)
		assert.Len(t, result.MatchedRecords, 1)
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := svc.ResolveProduct(ctx, "")
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}

func TestSummary(t *testing.T) {
	repo := &MockCatalogRepository{snapshot: &domain.CatalogSnapshot{
		Version: "v7",
		Records: []domain.RawRecord{
			raw("A", "₹300", "4.0", "1", "Croma"),
			raw("B", "₹100", "5.0", "1", "Croma"),
			raw("C", "₹200", "3.0", "1", "Croma"),
			raw("D", "₹1,000", "4.5", "1", "Flipkart"),
			raw("E", "₹50", "2.0", "1", "Amazon"),
			raw("F", "Not Available", "2.0", "1", "Flipkart"),
		},
	}}
	svc := NewPricingService(repo, nil, PricingServiceConfig{}, nil)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "v7", summary.Version)
	assert.Equal(t, 5, summary.TotalRecords)
	assert.Equal(t, 1, summary.DroppedRows)
	require.Len(t, summary.Sources, 3)

	assert.Equal(t, domain.SourceSummary{
		Source: domain.SourceFlipkart, Count: 1, MinPrice: 1000, MedianPrice: 1000, MaxPrice: 1000, MeanRating: 4.5,
	}, summary.Sources[0])
	assert.Equal(t, domain.SourceSummary{
		Source: domain.SourceCroma, Count: 3, MinPrice: 100, MedianPrice: 200, MaxPrice: 300, MeanRating: 4,
	}, summary.Sources[1])
	assert.Equal(t, domain.SourceUnknown, summary.Sources[2].Source)
}
