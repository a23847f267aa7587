package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/pricelens/backend/internal/domain"
	"go.uber.org/zap"
)

const defaultModelCacheTTL = time.Hour

// PricingServiceConfig holds configuration for the pricing service
type PricingServiceConfig struct {
	Resolver      ResolverConfig
	Estimator     EstimatorConfig
	Blender       BlenderConfig
	ModelCacheTTL time.Duration
}

// PricingService runs the resolve, fit, predict and blend pipeline for one
// query at a time against the current catalog snapshot.
type PricingService struct {
	catalog   domain.CatalogRepository
	cache     domain.CacheRepository // nil disables model caching
	resolver  *Resolver
	estimator *Estimator
	blender   *Blender
	cacheTTL  time.Duration
	logger    *zap.Logger

	mu          sync.Mutex
	lastVersion string
}

// NewPricingService creates a new pricing service with dependencies
func NewPricingService(
	catalog domain.CatalogRepository,
	cache domain.CacheRepository,
	config PricingServiceConfig,
	logger *zap.Logger,
) *PricingService {
	if logger == nil {
		logger = zap.NewNop()
	}

	cacheTTL := config.ModelCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultModelCacheTTL
	}

	return &PricingService{
		catalog:   catalog,
		cache:     cache,
		resolver:  NewResolver(config.Resolver, logger.Named("resolver")),
		estimator: NewEstimator(config.Estimator, logger.Named("estimator")),
		blender:   NewBlender(config.Blender),
		cacheTTL:  cacheTTL,
		logger:    logger,
	}
}

// RecommendPrice resolves productName and recommends a selling price for a
// seller whose unit cost is costPrice.
// Flow: load catalog -> resolve -> features -> fit (or cached model) -> predict -> blend
func (s *PricingService) RecommendPrice(ctx context.Context, productName string, costPrice float64) (*domain.Recommendation, error) {
	if strings.TrimSpace(productName) == "" {
		return nil, fmt.Errorf("%w: product name is required", domain.ErrInvalidRequest)
	}
	if !(costPrice > 0) || math.IsInf(costPrice, 0) {
		return nil, fmt.Errorf("%w: cost price must be positive", domain.ErrInvalidRequest)
	}

	catalog, version, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}

	match, err := s.resolver.Resolve(ctx, productName, catalog)
	if err != nil {
		return nil, err
	}

	model, cached, err := s.priceModel(ctx, version, match)
	if err != nil {
		return nil, err
	}

	target, err := locateTarget(catalog, match.BestTitle)
	if err != nil {
		return nil, err
	}
	predicted := model.Predict(FeaturesFor(target))

	price, competitor, err := s.blender.Blend(predicted, match.MatchedRecords.Prices(), costPrice)
	if err != nil {
		return nil, err
	}

	rec := &domain.Recommendation{
		Price:           price,
		BestTitle:       match.BestTitle,
		Confidence:      match.Confidence,
		Tier:            match.Tier,
		Policy:          s.blender.Policy(),
		PredictedPrice:  roundCents(predicted),
		CompetitorPrice: competitor,
		CostPrice:       costPrice,
		MatchedCount:    len(match.MatchedRecords),
		CatalogVersion:  version,
		ModelCached:     cached,
	}

	s.logger.Info("price recommended",
		zap.String("query", productName),
		zap.String("bestMatch", rec.BestTitle),
		zap.Float64("price", rec.Price),
		zap.Float64("predicted", rec.PredictedPrice),
		zap.Float64("competitor", rec.CompetitorPrice),
		zap.Bool("modelCached", cached),
	)

	return rec, nil
}

// ResolveProduct runs only the matching cascade. On low confidence the
// result is returned alongside the error for diagnostics.
func (s *PricingService) ResolveProduct(ctx context.Context, productName string) (*domain.MatchResult, error) {
	if strings.TrimSpace(productName) == "" {
		return nil, fmt.Errorf("%w: product name is required", domain.ErrInvalidRequest)
	}

	catalog, _, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, productName, catalog)
}

// Summary aggregates the normalized catalog per source
func (s *PricingService) Summary(ctx context.Context) (*domain.CatalogSummary, error) {
	snapshot, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	catalog, stats := Normalize(snapshot.Records)
	if len(catalog) == 0 {
		return nil, fmt.Errorf("%w: no rows with a usable price", domain.ErrNoCatalog)
	}

	summary := SummarizeCatalog(catalog)
	summary.Version = snapshot.Version
	summary.DroppedRows = stats.DroppedRows
	return summary, nil
}

// locateTarget re-reads the matched product from the full catalog by exact
// title rather than trusting the matched subset.
func locateTarget(catalog domain.Catalog, title string) (domain.ProductRecord, error) {
	target := catalog.WithTitle(title)
	if len(target) == 0 {
		return domain.ProductRecord{}, fmt.Errorf("%w: %q", domain.ErrTargetNotInCatalog, title)
	}
	return target[0], nil
}

// loadCatalog takes a fresh snapshot, normalizes it and purges cached models
// when the snapshot version has moved.
func (s *PricingService) loadCatalog(ctx context.Context) (domain.Catalog, string, error) {
	snapshot, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, "", err
	}

	catalog, stats := Normalize(snapshot.Records)
	s.logger.Debug("catalog normalized",
		zap.String("version", snapshot.Version),
		zap.Int("rows", stats.InputRows),
		zap.Int("dropped", stats.DroppedRows),
		zap.Int("imputedRatings", stats.ImputedRatings),
		zap.Float64("imputedRating", stats.ImputedRating),
	)

	if len(catalog) == 0 {
		return nil, "", fmt.Errorf("%w: no rows with a usable price", domain.ErrNoCatalog)
	}

	s.invalidateOnVersionChange(snapshot.Version)
	return catalog, snapshot.Version, nil
}

func (s *PricingService) invalidateOnVersionChange(version string) {
	if s.cache == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastVersion != "" && s.lastVersion != version {
		evicted := s.cache.Size()
		s.cache.Clear()
		s.logger.Info("catalog version changed, model cache purged",
			zap.String("from", s.lastVersion),
			zap.String("to", version),
			zap.Int("evicted", evicted),
		)
	}
	s.lastVersion = version
}

// priceModel returns a cached model for this catalog version and matched
// subset, or fits and caches a new one.
func (s *PricingService) priceModel(ctx context.Context, version string, match *domain.MatchResult) (*PriceModel, bool, error) {
	features, err := BuildFeatures(match.MatchedRecords)
	if err != nil {
		return nil, false, err
	}

	key := s.modelCacheKey(version, match)
	if s.cache != nil {
		if value, err := s.cache.Get(ctx, key); err == nil {
			if model, ok := value.(*PriceModel); ok {
				return model, true, nil
			}
		} else if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("model cache read failed", zap.Error(err))
		}
	}

	model, err := s.estimator.Fit(features, match.MatchedRecords.Prices())
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, model, s.cacheTTL); err != nil {
			// Caching is an optimization; the fitted model is still valid.
			s.logger.Warn("model cache write failed", zap.Error(err))
		}
	}

	return model, false, nil
}

// modelCacheKey identifies a fitted model by catalog version, matched subset
// and estimator parameters.
// Format: "model:{version}:{sha256 prefix}"
func (s *PricingService) modelCacheKey(version string, match *domain.MatchResult) string {
	h := sha256.New()
	cfg := s.estimator.Config()
	fmt.Fprintf(h, "%d|%d|%g|%d\n", cfg.Trees, cfg.MinSamplesSplit, cfg.TestFraction, cfg.Seed)
	fmt.Fprintf(h, "%s\n", match.BestTitle)
	for _, rec := range match.MatchedRecords {
		fmt.Fprintf(h, "%s|%g|%g|%d|%s\n", rec.Title, rec.Price, rec.Rating, rec.RatingCount, rec.Source)
	}
	return fmt.Sprintf("model:%s:%s", version, hex.EncodeToString(h.Sum(nil))[:16])
}
