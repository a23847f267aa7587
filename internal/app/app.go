// Package app wires configuration into repositories and the pricing service.
// Both the HTTP server and the CLI build their dependencies through it.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pricelens/backend/config"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/cache"
	"github.com/pricelens/backend/internal/infrastructure/catalog"
	"github.com/pricelens/backend/internal/usecase"
	"go.uber.org/zap"
)

// App holds the long-lived dependencies of one process
type App struct {
	Service *usecase.PricingService
	Catalog domain.CatalogRepository

	cache *cache.MemoryCache
	db    *sql.DB
}

// New opens the configured catalog and builds the pricing service
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{}

	switch cfg.Catalog.Type {
	case "csv":
		a.Catalog = catalog.NewCSVRepository(cfg.Catalog.Path, logger.Named("catalog"))
	case "sqlite":
		db, err := catalog.OpenSQLite(ctx, cfg.Catalog.Path)
		if err != nil {
			return nil, err
		}
		a.db = db
		a.Catalog = catalog.NewSQLiteRepository(db, logger.Named("catalog"))
	default:
		return nil, fmt.Errorf("unsupported catalog type %q", cfg.Catalog.Type)
	}

	var modelCache domain.CacheRepository
	if cfg.Cache.Enabled {
		a.cache = cache.NewMemoryCache(cfg.Cache.CleanupInterval)
		modelCache = a.cache
	}

	a.Service = usecase.NewPricingService(a.Catalog, modelCache, ServiceConfig(cfg), logger.Named("pricing"))

	logger.Info("pricing service ready",
		zap.String("catalogType", cfg.Catalog.Type),
		zap.String("catalogPath", cfg.Catalog.Path),
		zap.Int("minConfidence", cfg.Matching.MinConfidence),
		zap.String("policy", cfg.Pricing.Policy),
		zap.Bool("modelCache", cfg.Cache.Enabled),
	)

	return a, nil
}

// ServiceConfig maps application configuration onto the pricing service
func ServiceConfig(cfg *config.Config) usecase.PricingServiceConfig {
	return usecase.PricingServiceConfig{
		Resolver: usecase.ResolverConfig{
			MinConfidence:      cfg.Matching.MinConfidence,
			EnableDebugLogging: cfg.Matching.EnableDebugLogging,
		},
		Estimator: usecase.EstimatorConfig{
			Trees:           cfg.Estimator.Trees,
			MinSamplesSplit: cfg.Estimator.MinSamplesSplit,
			TestFraction:    cfg.Estimator.TestFraction,
			Seed:            cfg.Estimator.Seed,
		},
		Blender: usecase.BlenderConfig{
			Policy:           domain.PricingPolicy(cfg.Pricing.Policy),
			ModelWeight:      cfg.Pricing.ModelWeight,
			CompetitorWeight: cfg.Pricing.CompetitorWeight,
			CostWeight:       cfg.Pricing.CostWeight,
			CostMarkup:       cfg.Pricing.CostMarkup,
		},
		ModelCacheTTL: cfg.Cache.TTL,
	}
}

// Close releases the cache sweeper and the database handle
func (a *App) Close() error {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
