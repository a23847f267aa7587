package usecase

import (
	"context"
	"fmt"

	"github.com/pricelens/backend/internal/domain"
	"go.uber.org/zap"
)

// Confidence assigned by the deterministic tiers
const (
	exactConfidence   = 100
	modelConfidence   = 95
	keywordConfidence = 90

	defaultMinConfidence = 85
)

// ResolverConfig holds configuration for the resolver
type ResolverConfig struct {
	MinConfidence      int
	Scorer             Scorer // nil means WeightedRatio
	EnableDebugLogging bool
}

// tierOutcome is what a cascade tier proposes: a title, its score and the rows sharing it
type tierOutcome struct {
	title      string
	confidence int
	subset     domain.Catalog
}

// matchTier is one step of the cascade. It never fails; it either proposes an
// outcome or passes to the next tier.
type matchTier struct {
	name  domain.MatchTier
	match func(q Query, candidates domain.Catalog) (tierOutcome, bool)
}

// Resolver maps free-text product names to catalog titles through a tiered cascade:
// exact title, brand filter, model number, leading keywords, then fuzzy ranking.
type Resolver struct {
	minConfidence      int
	enableDebugLogging bool
	preprocessor       *QueryPreprocessor
	tiers              []matchTier
	logger             *zap.Logger
}

// NewResolver creates a resolver with the given configuration
func NewResolver(config ResolverConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}

	threshold := config.MinConfidence
	if threshold <= 0 {
		threshold = defaultMinConfidence
	}

	scorer := config.Scorer
	if scorer == nil {
		scorer = WeightedRatio
	}

	r := &Resolver{
		minConfidence:      threshold,
		enableDebugLogging: config.EnableDebugLogging,
		preprocessor:       NewQueryPreprocessor(logger),
		logger:             logger,
	}
	r.tiers = []matchTier{
		{name: domain.TierModel, match: modelTier},
		{name: domain.TierKeyword, match: keywordTier},
		{name: domain.TierFuzzy, match: r.fuzzyTier(scorer)},
	}
	return r
}

// Resolve finds the catalog title that best matches productName.
// Cascade failures are returned as *domain.MatchError; on ErrLowConfidence the
// returned result also carries the best candidate and its score for
// diagnostics. On success MatchedRecords is never empty.
func (r *Resolver) Resolve(ctx context.Context, productName string, catalog domain.Catalog) (*domain.MatchResult, error) {
	q := r.preprocessor.Parse(productName)
	if q.Folded == "" {
		return nil, domain.ErrInvalidRequest
	}
	if len(catalog) == 0 {
		return nil, domain.ErrNoCatalog
	}

	// The exact tier is canonical and skips every later tier.
	if outcome, ok := exactTier(q, catalog); ok {
		return r.accept(q, domain.TierExact, outcome)
	}

	brandSet := catalog.TitleContains(q.Brand)
	if len(brandSet) == 0 {
		r.logger.Info("no brand match", zap.String("query", q.Raw), zap.String("brand", q.Brand))
		return &domain.MatchResult{}, &domain.MatchError{Err: fmt.Errorf("%w: %q", domain.ErrNoBrandMatch, q.Brand)}
	}

	for _, tier := range r.tiers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if outcome, ok := tier.match(q, brandSet); ok {
			return r.accept(q, tier.name, outcome)
		}
	}

	return &domain.MatchResult{}, &domain.MatchError{Err: domain.ErrLowConfidence}
}

// accept applies the confidence threshold to a tier outcome
func (r *Resolver) accept(q Query, tier domain.MatchTier, outcome tierOutcome) (*domain.MatchResult, error) {
	result := &domain.MatchResult{
		BestTitle:      outcome.title,
		Confidence:     outcome.confidence,
		Tier:           tier,
		MatchedRecords: outcome.subset,
	}

	if result.Confidence < r.minConfidence {
		r.logger.Info("no close match",
			zap.String("query", q.Raw),
			zap.String("bestMatch", result.BestTitle),
			zap.Int("confidence", result.Confidence),
			zap.String("tier", string(tier)),
		)
		return result, &domain.MatchError{
			BestTitle:  result.BestTitle,
			Confidence: result.Confidence,
			Tier:       tier,
			Err:        domain.ErrLowConfidence,
		}
	}

	r.logger.Info("best match found",
		zap.String("query", q.Raw),
		zap.String("bestMatch", result.BestTitle),
		zap.Int("confidence", result.Confidence),
		zap.String("tier", string(tier)),
		zap.Int("matched", len(result.MatchedRecords)),
	)
	return result, nil
}

// exactTier matches titles equal to the query ignoring case and surrounding
// whitespace. The first matching row supplies the catalog spelling, and only
// rows carrying that exact spelling are kept.
func exactTier(q Query, catalog domain.Catalog) (tierOutcome, bool) {
	for _, rec := range catalog {
		if foldTitle(rec.Title) == q.Folded {
			return tierOutcome{title: rec.Title, confidence: exactConfidence, subset: catalog.WithTitle(rec.Title)}, true
		}
	}
	return tierOutcome{}, false
}

func modelTier(q Query, candidates domain.Catalog) (tierOutcome, bool) {
	return substringTier(q.Model, modelConfidence, candidates)
}

func keywordTier(q Query, candidates domain.Catalog) (tierOutcome, bool) {
	return substringTier(q.Keyword, keywordConfidence, candidates)
}

// substringTier picks the first candidate whose title contains needle
func substringTier(needle string, confidence int, candidates domain.Catalog) (tierOutcome, bool) {
	if needle == "" {
		return tierOutcome{}, false
	}
	hits := candidates.TitleContains(needle)
	if len(hits) == 0 {
		return tierOutcome{}, false
	}
	title := hits[0].Title
	return tierOutcome{title: title, confidence: confidence, subset: candidates.WithTitle(title)}, true
}

// fuzzyTier ranks every candidate title by similarity to the query. Ties keep
// the earliest candidate.
func (r *Resolver) fuzzyTier(scorer Scorer) func(Query, domain.Catalog) (tierOutcome, bool) {
	return func(q Query, candidates domain.Catalog) (tierOutcome, bool) {
		query := collapseSpaces(q.Raw)
		best := -1
		var bestTitle string

		for _, rec := range candidates {
			score := min(max(scorer(query, rec.Title), 0), 100)

			if r.enableDebugLogging {
				r.logger.Debug("fuzzy candidate", zap.String("title", rec.Title), zap.Int("score", score))
			}

			if score > best {
				best = score
				bestTitle = rec.Title
			}
		}

		if best < 0 {
			return tierOutcome{}, false
		}
		return tierOutcome{title: bestTitle, confidence: best, subset: candidates.WithTitle(bestTitle)}, true
	}
}
