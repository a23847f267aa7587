package usecase

import (
	"fmt"
	"math"

	"github.com/pricelens/backend/internal/domain"
)

// Default blend weights and cost markup
const (
	defaultModelWeight      = 0.5
	defaultCompetitorWeight = 0.3
	defaultCostWeight       = 0.2
	defaultCostMarkup       = 1.2
)

// BlenderConfig holds the pricing policy and its weights
type BlenderConfig struct {
	Policy           domain.PricingPolicy
	ModelWeight      float64
	CompetitorWeight float64
	CostWeight       float64
	CostMarkup       float64
}

// Blender turns a model estimate, competitor prices and seller cost into a price
type Blender struct {
	config BlenderConfig
}

// NewBlender creates a blender. Zero weights fall back to 0.5/0.3/0.2 with a 1.2 markup.
func NewBlender(config BlenderConfig) *Blender {
	if config.Policy == "" {
		config.Policy = domain.PolicyBlend
	}
	if config.ModelWeight == 0 && config.CompetitorWeight == 0 && config.CostWeight == 0 {
		config.ModelWeight = defaultModelWeight
		config.CompetitorWeight = defaultCompetitorWeight
		config.CostWeight = defaultCostWeight
	}
	if config.CostMarkup <= 0 {
		config.CostMarkup = defaultCostMarkup
	}
	return &Blender{config: config}
}

// Policy returns the configured pricing policy
func (b *Blender) Policy() domain.PricingPolicy {
	return b.config.Policy
}

// Blend computes the recommended price rounded to 2 decimal places and the
// competitor median it used.
//
// The blend policy is market-following: the marked-up cost pulls the price up
// but is not a floor, so weak market signals can push it below cost*markup.
// The margin_floor policy instead guarantees at least cost*markup.
func (b *Blender) Blend(predicted float64, competitorPrices []float64, costPrice float64) (price, competitor float64, err error) {
	if len(competitorPrices) == 0 {
		return 0, 0, domain.ErrEmptyFeatureSet
	}
	if costPrice <= 0 || math.IsNaN(costPrice) {
		return 0, 0, fmt.Errorf("%w: cost price must be positive", domain.ErrInvalidRequest)
	}

	competitor = median(competitorPrices)
	markedUp := b.config.CostMarkup * costPrice

	switch b.config.Policy {
	case domain.PolicyBlend:
		price = b.config.ModelWeight*predicted + b.config.CompetitorWeight*competitor + b.config.CostWeight*markedUp
	case domain.PolicyMarginFloor:
		price = math.Max(markedUp, predicted)
	default:
		return 0, 0, fmt.Errorf("%w: unknown pricing policy %q", domain.ErrInvalidRequest, b.config.Policy)
	}

	return roundCents(price), competitor, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
