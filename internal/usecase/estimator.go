package usecase

import (
	"fmt"
	"math"

	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/regression"
	"go.uber.org/zap"
)

const defaultTestFraction = 0.2

// EstimatorConfig holds configuration for the price estimator
type EstimatorConfig struct {
	Trees           int
	MinSamplesSplit int
	TestFraction    float64
	Seed            uint64
}

// PriceModel is a fitted estimator for one matched subset
type PriceModel struct {
	scaler *regression.StandardScaler
	forest *regression.Forest

	TrainSize      int
	ValidationSize int
	ValidationMAE  float64 // NaN when nothing was held out
}

// Predict standardizes target with the subset's statistics and predicts its price
func (m *PriceModel) Predict(target domain.PricingFeatures) float64 {
	return m.forest.Predict(m.scaler.Transform(target.Vector()))
}

// Estimator fits a bagged regression forest from listing features to price
type Estimator struct {
	config EstimatorConfig
	logger *zap.Logger
}

// NewEstimator creates an estimator, filling unset parameters with defaults
func NewEstimator(config EstimatorConfig, logger *zap.Logger) *Estimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Trees <= 0 {
		config.Trees = regression.DefaultTrees
	}
	if config.MinSamplesSplit < 2 {
		config.MinSamplesSplit = regression.DefaultMinSamplesSplit
	}
	if config.TestFraction <= 0 || config.TestFraction >= 1 {
		config.TestFraction = defaultTestFraction
	}
	if config.Seed == 0 {
		config.Seed = regression.DefaultSeed
	}
	return &Estimator{config: config, logger: logger}
}

// Config returns the effective estimator parameters
func (e *Estimator) Config() EstimatorConfig {
	return e.config
}

// Fit standardizes features using the subset's own statistics, holds out a
// seeded validation share and trains the forest on the rest. Subsets smaller
// than the minimum split size are not split: every row trains, and the trees
// reduce to bootstrap means.
func (e *Estimator) Fit(features []domain.PricingFeatures, prices []float64) (*PriceModel, error) {
	if len(features) == 0 {
		return nil, domain.ErrEmptyFeatureSet
	}
	if len(features) != len(prices) {
		return nil, fmt.Errorf("%w: %d feature rows for %d prices", domain.ErrInvalidRequest, len(features), len(prices))
	}

	X := make([][]float64, len(features))
	for i, f := range features {
		X[i] = f.Vector()
	}

	scaler, err := regression.FitScaler(X)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmptyFeatureSet, err)
	}
	scaled := scaler.TransformAll(X)

	var train, validation []int
	if len(scaled) < e.config.MinSamplesSplit {
		train, _ = regression.TrainTestSplit(len(scaled), 0, e.config.Seed)
	} else {
		train, validation = regression.TrainTestSplit(len(scaled), e.config.TestFraction, e.config.Seed)
	}

	trainX, trainY := gather(scaled, prices, train)
	forest, err := regression.FitForest(trainX, trainY, regression.ForestConfig{
		Trees:           e.config.Trees,
		MinSamplesSplit: e.config.MinSamplesSplit,
		Seed:            e.config.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	model := &PriceModel{
		scaler:         scaler,
		forest:         forest,
		TrainSize:      len(train),
		ValidationSize: len(validation),
		ValidationMAE:  math.NaN(),
	}

	if len(validation) > 0 {
		absErr := 0.0
		for _, i := range validation {
			absErr += math.Abs(forest.Predict(scaled[i]) - prices[i])
		}
		model.ValidationMAE = absErr / float64(len(validation))
	}

	e.logger.Debug("price model fitted",
		zap.Int("train", model.TrainSize),
		zap.Int("validation", model.ValidationSize),
		zap.Float64("validationMAE", model.ValidationMAE),
		zap.Int("trees", forest.Size()),
	)

	return model, nil
}

// FitPredict fits a model on the subset and predicts the target's price
func (e *Estimator) FitPredict(features []domain.PricingFeatures, prices []float64, target domain.PricingFeatures) (float64, error) {
	model, err := e.Fit(features, prices)
	if err != nil {
		return 0, err
	}
	return model.Predict(target), nil
}

func gather(X [][]float64, y []float64, idx []int) ([][]float64, []float64) {
	outX := make([][]float64, len(idx))
	outY := make([]float64, len(idx))
	for k, i := range idx {
		outX[k] = X[i]
		outY[k] = y[i]
	}
	return outX, outY
}
