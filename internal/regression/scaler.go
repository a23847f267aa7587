// Package regression provides the standardization, data splitting and
// bootstrap-aggregated regression trees used to estimate fair prices.
package regression

import (
	"errors"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
)

// ErrNoSamples is returned when a fit is attempted on an empty design matrix
var ErrNoSamples = errors.New("regression: no samples")

// StandardScaler centers each column to zero mean and scales it to unit
// population variance. Columns with zero variance are only centered.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// FitScaler computes per-column statistics of X
func FitScaler(X [][]float64) (*StandardScaler, error) {
	if len(X) == 0 || len(X[0]) == 0 {
		return nil, ErrNoSamples
	}

	cols := len(X[0])
	s := &StandardScaler{
		Mean:  make([]float64, cols),
		Scale: make([]float64, cols),
	}

	column := make([]float64, len(X))
	for j := 0; j < cols; j++ {
		for i, row := range X {
			column[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		s.Mean[j] = mean
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		s.Scale[j] = std
	}
	return s, nil
}

// Transform standardizes a single row
func (s *StandardScaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}

// TransformAll standardizes every row of X
func (s *StandardScaler) TransformAll(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		out[i] = s.Transform(row)
	}
	return out
}

// TrainTestSplit shuffles row indices 0..n-1 with a seeded generator and holds
// out ceil(testFraction*n) of them. A fraction outside (0,1) holds out nothing.
func TrainTestSplit(n int, testFraction float64, seed uint64) (train, test []int) {
	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)

	if testFraction <= 0 || testFraction >= 1 {
		return perm, nil
	}

	nTest := int(math.Ceil(testFraction * float64(n)))
	if nTest >= n {
		return perm, nil
	}
	return perm[nTest:], perm[:nTest]
}
