package regression

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// Default forest parameters
const (
	DefaultTrees           = 200
	DefaultMinSamplesSplit = 5
	DefaultSeed            = 42
)

// ForestConfig holds the parameters of a bagged regression forest
type ForestConfig struct {
	Trees           int
	MinSamplesSplit int
	Seed            uint64
}

// Forest is an ensemble of regression trees, each grown on a bootstrap sample.
// Predictions are the mean of the trees' predictions.
type Forest struct {
	trees []*node
}

// node is either a leaf carrying a value or an internal split on one feature.
// Rows with x[feature] <= threshold go left.
type node struct {
	leaf      bool
	value     float64
	feature   int
	threshold float64
	left      *node
	right     *node
}

// FitForest grows the forest on X and y. Trees are grown on squared error with
// every feature considered at each split, and nodes with fewer than
// MinSamplesSplit rows become leaves.
func FitForest(X [][]float64, y []float64, config ForestConfig) (*Forest, error) {
	if len(X) == 0 {
		return nil, ErrNoSamples
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("regression: %d rows but %d targets", len(X), len(y))
	}

	trees := config.Trees
	if trees <= 0 {
		trees = DefaultTrees
	}
	minSplit := config.MinSamplesSplit
	if minSplit < 2 {
		minSplit = DefaultMinSamplesSplit
	}

	f := &Forest{trees: make([]*node, trees)}
	n := len(X)
	for t := range f.trees {
		rng := rand.New(rand.NewPCG(config.Seed, uint64(t)))
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.IntN(n)
		}
		f.trees[t] = grow(X, y, sample, minSplit)
	}
	return f, nil
}

// Predict averages the tree predictions for one row
func (f *Forest) Predict(x []float64) float64 {
	sum := 0.0
	for _, tree := range f.trees {
		sum += tree.predict(x)
	}
	return sum / float64(len(f.trees))
}

// Size returns the number of trees
func (f *Forest) Size() int {
	return len(f.trees)
}

func (n *node) predict(x []float64) float64 {
	for !n.leaf {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// grow builds a tree over the rows in idx, which may contain repeats
func grow(X [][]float64, y []float64, idx []int, minSplit int) *node {
	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		sum += y[i]
		sumSq += y[i] * y[i]
	}
	count := float64(len(idx))
	mean := sum / count
	impurity := sumSq - sum*sum/count

	if len(idx) < minSplit || impurity <= 1e-12*(sumSq+1) {
		return &node{leaf: true, value: mean}
	}

	feature, threshold, ok := bestSplit(X, y, idx)
	if !ok {
		return &node{leaf: true, value: mean}
	}

	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &node{leaf: true, value: mean}
	}

	return &node{
		feature:   feature,
		threshold: threshold,
		left:      grow(X, y, left, minSplit),
		right:     grow(X, y, right, minSplit),
	}
}

// bestSplit finds the feature and threshold minimizing the summed squared
// error of the two children. Thresholds are midpoints between distinct values.
func bestSplit(X [][]float64, y []float64, idx []int) (int, float64, bool) {
	bestFeature, bestThreshold := -1, 0.0
	bestSSE := 0.0

	sorted := make([]int, len(idx))
	for feature := 0; feature < len(X[idx[0]]); feature++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, b int) bool {
			return X[sorted[a]][feature] < X[sorted[b]][feature]
		})

		totalSum, totalSq := 0.0, 0.0
		for _, i := range sorted {
			totalSum += y[i]
			totalSq += y[i] * y[i]
		}

		leftSum, leftSq := 0.0, 0.0
		for k := 1; k < len(sorted); k++ {
			prev := sorted[k-1]
			leftSum += y[prev]
			leftSq += y[prev] * y[prev]

			lo, hi := X[prev][feature], X[sorted[k]][feature]
			if lo == hi {
				continue
			}

			nl := float64(k)
			nr := float64(len(sorted) - k)
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)

			if bestFeature < 0 || sse < bestSSE {
				threshold := lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				bestFeature = feature
				bestThreshold = threshold
				bestSSE = sse
			}
		}
	}

	return bestFeature, bestThreshold, bestFeature >= 0
}
