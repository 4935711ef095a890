package analytics

import (
	"math"
	"sort"
)

// GBMConfig holds hyperparameters for the gradient-boosted tree regressor.
type GBMConfig struct {
	// NEstimators is the number of boosting rounds.
	NEstimators int `json:"n_estimators"`
	// MaxDepth is the maximum depth of each regression tree.
	MaxDepth int `json:"max_depth"`
	// LearningRate is the shrinkage applied to each tree's contribution.
	LearningRate float64 `json:"learning_rate"`
}

// DefaultGBMConfig mirrors the deployed hyperparameters.
func DefaultGBMConfig() GBMConfig {
	return GBMConfig{
		NEstimators:  200,
		MaxDepth:     6,
		LearningRate: 0.1,
	}
}

// TreeNode is one node of a regression tree. Leaves carry the predicted
// value; internal nodes route on x[Feature] <= Threshold.
type TreeNode struct {
	Leaf      bool      `json:"leaf"`
	Feature   int       `json:"feature,omitempty"`
	Threshold float64   `json:"threshold,omitempty"`
	Value     float64   `json:"value,omitempty"`
	Left      *TreeNode `json:"left,omitempty"`
	Right     *TreeNode `json:"right,omitempty"`
}

func (n *TreeNode) predict(x []float64) float64 {
	for !n.Leaf {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

// GBMRegressor is a gradient-boosted ensemble of squared-error regression
// trees. Training uses greedy exact split search with no subsampling, so a
// given dataset always yields an identical model and identical predictions.
type GBMRegressor struct {
	// Base is the initial prediction (mean of the training targets).
	Base float64 `json:"base"`
	// LearningRate is the shrinkage the ensemble was trained with.
	LearningRate float64 `json:"learning_rate"`
	// Trees are the fitted boosting stages in order.
	Trees []*TreeNode `json:"trees"`
}

// residualTolerance stops boosting once every residual is effectively zero.
const residualTolerance = 1e-12

// Fit trains a regressor on the given feature matrix and targets.
// Rows of features must all have the same length.
func (cfg GBMConfig) Fit(features [][]float64, targets []float64) *GBMRegressor {
	model := &GBMRegressor{
		Base:         mean(targets),
		LearningRate: cfg.LearningRate,
	}

	n := len(targets)
	preds := make([]float64, n)
	for i := range preds {
		preds[i] = model.Base
	}

	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	residuals := make([]float64, n)
	for round := 0; round < cfg.NEstimators; round++ {
		converged := true
		for i := 0; i < n; i++ {
			residuals[i] = targets[i] - preds[i]
			if math.Abs(residuals[i]) > residualTolerance {
				converged = false
			}
		}
		if converged {
			break
		}

		tree := growTree(features, residuals, indices, cfg.MaxDepth)
		model.Trees = append(model.Trees, tree)

		for i := 0; i < n; i++ {
			preds[i] += cfg.LearningRate * tree.predict(features[i])
		}
	}

	return model
}

// Predict returns the ensemble prediction for one feature vector.
func (m *GBMRegressor) Predict(x []float64) float64 {
	out := m.Base
	for _, tree := range m.Trees {
		out += m.LearningRate * tree.predict(x)
	}
	return out
}

// growTree builds a regression tree on the residuals of the given sample
// indices, splitting greedily by squared-error reduction.
func growTree(features [][]float64, residuals []float64, indices []int, depth int) *TreeNode {
	leafValue := meanAt(residuals, indices)
	if depth <= 0 || len(indices) < 2 {
		return &TreeNode{Leaf: true, Value: leafValue}
	}

	feature, threshold, gain := bestSplit(features, residuals, indices)
	if gain <= residualTolerance {
		return &TreeNode{Leaf: true, Value: leafValue}
	}

	var left, right []int
	for _, i := range indices {
		if features[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      growTree(features, residuals, left, depth-1),
		Right:     growTree(features, residuals, right, depth-1),
	}
}

// bestSplit scans every feature for the threshold that maximizes
// squared-error reduction. Ties keep the first candidate found (lowest
// feature index, then lowest threshold), which keeps training deterministic.
func bestSplit(features [][]float64, residuals []float64, indices []int) (int, float64, float64) {
	n := len(indices)

	var totalSum, totalSq float64
	for _, i := range indices {
		totalSum += residuals[i]
		totalSq += residuals[i] * residuals[i]
	}
	totalSSE := totalSq - totalSum*totalSum/float64(n)

	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 0.0

	numFeatures := len(features[indices[0]])
	order := make([]int, n)

	for f := 0; f < numFeatures; f++ {
		copy(order, indices)
		sort.SliceStable(order, func(a, b int) bool {
			return features[order[a]][f] < features[order[b]][f]
		})

		var leftSum, leftSq float64
		for pos := 0; pos < n-1; pos++ {
			i := order[pos]
			leftSum += residuals[i]
			leftSq += residuals[i] * residuals[i]

			cur := features[i][f]
			next := features[order[pos+1]][f]
			if cur == next {
				continue
			}

			leftN := float64(pos + 1)
			rightN := float64(n - pos - 1)
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq

			leftSSE := leftSq - leftSum*leftSum/leftN
			rightSSE := rightSq - rightSum*rightSum/rightN
			gain := totalSSE - leftSSE - rightSSE

			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = (cur + next) / 2
			}
		}
	}

	return bestFeature, bestThreshold, bestGain
}

func meanAt(values []float64, indices []int) float64 {
	if len(indices) == 0 {
		return 0
	}
	var sum float64
	for _, i := range indices {
		sum += values[i]
	}
	return sum / float64(len(indices))
}
