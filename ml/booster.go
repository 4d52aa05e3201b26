package ml

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// BoosterParams are the gradient boosting hyperparameters. The defaults
// reproduce the production training configuration.
type BoosterParams struct {
	MaxDepth        int     `json:"max_depth"`
	MinChildWeight  float64 `json:"min_child_weight"`
	Subsample       float64 `json:"subsample"`
	ColsampleByTree float64 `json:"colsample_bytree"`
	LearningRate    float64 `json:"learning_rate"`
	RegAlpha        float64 `json:"reg_alpha"`
	RegLambda       float64 `json:"reg_lambda"`
	Rounds          int     `json:"num_boost_round"`
	EarlyStopping   int     `json:"early_stopping_rounds"`
	Seed            int64   `json:"random_state"`
}

// DefaultBoosterParams returns the production hyperparameters.
func DefaultBoosterParams() BoosterParams {
	return BoosterParams{
		MaxDepth:        4,
		MinChildWeight:  5,
		Subsample:       0.8,
		ColsampleByTree: 0.8,
		LearningRate:    0.05,
		RegAlpha:        1.0,
		RegLambda:       5.0,
		Rounds:          2000,
		EarlyStopping:   100,
		Seed:            42,
	}
}

// TreeNode is one node of a regression tree, flattened into a slice with
// child indices. Rows with value <= Threshold go left.
type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Leaf      bool    `json:"leaf"`
	Value     float64 `json:"value"`
}

// RegTree is a single regression tree. Leaf values already include the
// learning rate.
type RegTree struct {
	Nodes []TreeNode `json:"nodes"`
}

func (t *RegTree) predict(row []float64) float64 {
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.Leaf {
			return node.Value
		}
		if row[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// Booster is a trained gradient-boosted tree ensemble for squared-error
// regression. Trees are kept only up to the best validation iteration, so
// Predict always answers at the early-stopped state.
type Booster struct {
	Trees         []RegTree `json:"trees"`
	BaseScore     float64   `json:"base_score"`
	BestIteration int       `json:"best_iteration"`
	BestScore     float64   `json:"best_score"`
}

// Predict sums the ensemble over each feature row.
func (b *Booster) Predict(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, row := range X {
		pred := b.BaseScore
		for ti := range b.Trees {
			pred += b.Trees[ti].predict(row)
		}
		out[i] = pred
	}
	return out
}

// TrainBooster fits an ensemble on the training matrix with early
// stopping against validation mean absolute error (computed in the
// transformed target space). Training and validation sets must be
// non-empty: an empty partition from the time splitter fails here.
func TrainBooster(p BoosterParams, X [][]float64, y []float64, valX [][]float64, valY []float64) (*Booster, error) {
	if len(X) == 0 {
		return nil, errors.New("training set is empty")
	}
	if len(valX) == 0 {
		return nil, errors.New("validation set is empty")
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("train rows %d != labels %d", len(X), len(y))
	}
	if len(valX) != len(valY) {
		return nil, fmt.Errorf("validation rows %d != labels %d", len(valX), len(valY))
	}
	numFeatures := len(X[0])
	if numFeatures == 0 {
		return nil, errors.New("no feature columns")
	}
	if p.Rounds <= 0 {
		return nil, fmt.Errorf("rounds must be positive, got %d", p.Rounds)
	}

	rng := rand.New(rand.NewSource(p.Seed))
	booster := &Booster{BaseScore: 0.5}

	preds := constant(len(X), booster.BaseScore)
	valPreds := constant(len(valX), booster.BaseScore)
	grad := make([]float64, len(X))

	bestScore := math.Inf(1)
	bestIter := 0
	for round := 0; round < p.Rounds; round++ {
		// Squared-error gradient; the hessian is 1 per row, so child
		// weights are row counts.
		for i := range grad {
			grad[i] = preds[i] - y[i]
		}

		rows := sampleIndices(rng, len(X), p.Subsample)
		cols := sampleIndices(rng, numFeatures, p.ColsampleByTree)
		tree := RegTree{Nodes: buildBoostNodes(X, grad, rows, cols, 0, p)}

		for i, row := range X {
			preds[i] += tree.predict(row)
		}
		for i, row := range valX {
			valPreds[i] += tree.predict(row)
		}
		booster.Trees = append(booster.Trees, tree)

		score := meanAbsError(valPreds, valY)
		if score < bestScore {
			bestScore = score
			bestIter = round
		} else if p.EarlyStopping > 0 && round-bestIter >= p.EarlyStopping {
			break
		}
	}

	booster.Trees = booster.Trees[:bestIter+1]
	booster.BestIteration = bestIter
	booster.BestScore = bestScore
	return booster, nil
}

// buildBoostNodes grows one tree on the sampled rows and columns,
// returning a flattened node slice with the subtree root at index 0.
func buildBoostNodes(X [][]float64, grad []float64, rows, cols []int, depth int, p BoosterParams) []TreeNode {
	sumG := 0.0
	for _, r := range rows {
		sumG += grad[r]
	}
	sumH := float64(len(rows))

	leaf := func() []TreeNode {
		return []TreeNode{{
			Feature: -1,
			Left:    -1,
			Right:   -1,
			Leaf:    true,
			Value:   leafWeight(sumG, sumH, p) * p.LearningRate,
		}}
	}

	if depth >= p.MaxDepth || sumH < 2*p.MinChildWeight {
		return leaf()
	}

	feature, threshold, ok := findBoostSplit(X, grad, rows, cols, sumG, sumH, p)
	if !ok {
		return leaf()
	}

	var leftRows, rightRows []int
	for _, r := range rows {
		if X[r][feature] <= threshold {
			leftRows = append(leftRows, r)
		} else {
			rightRows = append(rightRows, r)
		}
	}
	if len(leftRows) == 0 || len(rightRows) == 0 {
		return leaf()
	}

	leftNodes := buildBoostNodes(X, grad, leftRows, cols, depth+1, p)
	rightNodes := buildBoostNodes(X, grad, rightRows, cols, depth+1, p)

	root := TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      1,
		Right:     1 + len(leftNodes),
	}
	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, shiftChildren(leftNodes, 1)...)
	nodes = append(nodes, shiftChildren(rightNodes, 1+len(leftNodes))...)
	return nodes
}

func shiftChildren(nodes []TreeNode, offset int) []TreeNode {
	for i := range nodes {
		if !nodes[i].Leaf {
			nodes[i].Left += offset
			nodes[i].Right += offset
		}
	}
	return nodes
}

// findBoostSplit scans the sampled columns for the split with the best
// regularized gain. Children below the minimum weight are rejected.
func findBoostSplit(X [][]float64, grad []float64, rows, cols []int, sumG, sumH float64, p BoosterParams) (int, float64, bool) {
	parentScore := splitScore(sumG, sumH, p)
	bestGain := 1e-12
	bestFeature := -1
	bestThreshold := 0.0

	type sample struct {
		value float64
		grad  float64
		row   int
	}
	samples := make([]sample, len(rows))

	for _, j := range cols {
		for i, r := range rows {
			samples[i] = sample{value: X[r][j], grad: grad[r], row: r}
		}
		sort.Slice(samples, func(a, b int) bool {
			if samples[a].value != samples[b].value {
				return samples[a].value < samples[b].value
			}
			return samples[a].row < samples[b].row
		})

		gl, hl := 0.0, 0.0
		for i := 0; i < len(samples)-1; i++ {
			gl += samples[i].grad
			hl++
			if samples[i].value == samples[i+1].value {
				continue
			}
			gr := sumG - gl
			hr := sumH - hl
			if hl < p.MinChildWeight || hr < p.MinChildWeight {
				continue
			}
			gain := splitScore(gl, hl, p) + splitScore(gr, hr, p) - parentScore
			if gain > bestGain {
				bestGain = gain
				bestFeature = j
				bestThreshold = (samples[i].value + samples[i+1].value) / 2
			}
		}
	}

	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

// leafWeight is the L1-thresholded, L2-regularized optimal leaf value.
func leafWeight(sumG, sumH float64, p BoosterParams) float64 {
	return -thresholdL1(sumG, p.RegAlpha) / (sumH + p.RegLambda)
}

func splitScore(sumG, sumH float64, p BoosterParams) float64 {
	g := thresholdL1(sumG, p.RegAlpha)
	return g * g / (sumH + p.RegLambda)
}

func thresholdL1(g, alpha float64) float64 {
	switch {
	case g > alpha:
		return g - alpha
	case g < -alpha:
		return g + alpha
	default:
		return 0
	}
}

// sampleIndices draws a sorted fraction of [0,n) without replacement.
func sampleIndices(rng *rand.Rand, n int, fraction float64) []int {
	k := int(float64(n)*fraction + 0.5)
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	idx := rng.Perm(n)[:k]
	sort.Ints(idx)
	return idx
}

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func meanAbsError(pred, truth []float64) float64 {
	sum := 0.0
	for i := range pred {
		sum += math.Abs(pred[i] - truth[i])
	}
	return sum / float64(len(pred))
}
