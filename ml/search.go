package ml

import (
	"context"
	"errors"
	"sort"

	"retailcast/dataset"
)

// SearchSpace lists candidate values for the tunable hyperparameters.
// An empty slice keeps the base value for that parameter.
type SearchSpace struct {
	MaxDepth     []int
	LearningRate []float64
	RegLambda    []float64
	Subsample    []float64
}

// DefaultSearchSpace returns a small grid around the production
// configuration.
func DefaultSearchSpace() SearchSpace {
	return SearchSpace{
		MaxDepth:     []int{3, 4, 6},
		LearningRate: []float64{0.05, 0.1},
		RegLambda:    []float64{1.0, 5.0},
	}
}

// SearchResult is one evaluated hyperparameter candidate, scored on the
// validation partition at the original quantity scale.
type SearchResult struct {
	Params  BoosterParams `json:"params"`
	Metrics Metrics       `json:"metrics"`
	Rank    int           `json:"rank"`
}

// GridSearch trains one model per combination of the space applied to
// the base parameters and ranks candidates by validation MAE, best
// first. The context is checked between candidates so a long grid can
// be cancelled.
func GridSearch(ctx context.Context, base BoosterParams, space SearchSpace, split dataset.Split) ([]SearchResult, error) {
	candidates := space.combinations(base)
	if len(candidates) == 0 {
		return nil, errors.New("empty search space")
	}

	results := make([]SearchResult, 0, len(candidates))
	for _, params := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		model := NewDemandModel()
		if err := model.Fit(split, params); err != nil {
			return nil, err
		}
		metrics, err := model.EvaluateFrame(split.Val)
		if err != nil {
			return nil, err
		}
		results = append(results, SearchResult{Params: params, Metrics: metrics})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Metrics.MAE < results[j].Metrics.MAE
	})
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

// combinations expands the grid against the base configuration. A nil
// dimension contributes the base value only.
func (s SearchSpace) combinations(base BoosterParams) []BoosterParams {
	depths := s.MaxDepth
	if len(depths) == 0 {
		depths = []int{base.MaxDepth}
	}
	rates := s.LearningRate
	if len(rates) == 0 {
		rates = []float64{base.LearningRate}
	}
	lambdas := s.RegLambda
	if len(lambdas) == 0 {
		lambdas = []float64{base.RegLambda}
	}
	subsamples := s.Subsample
	if len(subsamples) == 0 {
		subsamples = []float64{base.Subsample}
	}

	var out []BoosterParams
	for _, depth := range depths {
		for _, rate := range rates {
			for _, lambda := range lambdas {
				for _, sub := range subsamples {
					p := base
					p.MaxDepth = depth
					p.LearningRate = rate
					p.RegLambda = lambda
					p.Subsample = sub
					out = append(out, p)
				}
			}
		}
	}
	return out
}
