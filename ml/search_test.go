package ml

import (
	"context"
	"testing"

	"retailcast/dataset"
)

func TestGridSearchRanksByValidationMAE(t *testing.T) {
	split, err := dataset.TimeSplit(retailFrame(t, 100), 14, 14)
	if err != nil {
		t.Fatal(err)
	}

	base := DefaultBoosterParams()
	base.Rounds = 20
	base.EarlyStopping = 10
	space := SearchSpace{
		MaxDepth:     []int{2, 4},
		LearningRate: []float64{0.1},
	}

	results, err := GridSearch(context.Background(), base, space, split)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	for i, r := range results {
		if r.Rank != i+1 {
			t.Fatalf("result %d has rank %d", i, r.Rank)
		}
		if i > 0 && results[i-1].Metrics.MAE > r.Metrics.MAE {
			t.Fatalf("results not sorted by MAE: %v > %v", results[i-1].Metrics.MAE, r.Metrics.MAE)
		}
	}
	// Untouched dimensions stay at the base configuration.
	if results[0].Params.RegLambda != base.RegLambda {
		t.Fatalf("reg lambda = %v, want base %v", results[0].Params.RegLambda, base.RegLambda)
	}
}

func TestGridSearchCancellation(t *testing.T) {
	split, err := dataset.TimeSplit(retailFrame(t, 100), 14, 14)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := GridSearch(ctx, DefaultBoosterParams(), DefaultSearchSpace(), split); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestGridSearchEmptySpaceUsesBase(t *testing.T) {
	split, err := dataset.TimeSplit(retailFrame(t, 100), 14, 14)
	if err != nil {
		t.Fatal(err)
	}

	base := DefaultBoosterParams()
	base.Rounds = 15
	base.EarlyStopping = 5

	results, err := GridSearch(context.Background(), base, SearchSpace{}, split)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Params != base {
		t.Fatalf("params = %+v, want base", results[0].Params)
	}
}
