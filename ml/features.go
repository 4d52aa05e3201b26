// Package ml implements the demand forecasting core: feature
// engineering, categorical encoding, target transformation, the
// gradient-boosted tree ensemble, evaluation metrics, and artifact
// persistence.
package ml

import (
	"fmt"
	"math"

	"retailcast/dataset"
)

// eps guards every ratio feature against zero denominators.
const eps = 1e-10

// derivedFeature declares one engineered column: its required input
// columns and how to compute it. A feature whose inputs are missing from
// the frame is skipped, which permits leaner inputs at inference time.
type derivedFeature struct {
	name      string
	numInputs []string
	catInputs []string
	compute   func(f *dataset.Frame) []float64
}

func (d derivedFeature) applicable(f *dataset.Frame) bool {
	for _, col := range d.numInputs {
		if !f.HasNum(col) {
			return false
		}
	}
	for _, col := range d.catInputs {
		// An already-encoded numeric column also satisfies the input.
		if !f.HasCat(col) && !f.HasNum(col) {
			return false
		}
	}
	return true
}

// derivedFeatures is evaluated in order; the order fixes the engineered
// column layout and therefore the trained feature set.
var derivedFeatures = []derivedFeature{
	{
		name:      "price_promo_interaction",
		numInputs: []string{"unit_price", "promo_flag"},
		compute:   productOf("unit_price", "promo_flag"),
	},
	{
		name:      "discount_intensity",
		numInputs: []string{"discount_pct", "promo_flag"},
		compute:   productOf("discount_pct", "promo_flag"),
	},
	{
		name:      "weekend_promo",
		numInputs: []string{"is_weekend", "promo_flag"},
		compute:   productOf("is_weekend", "promo_flag"),
	},
	{
		name:      "month_promo",
		numInputs: []string{"month", "promo_flag"},
		compute:   productOf("month", "promo_flag"),
	},
	{
		name:      "current_vs_avg",
		numInputs: []string{"sales_lag_7", "rolling_mean_28"},
		compute:   ratioOf("sales_lag_7", "rolling_mean_28"),
	},
	{
		name:      "price_tier_promo",
		numInputs: []string{"promo_flag"},
		catInputs: []string{"price_tier"},
		compute:   priceTierPromoGroups,
	},
	{
		name:      "cv_28",
		numInputs: []string{"rolling_std_28", "rolling_mean_28"},
		compute:   ratioOf("rolling_std_28", "rolling_mean_28"),
	},
	{
		name:      "momentum_7_14",
		numInputs: []string{"sales_lag_7", "sales_lag_14"},
		compute: func(f *dataset.Frame) []float64 {
			lag7, _ := f.Num("sales_lag_7")
			lag14, _ := f.Num("sales_lag_14")
			out := make([]float64, f.Len())
			for i := range out {
				out[i] = (lag7[i] - lag14[i]) / (lag14[i] + eps)
			}
			return out
		},
	},
	{
		name:      "turnover_proxy",
		numInputs: []string{"sales_lag_7", "rolling_mean_28"},
		compute:   ratioOf("sales_lag_7", "rolling_mean_28"),
	},
	{
		name:      "price_elasticity_proxy",
		numInputs: []string{"pct_change_7", "price_change_7"},
		compute:   ratioOf("pct_change_7", "price_change_7"),
	},
	{
		name:      "month_sin",
		numInputs: []string{"month"},
		compute:   cyclical("month", 12, math.Sin),
	},
	{
		name:      "month_cos",
		numInputs: []string{"month"},
		compute:   cyclical("month", 12, math.Cos),
	},
	{
		name:      "day_sin",
		numInputs: []string{"day_of_week"},
		compute:   cyclical("day_of_week", 7, math.Sin),
	},
	{
		name:      "day_cos",
		numInputs: []string{"day_of_week"},
		compute:   cyclical("day_of_week", 7, math.Cos),
	},
}

// EngineerFeatures returns a copy of the frame with the derived
// interaction and seasonal columns appended. It never removes columns.
// After generation every numeric column is scrubbed: NaN and ±Inf become
// 0, so the output contains only finite values.
func EngineerFeatures(f *dataset.Frame) *dataset.Frame {
	out := f.Copy()
	for _, d := range derivedFeatures {
		if !d.applicable(out) {
			continue
		}
		// Computed column length always matches the frame.
		out.SetNum(d.name, d.compute(out))
	}
	fillNonFinite(out)
	return out
}

func fillNonFinite(f *dataset.Frame) {
	for _, name := range f.Columns() {
		col, ok := f.Num(name)
		if !ok {
			continue
		}
		for i, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				col[i] = 0
			}
		}
	}
}

func productOf(a, b string) func(f *dataset.Frame) []float64 {
	return func(f *dataset.Frame) []float64 {
		av, _ := f.Num(a)
		bv, _ := f.Num(b)
		out := make([]float64, f.Len())
		for i := range out {
			out[i] = av[i] * bv[i]
		}
		return out
	}
}

func ratioOf(num, den string) func(f *dataset.Frame) []float64 {
	return func(f *dataset.Frame) []float64 {
		nv, _ := f.Num(num)
		dv, _ := f.Num(den)
		out := make([]float64, f.Len())
		for i := range out {
			out[i] = nv[i] / (dv[i] + eps)
		}
		return out
	}
}

func cyclical(col string, period float64, fn func(float64) float64) func(f *dataset.Frame) []float64 {
	return func(f *dataset.Frame) []float64 {
		vals, _ := f.Num(col)
		out := make([]float64, f.Len())
		for i, v := range vals {
			out[i] = fn(2 * math.Pi * v / period)
		}
		return out
	}
}

// priceTierPromoGroups assigns a joint code to each (price_tier,
// promo_flag) pair in first-seen order within the current frame.
func priceTierPromoGroups(f *dataset.Frame) []float64 {
	promo, _ := f.Num("promo_flag")
	keys := make([]string, f.Len())
	if tiers, ok := f.Cat("price_tier"); ok {
		for i := range keys {
			keys[i] = fmt.Sprintf("%s|%g", tiers[i], promo[i])
		}
	} else {
		tiers, _ := f.Num("price_tier")
		for i := range keys {
			keys[i] = fmt.Sprintf("%g|%g", tiers[i], promo[i])
		}
	}

	codes := make(map[string]int)
	out := make([]float64, f.Len())
	for i, key := range keys {
		code, ok := codes[key]
		if !ok {
			code = len(codes)
			codes[key] = code
		}
		out[i] = float64(code)
	}
	return out
}
