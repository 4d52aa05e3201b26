package ml

import (
	"math"
	"testing"

	"retailcast/dataset"
)

func fullInputFrame(t *testing.T) *dataset.Frame {
	t.Helper()
	f := dataset.NewFrame(3)
	set := func(name string, vals []float64) {
		if err := f.SetNum(name, vals); err != nil {
			t.Fatal(err)
		}
	}
	set("unit_price", []float64{2, 4, 3})
	set("promo_flag", []float64{1, 0, 1})
	set("discount_pct", []float64{10, 0, 5})
	set("is_weekend", []float64{0, 1, 1})
	set("month", []float64{1, 6, 12})
	set("day_of_week", []float64{0, 3, 6})
	set("sales_lag_7", []float64{10, 20, 0})
	set("sales_lag_14", []float64{5, 20, 4})
	set("rolling_mean_28", []float64{8, 16, 0})
	set("rolling_std_28", []float64{2, 4, 0})
	set("price_change_7", []float64{0.5, 0, -0.2})
	set("pct_change_7", []float64{0.1, 0.3, 0.2})
	if err := f.SetCat("price_tier", []string{"mid", "high", "mid"}); err != nil {
		t.Fatal(err)
	}
	set("quantity", []float64{12, 18, 3})
	return f
}

func TestEngineerFeaturesInteractions(t *testing.T) {
	out := EngineerFeatures(fullInputFrame(t))

	checks := []struct {
		col  string
		row  int
		want float64
	}{
		{"price_promo_interaction", 0, 2},
		{"price_promo_interaction", 1, 0},
		{"discount_intensity", 0, 10},
		{"weekend_promo", 2, 1},
		{"month_promo", 2, 12},
		{"month_sin", 1, math.Sin(2 * math.Pi * 6 / 12)},
		{"day_cos", 0, 1},
	}
	for _, c := range checks {
		col, ok := out.Num(c.col)
		if !ok {
			t.Fatalf("missing derived column %s", c.col)
		}
		if math.Abs(col[c.row]-c.want) > 1e-9 {
			t.Fatalf("%s[%d] = %v, want %v", c.col, c.row, col[c.row], c.want)
		}
	}

	// ngroup codes in first-seen order: (mid,1)=0, (high,0)=1, (mid,1)=0.
	groups, ok := out.Num("price_tier_promo")
	if !ok {
		t.Fatal("missing price_tier_promo")
	}
	if groups[0] != 0 || groups[1] != 1 || groups[2] != 0 {
		t.Fatalf("group codes = %v", groups)
	}
}

func TestEngineerFeaturesAddOnly(t *testing.T) {
	in := fullInputFrame(t)
	before := len(in.Columns())
	out := EngineerFeatures(in)

	if len(in.Columns()) != before {
		t.Fatal("input frame was mutated")
	}
	if len(out.Columns()) <= before {
		t.Fatal("no derived columns added")
	}
	for _, col := range in.Columns() {
		if !out.HasNum(col) && !out.HasCat(col) {
			t.Fatalf("existing column %s was dropped", col)
		}
	}
}

func TestEngineerFeaturesGuards(t *testing.T) {
	// Only a lag column: every interaction requiring promo_flag or
	// rolling stats must be silently skipped.
	f := dataset.NewFrame(2)
	f.SetNum("sales_lag_7", []float64{1, 2})

	out := EngineerFeatures(f)
	for _, col := range []string{"price_promo_interaction", "cv_28", "momentum_7_14", "month_sin"} {
		if out.HasNum(col) {
			t.Fatalf("%s engineered without its inputs", col)
		}
	}
}

func TestEngineerFeaturesZeroRollingStats(t *testing.T) {
	f := dataset.NewFrame(1)
	f.SetNum("rolling_mean_28", []float64{0})
	f.SetNum("rolling_std_28", []float64{0})

	out := EngineerFeatures(f)
	cv, ok := out.Num("cv_28")
	if !ok {
		t.Fatal("missing cv_28")
	}
	if cv[0] != 0 {
		t.Fatalf("cv_28 = %v, want 0", cv[0])
	}
}

func TestEngineerFeaturesFinite(t *testing.T) {
	f := fullInputFrame(t)
	// Poison an input with NaN and an engineered denominator with a
	// value that drives the ratio to +Inf.
	lag, _ := f.Num("sales_lag_7")
	lag[1] = math.NaN()

	out := EngineerFeatures(f)
	for _, name := range out.Columns() {
		col, ok := out.Num(name)
		if !ok {
			continue
		}
		for i, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				t.Fatalf("%s[%d] = %v, want finite", name, i, v)
			}
		}
	}
}
