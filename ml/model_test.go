package ml

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"retailcast/dataset"
)

// retailFrame simulates daily sales history for a few SKUs with the raw
// column layout produced by the data pipeline.
func retailFrame(t *testing.T, days int) *dataset.Frame {
	t.Helper()

	skuIDs := []string{"SKU001", "SKU002", "SKU003"}
	cats := []string{"Beverages", "Snacks", "Beverages"}
	tiers := []string{"mid", "low", "high"}
	prices := []float64{3.5, 1.2, 7.9}

	n := days * len(skuIDs)
	f := dataset.NewFrame(n)
	rng := rand.New(rand.NewSource(9))
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	dates := make([]time.Time, n)
	skus := make([]string, n)
	category := make([]string, n)
	tier := make([]string, n)
	unitPrice := make([]float64, n)
	promo := make([]float64, n)
	discount := make([]float64, n)
	isWeekend := make([]float64, n)
	month := make([]float64, n)
	dayOfWeek := make([]float64, n)
	lag7 := make([]float64, n)
	lag14 := make([]float64, n)
	mean28 := make([]float64, n)
	std28 := make([]float64, n)
	pctChange7 := make([]float64, n)
	priceChange7 := make([]float64, n)
	quantity := make([]float64, n)

	i := 0
	for d := 0; d < days; d++ {
		date := start.AddDate(0, 0, d)
		for s := range skuIDs {
			dates[i] = date
			skus[i] = skuIDs[s]
			category[i] = cats[s]
			tier[i] = tiers[s]
			unitPrice[i] = prices[s]
			if rng.Float64() < 0.25 {
				promo[i] = 1
				discount[i] = 10 + rng.Float64()*20
			}
			wd := float64(date.Weekday())
			if wd == 0 || wd == 6 {
				isWeekend[i] = 1
			}
			month[i] = float64(date.Month())
			dayOfWeek[i] = wd

			base := 20.0 / prices[s]
			q := base + 3*promo[i] + 2*isWeekend[i] + rng.NormFloat64()
			quantity[i] = math.Max(math.Round(q), 0)

			lag7[i] = base + rng.NormFloat64()*0.5
			lag14[i] = base + rng.NormFloat64()*0.5
			mean28[i] = base
			std28[i] = 1 + rng.Float64()
			pctChange7[i] = rng.NormFloat64() * 0.1
			priceChange7[i] = rng.NormFloat64() * 0.05
			i++
		}
	}

	set := func(name string, vals []float64) {
		if err := f.SetNum(name, vals); err != nil {
			t.Fatal(err)
		}
	}
	set("unit_price", unitPrice)
	set("promo_flag", promo)
	set("discount_pct", discount)
	set("is_weekend", isWeekend)
	set("month", month)
	set("day_of_week", dayOfWeek)
	set("sales_lag_7", lag7)
	set("sales_lag_14", lag14)
	set("rolling_mean_28", mean28)
	set("rolling_std_28", std28)
	set("pct_change_7", pctChange7)
	set("price_change_7", priceChange7)
	set("quantity", quantity)
	if err := f.SetCat("category", category); err != nil {
		t.Fatal(err)
	}
	if err := f.SetCat("price_tier", tier); err != nil {
		t.Fatal(err)
	}
	if err := f.SetDates(dates); err != nil {
		t.Fatal(err)
	}
	if err := f.SetSKUs(skus); err != nil {
		t.Fatal(err)
	}
	return f
}

func removeArtifact(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.Remove(filepath.Join(dir, name)); err != nil {
		t.Fatal(err)
	}
}

func fittedModel(t *testing.T) (*DemandModel, dataset.Split) {
	t.Helper()
	split, err := dataset.TimeSplit(retailFrame(t, 120), 14, 14)
	if err != nil {
		t.Fatal(err)
	}
	params := DefaultBoosterParams()
	params.Rounds = 40
	params.EarlyStopping = 15

	model := NewDemandModel()
	if err := model.Fit(split, params); err != nil {
		t.Fatal(err)
	}
	return model, split
}

func TestDemandModelFitPredict(t *testing.T) {
	model, split := fittedModel(t)

	if !model.Trained() {
		t.Fatal("model not marked as trained")
	}
	if model.Metadata().NumFeatures != len(model.FeatureColumns()) {
		t.Fatal("metadata feature count disagrees with feature list")
	}

	preds, err := model.Predict(split.Test)
	if err != nil {
		t.Fatal(err)
	}
	if len(preds) != split.Test.Len() {
		t.Fatalf("got %d predictions for %d rows", len(preds), split.Test.Len())
	}
	for i, p := range preds {
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			t.Fatalf("prediction[%d] = %v, want finite and non-negative", i, p)
		}
	}

	metrics, err := model.EvaluateFrame(split.Test)
	if err != nil {
		t.Fatal(err)
	}
	if metrics.MAE < 0 || math.IsNaN(metrics.RMSE) {
		t.Fatalf("bad metrics: %+v", metrics)
	}
}

func TestDemandModelSaveLoadRoundTrip(t *testing.T) {
	model, split := fittedModel(t)
	dir := t.TempDir()
	if err := model.Save(dir); err != nil {
		t.Fatal(err)
	}

	restored := NewDemandModel()
	if err := restored.Load(dir); err != nil {
		t.Fatal(err)
	}

	want, err := model.Predict(split.Test)
	if err != nil {
		t.Fatal(err)
	}
	got, err := restored.Predict(split.Test)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("restored prediction[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDemandModelLoadRejectsPartialBundle(t *testing.T) {
	model, _ := fittedModel(t)
	dir := t.TempDir()
	if err := model.Save(dir); err != nil {
		t.Fatal(err)
	}
	removeArtifact(t, dir, featuresFile)

	if err := NewDemandModel().Load(dir); err == nil {
		t.Fatal("expected error loading bundle with a missing artifact")
	}
}

func TestDemandModelFitGuards(t *testing.T) {
	model, split := fittedModel(t)
	if err := model.Fit(split, DefaultBoosterParams()); err == nil {
		t.Fatal("expected error refitting a trained model")
	}

	empty := dataset.Split{Train: dataset.NewFrame(0), Val: split.Val, Test: split.Test}
	if err := NewDemandModel().Fit(empty, DefaultBoosterParams()); err == nil {
		t.Fatal("expected error for empty training set")
	}
}

func TestDemandModelPredictMissingFeature(t *testing.T) {
	model, split := fittedModel(t)

	stripped := dataset.NewFrame(split.Test.Len())
	for _, col := range split.Test.Columns() {
		if col == "rolling_mean_28" {
			continue
		}
		if vals, ok := split.Test.Num(col); ok {
			stripped.SetNum(col, append([]float64(nil), vals...))
		}
		if vals, ok := split.Test.Cat(col); ok {
			stripped.SetCat(col, append([]string(nil), vals...))
		}
	}

	_, err := model.Predict(stripped)
	if err == nil {
		t.Fatal("expected error for missing feature column")
	}
	if !strings.Contains(err.Error(), "missing") {
		t.Fatalf("error does not name the missing column: %v", err)
	}
}

func TestDemandModelPredictUnseenCategory(t *testing.T) {
	model, split := fittedModel(t)

	oov := split.Test.Copy()
	cats, ok := oov.Cat("category")
	if !ok {
		t.Fatal("test frame has no category column")
	}
	for i := range cats {
		cats[i] = "Frozen Foods"
	}
	preds, err := model.Predict(oov)
	if err != nil {
		t.Fatalf("unseen category should still predict: %v", err)
	}
	if len(preds) != oov.Len() {
		t.Fatalf("got %d predictions for %d rows", len(preds), oov.Len())
	}
}

func TestFeatureMatrixRejectsSanitizationCollision(t *testing.T) {
	f := dataset.NewFrame(2)
	if err := f.SetNum("rolling.mean", []float64{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := f.SetNum("rolling:mean", []float64{3, 4}); err != nil {
		t.Fatal(err)
	}

	_, err := featureMatrix(f, []string{"rolling_mean"})
	if err == nil {
		t.Fatal("expected error for columns that collide after sanitization")
	}
	if !strings.Contains(err.Error(), "collide") {
		t.Fatalf("error does not report the collision: %v", err)
	}
}

func TestDemandModelPredictUntrained(t *testing.T) {
	if _, err := NewDemandModel().Predict(retailFrame(t, 30)); err == nil {
		t.Fatal("expected error predicting with an untrained model")
	}
}
