package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"retailcast/dataset"
	"retailcast/db"
	"retailcast/ml"
)

func main() {
	dataPath := flag.String("data", "", "engineered dataset CSV")
	modelDir := flag.String("model_dir", "./saved_models", "artifact output directory")
	testDays := flag.Int("test_days", 30, "days held out for the test set")
	valDays := flag.Int("val_days", 14, "days held out for the validation set")
	dbPath := flag.String("db", "", "optional sqlite database for the training log")
	tune := flag.Bool("tune", false, "grid-search hyperparameters before the final fit")
	flag.Parse()

	if *dataPath == "" {
		log.Fatal("data is required")
	}

	frame, err := dataset.Load(*dataPath)
	if err != nil {
		log.Fatalf("failed to load dataset: %v", err)
	}
	log.Printf("loaded %d rows from %s", frame.Len(), *dataPath)

	split, err := dataset.TimeSplit(frame, *testDays, *valDays)
	if err != nil {
		log.Fatalf("failed to split dataset: %v", err)
	}
	log.Printf("split: train=%d val=%d test=%d (val from %s, test from %s)",
		split.Train.Len(), split.Val.Len(), split.Test.Len(),
		split.ValStart.Format("2006-01-02"), split.TestStart.Format("2006-01-02"))

	params := ml.DefaultBoosterParams()
	if *tune {
		log.Printf("starting hyperparameter grid search")
		results, err := ml.GridSearch(context.Background(), params, ml.DefaultSearchSpace(), split)
		if err != nil {
			log.Fatalf("grid search failed: %v", err)
		}
		for _, r := range results {
			log.Printf("candidate #%d: depth=%d lr=%.3f lambda=%.1f val_mae=%.4f",
				r.Rank, r.Params.MaxDepth, r.Params.LearningRate, r.Params.RegLambda, r.Metrics.MAE)
		}
		params = results[0].Params
	}

	model := ml.NewDemandModel()
	start := time.Now()
	if err := model.Fit(split, params); err != nil {
		log.Fatalf("training failed: %v", err)
	}
	log.Printf("training complete in %v (%d features)", time.Since(start).Round(time.Second), model.Metadata().NumFeatures)

	reportMetrics(model, "train", split.Train)
	reportMetrics(model, "validation", split.Val)
	var testMetrics ml.Metrics
	if split.Test.Len() > 0 {
		testMetrics = reportMetrics(model, "test", split.Test)
	} else {
		log.Printf("test set is empty, skipping evaluation")
	}

	if err := os.MkdirAll(*modelDir, 0o755); err != nil {
		log.Fatalf("failed to create model dir: %v", err)
	}
	if err := model.Save(*modelDir); err != nil {
		log.Fatalf("failed to save model: %v", err)
	}

	if *dbPath != "" {
		if err := db.InitDB(*dbPath); err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()
		err := db.InsertTrainingLog("demand_gbt",
			testMetrics.MAE, testMetrics.RMSE, testMetrics.R2, testMetrics.MAPE,
			time.Now(), frame.Len())
		if err != nil {
			log.Fatalf("failed to record training log: %v", err)
		}
	}

	abs, _ := filepath.Abs(*modelDir)
	fmt.Printf("model saved to %s\n", abs)
}

func reportMetrics(model *ml.DemandModel, name string, f *dataset.Frame) ml.Metrics {
	metrics, err := model.EvaluateFrame(f)
	if err != nil {
		log.Fatalf("failed to evaluate %s set: %v", name, err)
	}
	log.Printf("%s: mae=%.4f rmse=%.4f r2=%.4f mape=%.2f%%", name, metrics.MAE, metrics.RMSE, metrics.R2, metrics.MAPE)
	return metrics
}
