package ml

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Metrics are regression errors on the original (inverse-transformed)
// quantity scale.
type Metrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
	MAPE float64 `json:"mape"`
}

// Evaluate computes MAE, RMSE, R² and MAPE for predicted against true
// quantities. MAPE divides by (true + eps) so zero-quantity rows do not
// blow up.
func Evaluate(yTrue, yPred []float64) (Metrics, error) {
	if len(yTrue) == 0 {
		return Metrics{}, errors.New("no observations to evaluate")
	}
	if len(yTrue) != len(yPred) {
		return Metrics{}, errors.New("true and predicted lengths differ")
	}

	n := float64(len(yTrue))
	absSum := 0.0
	sqSum := 0.0
	pctSum := 0.0
	for i := range yTrue {
		diff := yTrue[i] - yPred[i]
		absSum += math.Abs(diff)
		sqSum += diff * diff
		pctSum += math.Abs(diff) / (yTrue[i] + eps)
	}

	return Metrics{
		MAE:  absSum / n,
		RMSE: math.Sqrt(sqSum / n),
		R2:   stat.RSquaredFrom(yPred, yTrue, nil),
		MAPE: pctSum / n * 100,
	}, nil
}
