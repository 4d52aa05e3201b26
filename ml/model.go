package ml

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"retailcast/dataset"
)

// targetColumn is the label: daily sales quantity per SKU.
const targetColumn = "quantity"

// Feature names must contain only word characters and hyphens; anything
// else is replaced with an underscore. Applied identically at training
// and inference so the stored feature list always matches.
var featureNameSanitizer = regexp.MustCompile(`[^\w\-]`)

func sanitizeFeatureName(name string) string {
	return featureNameSanitizer.ReplaceAllString(name, "_")
}

// Metadata describes a training run.
type Metadata struct {
	TrainedAt   string        `json:"trained_at"`
	NumFeatures int           `json:"num_features"`
	Params      BoosterParams `json:"params"`
}

// DemandModel ties the full forecasting pipeline together: feature
// engineering, categorical encoding, target transformation, the boosted
// ensemble, and the frozen feature list. After Fit or Load the model is
// read-only and safe for concurrent Predict calls.
type DemandModel struct {
	booster     *Booster
	featureCols []string
	encoder     *CategoryEncoder
	target      TargetTransform
	meta        Metadata
}

// NewDemandModel returns an untrained model.
func NewDemandModel() *DemandModel {
	return &DemandModel{
		encoder: NewCategoryEncoder(),
		target:  NewLog1pTransform(),
	}
}

// Trained reports whether the model holds a fitted ensemble.
func (m *DemandModel) Trained() bool { return m.booster != nil }

// Metadata returns the training metadata.
func (m *DemandModel) Metadata() Metadata { return m.meta }

// FeatureColumns returns the frozen, sanitized feature list.
func (m *DemandModel) FeatureColumns() []string {
	return append([]string(nil), m.featureCols...)
}

// Fit runs the training pipeline on a time split: engineer features,
// fit and apply the encoder, freeze the feature list, transform the
// target, and boost with early stopping against the validation set.
// Empty train or validation partitions fail fast.
func (m *DemandModel) Fit(split dataset.Split, params BoosterParams) error {
	if m.Trained() {
		return errors.New("model already trained")
	}
	if split.Train == nil || split.Train.Len() == 0 {
		return errors.New("training set is empty")
	}
	if split.Val == nil || split.Val.Len() == 0 {
		return errors.New("validation set is empty")
	}

	train := EngineerFeatures(split.Train)
	val := EngineerFeatures(split.Val)

	if err := m.encoder.Fit(train); err != nil {
		return err
	}
	if err := m.encoder.Transform(train); err != nil {
		return err
	}
	if err := m.encoder.Transform(val); err != nil {
		return err
	}

	m.featureCols = nil
	for _, name := range train.Columns() {
		if name == targetColumn {
			continue
		}
		m.featureCols = append(m.featureCols, sanitizeFeatureName(name))
	}

	trainX, err := featureMatrix(train, m.featureCols)
	if err != nil {
		return fmt.Errorf("training features: %w", err)
	}
	valX, err := featureMatrix(val, m.featureCols)
	if err != nil {
		return fmt.Errorf("validation features: %w", err)
	}
	trainY, err := targetVector(train)
	if err != nil {
		return err
	}
	valY, err := targetVector(val)
	if err != nil {
		return err
	}

	booster, err := TrainBooster(params, trainX, m.target.Apply(trainY), valX, m.target.Apply(valY))
	if err != nil {
		return err
	}

	m.booster = booster
	m.meta = Metadata{
		TrainedAt:   time.Now().UTC().Format(time.RFC3339),
		NumFeatures: len(m.featureCols),
		Params:      params,
	}
	return nil
}

// Predict runs the inference pipeline on raw observation rows: engineer
// features, encode with the frozen vocabulary, predict, and invert the
// target transform (clamped at zero). It fails with the missing column
// name if a required feature is absent after engineering.
func (m *DemandModel) Predict(f *dataset.Frame) ([]float64, error) {
	if !m.Trained() {
		return nil, errors.New("no model loaded")
	}
	if f.Len() == 0 {
		return nil, errors.New("no rows to predict")
	}

	engineered := EngineerFeatures(f)
	if err := m.encoder.Transform(engineered); err != nil {
		return nil, err
	}
	X, err := featureMatrix(engineered, m.featureCols)
	if err != nil {
		return nil, err
	}
	return m.target.Invert(m.booster.Predict(X)), nil
}

// EvaluateFrame predicts a raw frame and scores it against its quantity
// column on the original scale.
func (m *DemandModel) EvaluateFrame(f *dataset.Frame) (Metrics, error) {
	preds, err := m.Predict(f)
	if err != nil {
		return Metrics{}, err
	}
	actual, ok := f.Num(targetColumn)
	if !ok {
		return Metrics{}, fmt.Errorf("frame has no %s column", targetColumn)
	}
	return Evaluate(actual, preds)
}

// featureMatrix extracts the frozen feature columns from an engineered,
// encoded frame as row-major vectors. Column lookup goes through the same
// sanitization as training, so raw names still resolve. Two raw columns
// collapsing to one sanitized name would make values unattributable, so
// that is an error.
func featureMatrix(f *dataset.Frame, cols []string) ([][]float64, error) {
	lookup := make(map[string]string, len(f.Columns()))
	for _, name := range f.Columns() {
		key := sanitizeFeatureName(name)
		if prev, ok := lookup[key]; ok && prev != name {
			return nil, fmt.Errorf("columns %s and %s collide after feature name sanitization", prev, name)
		}
		lookup[key] = name
	}

	columns := make([][]float64, len(cols))
	for i, col := range cols {
		orig, ok := lookup[col]
		if !ok {
			return nil, fmt.Errorf("required feature column %s is missing", col)
		}
		vals, ok := f.Num(orig)
		if !ok {
			return nil, fmt.Errorf("required feature column %s is not numeric", col)
		}
		columns[i] = vals
	}

	X := make([][]float64, f.Len())
	for r := range X {
		row := make([]float64, len(cols))
		for c := range cols {
			row[c] = columns[c][r]
		}
		X[r] = row
	}
	return X, nil
}

func targetVector(f *dataset.Frame) ([]float64, error) {
	y, ok := f.Num(targetColumn)
	if !ok {
		return nil, fmt.Errorf("frame has no %s column", targetColumn)
	}
	return y, nil
}
