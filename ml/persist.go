package ml

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact file names are a durable contract; consumers may rely on them.
const (
	modelFile       = "model.json"
	featuresFile    = "feature_columns.json"
	encodersFile    = "label_encoders.gob"
	transformerFile = "target_transformer.gob"
	metadataFile    = "model_metadata.json"
)

// Save writes the trained ensemble, the sanitized feature list, the
// encoding tables, the target transform tag, and the training metadata
// under dir. It fails if no model has been trained.
func (m *DemandModel) Save(dir string) error {
	if !m.Trained() {
		return errors.New("no trained model to save")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if err := writeJSON(filepath.Join(dir, modelFile), m.booster); err != nil {
		return fmt.Errorf("save ensemble: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, featuresFile), m.featureCols); err != nil {
		return fmt.Errorf("save feature columns: %w", err)
	}
	if err := writeGob(filepath.Join(dir, encodersFile), m.encoder.Mappings); err != nil {
		return fmt.Errorf("save label encoders: %w", err)
	}
	if err := writeGob(filepath.Join(dir, transformerFile), m.target); err != nil {
		return fmt.Errorf("save target transformer: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, metadataFile), m.meta); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

// Load restores a model from an artifact directory. Every file must be
// present and valid; a partial bundle is a fatal load error, never a
// partially-restored model.
func (m *DemandModel) Load(dir string) error {
	var booster Booster
	if err := readJSON(filepath.Join(dir, modelFile), &booster); err != nil {
		return fmt.Errorf("load ensemble: %w", err)
	}
	var featureCols []string
	if err := readJSON(filepath.Join(dir, featuresFile), &featureCols); err != nil {
		return fmt.Errorf("load feature columns: %w", err)
	}
	var mappings map[string]map[string]int
	if err := readGob(filepath.Join(dir, encodersFile), &mappings); err != nil {
		return fmt.Errorf("load label encoders: %w", err)
	}
	var transform TargetTransform
	if err := readGob(filepath.Join(dir, transformerFile), &transform); err != nil {
		return fmt.Errorf("load target transformer: %w", err)
	}
	var meta Metadata
	if err := readJSON(filepath.Join(dir, metadataFile), &meta); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	// The inverse is re-derived from the tag; an unknown tag cannot be
	// served.
	validated, err := ParseTransform(transform.Method)
	if err != nil {
		return err
	}
	if len(booster.Trees) == 0 {
		return errors.New("ensemble file holds no trees")
	}

	m.booster = &booster
	m.featureCols = featureCols
	m.encoder = &CategoryEncoder{Mappings: mappings}
	m.target = validated
	m.meta = meta
	return nil
}

func writeJSON(path string, v interface{}) error {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o644)
}

func readJSON(path string, v interface{}) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(payload, v)
}

func writeGob(path string, v interface{}) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return gob.NewEncoder(file).Encode(v)
}

func readGob(path string, v interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return gob.NewDecoder(file).Decode(v)
}
