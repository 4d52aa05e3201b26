package ml

import (
	"errors"
	"fmt"

	"retailcast/dataset"
)

// OOVCode is the reserved code for categorical values never seen during fit.
const OOVCode = -1

// categoricalColumns are the raw attribute columns eligible for label
// encoding. Only the ones present in a frame are touched.
var categoricalColumns = []string{
	"category",
	"sub_category",
	"brand",
	"product_type",
	"size_label",
	"price_tier",
}

// CategoryEncoder maps categorical string values to stable integer codes.
// Fit assigns codes in first-seen order over the training frame and may
// run exactly once per encoder; Transform looks codes up and substitutes
// OOVCode for unseen values.
type CategoryEncoder struct {
	Mappings map[string]map[string]int
}

func NewCategoryEncoder() *CategoryEncoder {
	return &CategoryEncoder{}
}

// Fitted reports whether Fit has run.
func (e *CategoryEncoder) Fitted() bool { return e.Mappings != nil }

// Fit learns value→code tables from the training frame. Calling Fit on an
// already-fitted encoder is an error: the vocabulary is frozen for the
// model lifecycle.
func (e *CategoryEncoder) Fit(f *dataset.Frame) error {
	if e.Fitted() {
		return errors.New("encoder already fitted")
	}
	mappings := make(map[string]map[string]int)
	for _, col := range categoricalColumns {
		values, ok := f.Cat(col)
		if !ok {
			continue
		}
		table := make(map[string]int)
		for _, v := range values {
			if _, seen := table[v]; !seen {
				table[v] = len(table)
			}
		}
		mappings[col] = table
	}
	e.Mappings = mappings
	return nil
}

// Transform replaces each fitted categorical column of the frame with its
// integer codes, in place. Columns without a fitted table are left alone,
// as are columns that are already numeric.
func (e *CategoryEncoder) Transform(f *dataset.Frame) error {
	if !e.Fitted() {
		return errors.New("encoder not fitted")
	}
	for _, col := range categoricalColumns {
		table, ok := e.Mappings[col]
		if !ok {
			continue
		}
		values, ok := f.Cat(col)
		if !ok {
			continue
		}
		codes := make([]float64, len(values))
		for i, v := range values {
			code, seen := table[v]
			if !seen {
				code = OOVCode
			}
			codes[i] = float64(code)
		}
		if err := f.ReplaceWithNum(col, codes); err != nil {
			return fmt.Errorf("encode %s: %w", col, err)
		}
	}
	return nil
}

// FitTransform fits on the frame and encodes it in one step.
func (e *CategoryEncoder) FitTransform(f *dataset.Frame) error {
	if err := e.Fit(f); err != nil {
		return err
	}
	return e.Transform(f)
}
