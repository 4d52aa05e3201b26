// Package dataset holds the column-oriented sales table and the
// time-based train/validation/test splitter.
package dataset

import (
	"fmt"
	"time"
)

// Frame is a column-oriented table of per-SKU sales observations.
// Numeric and categorical columns are stored separately; Date and sku_id
// are identifier columns kept outside the feature columns.
type Frame struct {
	order []string
	nums  map[string][]float64
	cats  map[string][]string
	dates []time.Time
	skus  []string
	n     int
}

// NewFrame creates an empty frame with n rows.
func NewFrame(n int) *Frame {
	return &Frame{
		nums: make(map[string][]float64),
		cats: make(map[string][]string),
		n:    n,
	}
}

// Len returns the number of rows.
func (f *Frame) Len() int { return f.n }

// Columns returns the column names in insertion order, identifiers excluded.
func (f *Frame) Columns() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// HasNum reports whether a numeric column exists.
func (f *Frame) HasNum(name string) bool {
	_, ok := f.nums[name]
	return ok
}

// HasCat reports whether a categorical column exists.
func (f *Frame) HasCat(name string) bool {
	_, ok := f.cats[name]
	return ok
}

// Num returns a numeric column. The slice is shared, not copied.
func (f *Frame) Num(name string) ([]float64, bool) {
	col, ok := f.nums[name]
	return col, ok
}

// Cat returns a categorical column. The slice is shared, not copied.
func (f *Frame) Cat(name string) ([]string, bool) {
	col, ok := f.cats[name]
	return col, ok
}

// SetNum adds or replaces a numeric column.
func (f *Frame) SetNum(name string, vals []float64) error {
	if len(vals) != f.n {
		return fmt.Errorf("column %s: have %d values, frame has %d rows", name, len(vals), f.n)
	}
	if _, ok := f.cats[name]; ok {
		return fmt.Errorf("column %s already exists as categorical", name)
	}
	if _, ok := f.nums[name]; !ok {
		f.order = append(f.order, name)
	}
	f.nums[name] = vals
	return nil
}

// SetCat adds or replaces a categorical column.
func (f *Frame) SetCat(name string, vals []string) error {
	if len(vals) != f.n {
		return fmt.Errorf("column %s: have %d values, frame has %d rows", name, len(vals), f.n)
	}
	if _, ok := f.nums[name]; ok {
		return fmt.Errorf("column %s already exists as numeric", name)
	}
	if _, ok := f.cats[name]; !ok {
		f.order = append(f.order, name)
	}
	f.cats[name] = vals
	return nil
}

// ReplaceWithNum swaps a categorical column for a numeric one of the same
// name, keeping its position in the column order. Used by the encoder.
func (f *Frame) ReplaceWithNum(name string, vals []float64) error {
	if _, ok := f.cats[name]; !ok {
		return fmt.Errorf("column %s is not categorical", name)
	}
	if len(vals) != f.n {
		return fmt.Errorf("column %s: have %d values, frame has %d rows", name, len(vals), f.n)
	}
	delete(f.cats, name)
	f.nums[name] = vals
	return nil
}

// Dates returns the Date identifier column, nil if absent.
func (f *Frame) Dates() []time.Time { return f.dates }

// SetDates sets the Date identifier column.
func (f *Frame) SetDates(dates []time.Time) error {
	if len(dates) != f.n {
		return fmt.Errorf("dates: have %d values, frame has %d rows", len(dates), f.n)
	}
	f.dates = dates
	return nil
}

// SKUs returns the sku_id identifier column, nil if absent.
func (f *Frame) SKUs() []string { return f.skus }

// SetSKUs sets the sku_id identifier column.
func (f *Frame) SetSKUs(skus []string) error {
	if len(skus) != f.n {
		return fmt.Errorf("skus: have %d values, frame has %d rows", len(skus), f.n)
	}
	f.skus = skus
	return nil
}

// MaxDate returns the latest date and whether the frame has any rows with dates.
func (f *Frame) MaxDate() (time.Time, bool) {
	if len(f.dates) == 0 {
		return time.Time{}, false
	}
	max := f.dates[0]
	for _, d := range f.dates[1:] {
		if d.After(max) {
			max = d
		}
	}
	return max, true
}

// Copy returns a deep copy of the frame.
func (f *Frame) Copy() *Frame {
	out := NewFrame(f.n)
	out.order = append([]string(nil), f.order...)
	for name, col := range f.nums {
		out.nums[name] = append([]float64(nil), col...)
	}
	for name, col := range f.cats {
		out.cats[name] = append([]string(nil), col...)
	}
	if f.dates != nil {
		out.dates = append([]time.Time(nil), f.dates...)
	}
	if f.skus != nil {
		out.skus = append([]string(nil), f.skus...)
	}
	return out
}

// Select returns a new frame containing the rows where mask is true.
func (f *Frame) Select(mask []bool) (*Frame, error) {
	if len(mask) != f.n {
		return nil, fmt.Errorf("mask has %d entries, frame has %d rows", len(mask), f.n)
	}
	kept := 0
	for _, m := range mask {
		if m {
			kept++
		}
	}
	out := NewFrame(kept)
	out.order = append([]string(nil), f.order...)
	for name, col := range f.nums {
		sub := make([]float64, 0, kept)
		for i, m := range mask {
			if m {
				sub = append(sub, col[i])
			}
		}
		out.nums[name] = sub
	}
	for name, col := range f.cats {
		sub := make([]string, 0, kept)
		for i, m := range mask {
			if m {
				sub = append(sub, col[i])
			}
		}
		out.cats[name] = sub
	}
	if f.dates != nil {
		sub := make([]time.Time, 0, kept)
		for i, m := range mask {
			if m {
				sub = append(sub, f.dates[i])
			}
		}
		out.dates = sub
	}
	if f.skus != nil {
		sub := make([]string, 0, kept)
		for i, m := range mask {
			if m {
				sub = append(sub, f.skus[i])
			}
		}
		out.skus = sub
	}
	return out, nil
}

// FilterSKUs returns the rows whose sku_id is in the given set.
func (f *Frame) FilterSKUs(skus map[string]bool) (*Frame, error) {
	if f.skus == nil {
		return nil, fmt.Errorf("frame has no sku_id column")
	}
	mask := make([]bool, f.n)
	for i, sku := range f.skus {
		mask[i] = skus[sku]
	}
	return f.Select(mask)
}

// FilterSince returns the rows dated on or after the cutoff.
func (f *Frame) FilterSince(cutoff time.Time) (*Frame, error) {
	if f.dates == nil {
		return nil, fmt.Errorf("frame has no Date column")
	}
	mask := make([]bool, f.n)
	for i, d := range f.dates {
		mask[i] = !d.Before(cutoff)
	}
	return f.Select(mask)
}
