package dataset

import (
	"testing"
	"time"
)

func TestFrameSelectAndFilters(t *testing.T) {
	f := NewFrame(4)
	f.SetDates([]time.Time{day("2023-01-01"), day("2023-01-02"), day("2023-01-03"), day("2023-01-04")})
	f.SetSKUs([]string{"A", "B", "A", "B"})
	f.SetNum("quantity", []float64{1, 2, 3, 4})
	f.SetCat("category", []string{"x", "y", "x", "y"})

	sub, err := f.FilterSKUs(map[string]bool{"A": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Len() != 2 {
		t.Fatalf("rows = %d, want 2", sub.Len())
	}
	qty, _ := sub.Num("quantity")
	if qty[0] != 1 || qty[1] != 3 {
		t.Fatalf("quantity = %v", qty)
	}

	recent, err := f.FilterSince(day("2023-01-03"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recent.Len() != 2 {
		t.Fatalf("rows = %d, want 2", recent.Len())
	}
	if recent.SKUs()[0] != "A" || recent.SKUs()[1] != "B" {
		t.Fatalf("skus = %v", recent.SKUs())
	}
}

func TestFrameCopyIsDeep(t *testing.T) {
	f := NewFrame(2)
	f.SetNum("quantity", []float64{1, 2})
	f.SetCat("category", []string{"x", "y"})

	c := f.Copy()
	qty, _ := c.Num("quantity")
	qty[0] = 99

	orig, _ := f.Num("quantity")
	if orig[0] != 1 {
		t.Fatalf("copy mutated original: %v", orig)
	}
}

func TestFrameReplaceWithNum(t *testing.T) {
	f := NewFrame(2)
	f.SetNum("quantity", []float64{1, 2})
	f.SetCat("category", []string{"x", "y"})

	before := f.Columns()
	if err := f.ReplaceWithNum("category", []float64{0, 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := f.Columns()
	if len(before) != len(after) {
		t.Fatalf("column count changed: %v -> %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("column order changed: %v -> %v", before, after)
		}
	}
	if !f.HasNum("category") || f.HasCat("category") {
		t.Fatal("category should now be numeric")
	}

	if err := f.ReplaceWithNum("quantity", []float64{0, 0}); err == nil {
		t.Fatal("expected error replacing a numeric column")
	}
}

func TestFrameColumnConflicts(t *testing.T) {
	f := NewFrame(1)
	f.SetCat("brand", []string{"acme"})
	if err := f.SetNum("brand", []float64{1}); err == nil {
		t.Fatal("expected error adding numeric column over categorical")
	}
	if err := f.SetNum("quantity", []float64{1, 2}); err == nil {
		t.Fatal("expected length mismatch error")
	}
}
