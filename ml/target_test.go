package ml

import (
	"math"
	"testing"
)

func TestTargetRoundTrip(t *testing.T) {
	tr := NewLog1pTransform()
	y := []float64{0, 1, 2.5, 40, 12345}
	back := tr.Invert(tr.Apply(y))
	for i := range y {
		if math.Abs(back[i]-y[i]) > 1e-9 {
			t.Fatalf("round trip at %d: got %v, want %v", i, back[i], y[i])
		}
	}
}

func TestTargetInvertClampsNegative(t *testing.T) {
	tr := NewLog1pTransform()
	// A model can predict below log1p(0); the inverse must not go negative.
	out := tr.Invert([]float64{-0.7, -3})
	for i, v := range out {
		if v < 0 {
			t.Fatalf("inverted[%d] = %v, want >= 0", i, v)
		}
	}
}

func TestParseTransform(t *testing.T) {
	if _, err := ParseTransform(TransformLog1p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseTransform("boxcox"); err == nil {
		t.Fatal("expected error for unknown transform")
	}
}
