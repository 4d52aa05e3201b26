package ml

import (
	"fmt"
	"math"
)

// TransformLog1p compresses the right-skewed quantity target with
// log(1+x); its inverse is expm1 followed by a clamp at zero, since sales
// counts cannot be negative.
const TransformLog1p = "log1p"

// TargetTransform is a pure tag. Both directions are re-derived from the
// tag, so only the tag is ever persisted.
type TargetTransform struct {
	Method string
}

// NewLog1pTransform returns the default quantity transform.
func NewLog1pTransform() TargetTransform {
	return TargetTransform{Method: TransformLog1p}
}

// ParseTransform validates a persisted tag.
func ParseTransform(method string) (TargetTransform, error) {
	switch method {
	case TransformLog1p:
		return TargetTransform{Method: method}, nil
	default:
		return TargetTransform{}, fmt.Errorf("unknown target transform %q", method)
	}
}

// Apply maps original-scale targets into training scale.
func (t TargetTransform) Apply(y []float64) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = math.Log1p(v)
	}
	return out
}

// Invert maps predictions back to original units and clamps at zero.
func (t TargetTransform) Invert(y []float64) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = math.Max(math.Expm1(v), 0)
	}
	return out
}
