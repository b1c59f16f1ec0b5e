package fractal

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultMaxExponent returns floor(log2(minExtent)), the largest power-of-two
// exponent whose box fits along every axis.
func DefaultMaxExponent(minExtent int) int {
	if minExtent < 1 {
		return 0
	}
	return int(math.Floor(math.Log2(float64(minExtent))))
}

// GenerateScales samples n exponents evenly between maxExp and minExp
// (inclusive), maps them to floor(2^e) and removes duplicates while keeping
// the descending order of the sweep.
func GenerateScales(maxExp, minExp, n int) ([]int, error) {
	if n < 1 {
		return nil, fmt.Errorf("number of scale samples must be positive, got %d", n)
	}
	if minExp < 0 {
		return nil, fmt.Errorf("minimum box exponent must be non-negative, got %d", minExp)
	}
	if maxExp < minExp {
		return nil, fmt.Errorf("maximum box exponent %d is below minimum %d", maxExp, minExp)
	}

	exps := []float64{float64(maxExp)}
	if n > 1 {
		exps = floats.Span(make([]float64, n), float64(maxExp), float64(minExp))
	}

	scales := make([]int, 0, len(exps))
	seen := make(map[int]bool, len(exps))
	for _, e := range exps {
		s := int(math.Floor(math.Exp2(e)))
		if s < 1 || seen[s] {
			continue
		}
		seen[s] = true
		scales = append(scales, s)
	}
	return scales, nil
}
