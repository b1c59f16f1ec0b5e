package fractal

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Histogram bin rules, matching the estimators of numpy.histogram_bin_edges.
const (
	BinsAuto    = "auto"
	BinsFD      = "fd"
	BinsSturges = "sturges"
	BinsSqrt    = "sqrt"
	BinsRice    = "rice"
	BinsScott   = "scott"
)

type lacunarityValue struct {
	mean  float64
	value float64
}

// lacunarity builds the probability distribution of the normalized masses and
// returns var/mean² + 1. The caller rejects a zero mean.
func lacunarity(masses []float64, histogram bool, bins string) (lacunarityValue, error) {
	var (
		centers []float64
		weights []float64
		err     error
	)
	if histogram {
		centers, weights, err = histogramDistribution(masses, bins)
		if err != nil {
			return lacunarityValue{}, err
		}
	} else {
		centers, weights = uniqueDistribution(masses)
	}

	mean := stat.Mean(centers, weights)
	if mean == 0 {
		return lacunarityValue{mean: 0}, nil
	}
	variance := stat.Moment(2, centers, weights)
	return lacunarityValue{mean: mean, value: variance/(mean*mean) + 1}, nil
}

// uniqueDistribution returns the distinct values and their probabilities.
func uniqueDistribution(values []float64) (centers, probs []float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	for i := 0; i < len(sorted); {
		j := i + 1
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		centers = append(centers, sorted[i])
		probs = append(probs, float64(j-i))
		i = j
	}
	floats.Scale(1/float64(len(sorted)), probs)
	return centers, probs
}

// histogramDistribution bins the values, keeps non-empty bins and returns
// their centers with renormalized probabilities.
func histogramDistribution(values []float64, bins string) (centers, probs []float64, err error) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		return []float64{lo}, []float64{1}, nil
	}

	n, err := binCount(sorted, bins)
	if err != nil {
		return nil, nil, err
	}

	dividers := floats.Span(make([]float64, n+1), lo, hi)
	// The last bin is closed on the right, gonum's is half-open.
	dividers[n] = math.Nextafter(hi, math.Inf(1))
	counts := stat.Histogram(nil, dividers, sorted, nil)

	total := 0.0
	for i, c := range counts {
		if c == 0 {
			continue
		}
		hiEdge := dividers[i+1]
		if i == n-1 {
			hiEdge = hi
		}
		centers = append(centers, (dividers[i]+hiEdge)/2)
		probs = append(probs, c)
		total += c
	}
	floats.Scale(1/total, probs)
	return centers, probs, nil
}

// binCount resolves a bin rule for sorted data with a non-zero range.
func binCount(sorted []float64, bins string) (int, error) {
	rule := strings.ToLower(strings.TrimSpace(bins))
	if rule == "" {
		rule = BinsAuto
	}
	if n, err := strconv.Atoi(rule); err == nil {
		if n < 1 {
			return 0, fmt.Errorf("bin count must be positive, got %d", n)
		}
		return n, nil
	}

	size := float64(len(sorted))
	ptp := sorted[len(sorted)-1] - sorted[0]

	sturges := ptp / (math.Log2(size) + 1)
	fd := func() float64 {
		iqr := stat.Quantile(0.75, stat.LinInterp, sorted, nil) - stat.Quantile(0.25, stat.LinInterp, sorted, nil)
		return 2 * iqr * math.Pow(size, -1.0/3)
	}

	var width float64
	switch rule {
	case BinsAuto:
		width = sturges
		if w := fd(); w > 0 {
			width = math.Min(w, sturges)
		}
	case BinsFD:
		width = fd()
	case BinsSturges:
		width = sturges
	case BinsSqrt:
		width = ptp / math.Sqrt(size)
	case BinsRice:
		width = ptp / (2 * math.Cbrt(size))
	case BinsScott:
		width = math.Cbrt(24*math.Sqrt(math.Pi)/size) * math.Sqrt(stat.Moment(2, sorted, nil))
	default:
		return 0, fmt.Errorf("unknown histogram bin rule %q", bins)
	}

	if width <= 0 {
		return 1, nil
	}
	return int(math.Ceil(ptp / width)), nil
}

// ValidBins reports whether bins names a known rule or a positive count.
func ValidBins(bins string) error {
	rule := strings.ToLower(strings.TrimSpace(bins))
	switch rule {
	case "", BinsAuto, BinsFD, BinsSturges, BinsSqrt, BinsRice, BinsScott:
		return nil
	}
	n, err := strconv.Atoi(rule)
	if err != nil {
		return fmt.Errorf("unknown histogram bin rule %q", bins)
	}
	if n < 1 {
		return fmt.Errorf("bin count must be positive, got %d", n)
	}
	return nil
}
