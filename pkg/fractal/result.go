package fractal

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ScaleSeriesPoint is the measurement of one scale.
type ScaleSeriesPoint struct {
	Scale      int
	BoxCount   int
	Lacunarity float64
}

// LacunarityStats summarizes a lacunarity spectrum.
type LacunarityStats struct {
	Min  float64
	Max  float64
	Mean float64
	Std  float64
}

// AnalysisResult is the outcome of one Analyze call. The series are ordered
// by the scale sweep, largest scale first.
type AnalysisResult struct {
	// Shape is the shape of the analyzed volume
	Shape []int

	// Scales holds the window sizes in sweep order
	Scales []int

	// Counts holds the normalized box count per scale
	Counts []int

	// Lacunarities holds λ per scale
	Lacunarities []float64

	// FD is the fractal dimension (slope of log N against log 1/s)
	FD float64

	// LD is the lacunarity decay exponent (slope of log λ against log s)
	LD float64

	// FDFit and LDFit are the underlying regressions
	FDFit FitResult
	LDFit FitResult

	// LDErr is set when the lacunarity spectrum could not be fitted; LD is
	// NaN in that case
	LDErr error
}

// Points returns the per-scale series as points.
func (r *AnalysisResult) Points() []ScaleSeriesPoint {
	points := make([]ScaleSeriesPoint, len(r.Scales))
	for i, s := range r.Scales {
		points[i] = ScaleSeriesPoint{Scale: s, BoxCount: r.Counts[i], Lacunarity: r.Lacunarities[i]}
	}
	return points
}

// CountsFloat returns the box counts as float64 for fitting and plotting.
func (r *AnalysisResult) CountsFloat() []float64 {
	out := make([]float64, len(r.Counts))
	for i, c := range r.Counts {
		out[i] = float64(c)
	}
	return out
}

// LacunarityStats returns min, max, mean and population standard deviation
// of the lacunarity spectrum.
func (r *AnalysisResult) LacunarityStats() LacunarityStats {
	if len(r.Lacunarities) == 0 {
		nan := math.NaN()
		return LacunarityStats{Min: nan, Max: nan, Mean: nan, Std: nan}
	}
	mean := stat.Mean(r.Lacunarities, nil)
	return LacunarityStats{
		Min:  floats.Min(r.Lacunarities),
		Max:  floats.Max(r.Lacunarities),
		Mean: mean,
		Std:  math.Sqrt(stat.Moment(2, r.Lacunarities, nil)),
	}
}
