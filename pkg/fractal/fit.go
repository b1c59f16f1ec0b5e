package fractal

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// FitResult is a degree-1 least-squares fit in log-log space.
type FitResult struct {
	// Exponent is the slope a of log(value) = a·log(x) + b
	Exponent float64

	// Intercept is b
	Intercept float64

	// Covariance is the coefficient covariance ordered (slope, intercept)
	Covariance [2][2]float64

	// Points is the number of (x, value) pairs used by the fit
	Points int

	// X and Y are the log-space coordinates that were fitted
	X []float64
	Y []float64
}

// SlopeStdErr returns the standard error of the slope.
func (f FitResult) SlopeStdErr() float64 { return math.Sqrt(f.Covariance[0][0]) }

// InterceptStdErr returns the standard error of the intercept.
func (f FitResult) InterceptStdErr() float64 { return math.Sqrt(f.Covariance[1][1]) }

// Predict evaluates the fitted line at log-space x.
func (f FitResult) Predict(x float64) float64 { return f.Exponent*x + f.Intercept }

// FilterSeries keeps, for every distinct positive value, the smallest scale
// that produced it. The returned pairs are ordered by ascending value.
func FilterSeries(scales []int, values []float64) ([]int, []float64) {
	n := len(scales)
	if len(values) < n {
		n = len(values)
	}

	smallest := make(map[float64]int, n)
	for i := 0; i < n; i++ {
		v := values[i]
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if s, ok := smallest[v]; !ok || scales[i] < s {
			smallest[v] = scales[i]
		}
	}

	vals := make([]float64, 0, len(smallest))
	for v := range smallest {
		vals = append(vals, v)
	}
	sort.Float64s(vals)

	outScales := make([]int, len(vals))
	for i, v := range vals {
		outScales[i] = smallest[v]
	}
	return outScales, vals
}

// FitPowerLaw fits log(value) = a·log(x) + b where x is the scale, or its
// reciprocal when invert is set. series names the fit in errors.
func FitPowerLaw(series string, scales []int, values []float64, invert bool) (FitResult, error) {
	fScales, fValues := FilterSeries(scales, values)
	if len(fValues) < 2 {
		return FitResult{}, &InsufficientDataError{Series: series, Points: len(fValues)}
	}

	x := make([]float64, len(fScales))
	y := make([]float64, len(fValues))
	for i, s := range fScales {
		xs := float64(s)
		if invert {
			xs = 1 / xs
		}
		x[i] = math.Log(xs)
		y[i] = math.Log(fValues[i])
	}

	fit, err := LinearFit(x, y)
	if err != nil {
		return FitResult{}, fmt.Errorf("%s fit: %w", series, err)
	}
	return fit, nil
}

// LinearFit performs an ordinary least-squares fit y = a·x + b and returns the
// coefficient covariance scaled by RSS/(n-2). With exactly two points the
// line is exact and the covariance is zero.
func LinearFit(x, y []float64) (FitResult, error) {
	n := len(x)
	if n != len(y) {
		return FitResult{}, fmt.Errorf("x and y lengths differ: %d vs %d", n, len(y))
	}
	if n < 2 {
		return FitResult{}, &InsufficientDataError{Series: "linear", Points: n}
	}

	design := mat.NewDense(n, 2, nil)
	for i, xi := range x {
		design.Set(i, 0, xi)
		design.Set(i, 1, 1)
	}
	obs := mat.NewVecDense(n, append([]float64(nil), y...))

	var normal mat.Dense
	normal.Mul(design.T(), design)

	var inv mat.Dense
	if err := inv.Inverse(&normal); err != nil {
		return FitResult{}, &InsufficientDataError{Series: "linear", Points: distinctCount(x)}
	}

	var xty, coef mat.VecDense
	xty.MulVec(design.T(), obs)
	coef.MulVec(&inv, &xty)

	var fitted, resid mat.VecDense
	fitted.MulVec(design, &coef)
	resid.SubVec(obs, &fitted)
	rss := mat.Dot(&resid, &resid)

	res := FitResult{
		Exponent:  coef.AtVec(0),
		Intercept: coef.AtVec(1),
		Points:    n,
		X:         append([]float64(nil), x...),
		Y:         append([]float64(nil), y...),
	}
	if n > 2 {
		scale := rss / float64(n-2)
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				res.Covariance[i][j] = inv.At(i, j) * scale
			}
		}
	}
	return res, nil
}

func distinctCount(x []float64) int {
	seen := make(map[float64]struct{}, len(x))
	for _, v := range x {
		seen[v] = struct{}{}
	}
	return len(seen)
}
