package fractal

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterSeries(t *testing.T) {
	scales, values := FilterSeries([]int{8, 8, 4, 2}, []float64{5, 5, 10, 40})
	assert.Equal(t, []int{8, 4, 2}, scales)
	assert.Equal(t, []float64{5, 10, 40}, values)
}

// TestFilterSeriesKeepsSmallestScale verifies that a repeated value is
// attributed to the smallest scale that produced it.
func TestFilterSeriesKeepsSmallestScale(t *testing.T) {
	scales, values := FilterSeries([]int{16, 8, 4, 2}, []float64{1, 1, 4, 0})
	assert.Equal(t, []int{8, 4}, scales)
	assert.Equal(t, []float64{1, 4}, values)
}

func TestFilterSeriesDropsInvalid(t *testing.T) {
	scales, values := FilterSeries(
		[]int{32, 16, 8, 4},
		[]float64{math.NaN(), -1, math.Inf(1), 3},
	)
	assert.Equal(t, []int{4}, scales)
	assert.Equal(t, []float64{3}, values)
}

func TestLinearFitKnownValues(t *testing.T) {
	fit, err := LinearFit([]float64{0, 1, 2, 3}, []float64{0, 1, 1, 3})
	require.NoError(t, err)

	assert.InDelta(t, 0.9, fit.Exponent, 1e-12)
	assert.InDelta(t, -0.1, fit.Intercept, 1e-12)
	assert.InDelta(t, 0.07, fit.Covariance[0][0], 1e-12)
	assert.InDelta(t, 0.245, fit.Covariance[1][1], 1e-12)
	assert.InDelta(t, -0.105, fit.Covariance[0][1], 1e-12)
	assert.InDelta(t, -0.105, fit.Covariance[1][0], 1e-12)
	assert.InDelta(t, math.Sqrt(0.07), fit.SlopeStdErr(), 1e-12)
	assert.InDelta(t, 2.6, fit.Predict(3), 1e-12)
	assert.Equal(t, 4, fit.Points)
}

func TestLinearFitTwoPointsHasZeroCovariance(t *testing.T) {
	fit, err := LinearFit([]float64{1, 2}, []float64{3, 5})
	require.NoError(t, err)
	assert.InDelta(t, 2, fit.Exponent, 1e-12)
	assert.InDelta(t, 1, fit.Intercept, 1e-12)
	assert.Equal(t, [2][2]float64{}, fit.Covariance)
}

func TestLinearFitErrors(t *testing.T) {
	_, err := LinearFit([]float64{1, 2}, []float64{1})
	assert.Error(t, err)

	_, err = LinearFit([]float64{1}, []float64{1})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

// TestFitPowerLawRecoversExponent verifies that an exact power law is
// recovered for both the reciprocal (FD) and direct (LD) conventions.
func TestFitPowerLawRecoversExponent(t *testing.T) {
	scales := []int{32, 16, 8, 4, 2}

	counts := make([]float64, len(scales))
	lac := make([]float64, len(scales))
	for i, s := range scales {
		counts[i] = math.Pow(64/float64(s), 2)
		lac[i] = 3 * math.Pow(float64(s), -0.5)
	}

	fd, err := FitPowerLaw("FD", scales, counts, true)
	require.NoError(t, err)
	assert.InDelta(t, 2, fd.Exponent, 1e-9)
	assert.Equal(t, 5, fd.Points)

	ld, err := FitPowerLaw("LD", scales, lac, false)
	require.NoError(t, err)
	assert.InDelta(t, -0.5, ld.Exponent, 1e-9)
	assert.InDelta(t, math.Log(3), ld.Intercept, 1e-9)
}

func TestFitPowerLawInsufficientData(t *testing.T) {
	_, err := FitPowerLaw("LD", []int{8, 4, 2}, []float64{1, 1, 1}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientData)

	var insufficient *InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "LD", insufficient.Series)
	assert.Equal(t, 1, insufficient.Points)
}
