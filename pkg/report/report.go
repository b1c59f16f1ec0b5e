// Package report turns analysis results into confidence intervals, text
// summaries and log-log plots.
package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"fracnd/pkg/fractal"
)

// DefaultConfidence is the confidence level, in percent, used by the plots.
const DefaultConfidence = 95.0

// Interval holds the half-widths of a confidence interval around the fitted
// coefficients.
type Interval struct {
	// Level is the confidence level in percent
	Level float64

	// T is the Student-t quantile used to scale the standard errors
	T float64

	// Slope and Intercept are the half-widths
	Slope     float64
	Intercept float64
}

// ConfidenceInterval scales the coefficient standard errors of fit by the
// Student-t quantile at 1-α/2 with n-2 degrees of freedom. A fit through two
// points has no residual degrees of freedom; its interval is zero.
func ConfidenceInterval(fit fractal.FitResult, level float64) (Interval, error) {
	if level <= 0 || level >= 100 {
		return Interval{}, fmt.Errorf("confidence level must be in (0, 100), got %g", level)
	}
	iv := Interval{Level: level}
	df := fit.Points - 2
	if df < 1 {
		return iv, nil
	}

	alpha := 1 - level/100
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	iv.T = t.Quantile(1 - alpha/2)
	iv.Slope = fit.SlopeStdErr() * iv.T
	iv.Intercept = fit.InterceptStdErr() * iv.T
	return iv, nil
}

// Band returns the half-width of the confidence band of the fitted line at
// log-space x.
func (iv Interval) Band(fit fractal.FitResult, x float64) float64 {
	c := fit.Covariance
	v := c[0][0]*x*x + 2*c[0][1]*x + c[1][1]
	if v <= 0 {
		return 0
	}
	return iv.T * math.Sqrt(v)
}

// FitLabel formats a fit as "y=a±da x+b±db".
func FitLabel(fit fractal.FitResult, iv Interval) string {
	return fmt.Sprintf("y=%.3f±%.3fx%+.3f±%.3f", fit.Exponent, iv.Slope, fit.Intercept, iv.Intercept)
}

// LacunarityStatistics returns min, max, mean and population standard
// deviation of the lacunarity spectrum.
func LacunarityStatistics(res *fractal.AnalysisResult) fractal.LacunarityStats {
	return res.LacunarityStats()
}

// WriteSummary prints the per-scale table and the fitted exponents.
func WriteSummary(w io.Writer, res *fractal.AnalysisResult, level float64) error {
	var b strings.Builder

	fmt.Fprintf(&b, "shape: %v\n", res.Shape)
	fmt.Fprintf(&b, "%8s %12s %12s\n", "scale", "count", "lacunarity")
	for _, p := range res.Points() {
		fmt.Fprintf(&b, "%8d %12d %12.6f\n", p.Scale, p.BoxCount, p.Lacunarity)
	}

	fdIv, err := ConfidenceInterval(res.FDFit, level)
	if err != nil {
		return err
	}
	fmt.Fprintf(&b, "FD: %.4f ± %.4f (%g%% CI, %d points)\n", res.FD, fdIv.Slope, level, res.FDFit.Points)

	if res.LDErr != nil {
		fmt.Fprintf(&b, "LD: NaN (%v)\n", res.LDErr)
	} else {
		ldIv, err := ConfidenceInterval(res.LDFit, level)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "LD: %.4f ± %.4f (%g%% CI, %d points)\n", res.LD, ldIv.Slope, level, res.LDFit.Points)
	}

	st := LacunarityStatistics(res)
	fmt.Fprintf(&b, "lacunarity: min %.4f max %.4f mean %.4f std %.4f\n", st.Min, st.Max, st.Mean, st.Std)

	_, err = io.WriteString(w, b.String())
	return err
}
