package report

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"fracnd/pkg/fractal"
)

// Format is an image encoding for plots.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

// ParseFormat accepts png, jpg and jpeg.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported plot format %q", s)
	}
}

// Ext returns the file extension for the format, including the dot.
func (f Format) Ext() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".png"
}

// Plots are 8x6 inches at 100 dpi, i.e. 800x600 pixels.
const (
	plotWidth  = 8 * vg.Inch
	plotHeight = 6 * vg.Inch
	plotDPI    = 100

	// bandSteps is the number of samples along each edge of the band
	bandSteps = 64
)

var (
	colorBand  = color.RGBA{R: 0, G: 128, B: 128, A: 48}
	colorLine  = color.Black
	colorPoint = color.RGBA{R: 0, G: 128, B: 128, A: 255}
)

type series struct {
	x, y   []float64
	fit    fractal.FitResult
	fitted bool
	iv     Interval
	xLabel string
	yLabel string
	name   string
}

// RenderFD plots log N against log 1/s with the fitted line and its
// confidence band.
func RenderFD(w io.Writer, res *fractal.AnalysisResult, level float64, format Format) error {
	s, err := fdSeries(res, level)
	if err != nil {
		return err
	}
	return s.render(w, format)
}

// RenderLacunarity plots log λ against log s. When LD could not be fitted
// only the measured points are drawn.
func RenderLacunarity(w io.Writer, res *fractal.AnalysisResult, level float64, format Format) error {
	s, err := lacunaritySeries(res, level)
	if err != nil {
		return err
	}
	return s.render(w, format)
}

// SaveFD writes the FD plot to path; the format follows the extension.
func SaveFD(path string, res *fractal.AnalysisResult, level float64) error {
	return savePlot(path, func(w io.Writer, f Format) error { return RenderFD(w, res, level, f) })
}

// SaveLacunarity writes the lacunarity plot to path.
func SaveLacunarity(path string, res *fractal.AnalysisResult, level float64) error {
	return savePlot(path, func(w io.Writer, f Format) error { return RenderLacunarity(w, res, level, f) })
}

func savePlot(path string, render func(io.Writer, Format) error) error {
	format, err := ParseFormat(filepath.Ext(path))
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot file: %w", err)
	}
	if err := render(f, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fdSeries(res *fractal.AnalysisResult, level float64) (series, error) {
	scales, counts := fractal.FilterSeries(res.Scales, res.CountsFloat())
	s := series{
		xLabel: "log 1/ε",
		yLabel: "log N(ε)",
		name:   "Measured ratios",
		fit:    res.FDFit,
		fitted: res.FDFit.Points >= 2,
	}
	for i, sc := range scales {
		s.x = append(s.x, math.Log(1/float64(sc)))
		s.y = append(s.y, math.Log(counts[i]))
	}
	return s.withInterval(level)
}

func lacunaritySeries(res *fractal.AnalysisResult, level float64) (series, error) {
	scales, lac := fractal.FilterSeries(res.Scales, res.Lacunarities)
	s := series{
		xLabel: "log ε",
		yLabel: "log λ(ε)",
		name:   "Lacunarity",
		fit:    res.LDFit,
		fitted: res.LDErr == nil && res.LDFit.Points >= 2,
	}
	for i, sc := range scales {
		s.x = append(s.x, math.Log(float64(sc)))
		s.y = append(s.y, math.Log(lac[i]))
	}
	return s.withInterval(level)
}

func (s series) withInterval(level float64) (series, error) {
	if len(s.x) == 0 {
		return s, fmt.Errorf("nothing to plot: no positive values")
	}
	if !s.fitted {
		return s, nil
	}
	iv, err := ConfidenceInterval(s.fit, level)
	if err != nil {
		return s, err
	}
	s.iv = iv
	return s, nil
}

// plot builds the scatter of measured points, and for a fitted series the
// dashed regression line over its confidence band.
func (s series) plot() (*plot.Plot, error) {
	p := plot.New()
	p.X.Label.Text = s.xLabel
	p.Y.Label.Text = s.yLabel
	p.Legend.Top = true
	p.Legend.Left = true
	p.Add(plotter.NewGrid())

	if s.fitted {
		lo, hi := floats.Min(s.x), floats.Max(s.x)
		xs := floats.Span(make([]float64, bandSteps), lo, hi)
		if lo == hi {
			xs = []float64{lo, hi}
		}

		if s.iv.T > 0 {
			edge := make(plotter.XYs, 0, 2*len(xs))
			for _, x := range xs {
				edge = append(edge, plotter.XY{X: x, Y: s.fit.Predict(x) + s.iv.Band(s.fit, x)})
			}
			for i := len(xs) - 1; i >= 0; i-- {
				x := xs[i]
				edge = append(edge, plotter.XY{X: x, Y: s.fit.Predict(x) - s.iv.Band(s.fit, x)})
			}
			band, err := plotter.NewPolygon(edge)
			if err != nil {
				return nil, fmt.Errorf("confidence band: %w", err)
			}
			band.Color = colorBand
			band.LineStyle.Width = 0
			p.Add(band)
		}

		fitted := make(plotter.XYs, len(xs))
		for i, x := range xs {
			fitted[i] = plotter.XY{X: x, Y: s.fit.Predict(x)}
		}
		line, err := plotter.NewLine(fitted)
		if err != nil {
			return nil, fmt.Errorf("fit line: %w", err)
		}
		line.LineStyle.Color = colorLine
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
		p.Add(line)
		p.Legend.Add(FitLabel(s.fit, s.iv), line)
	}

	pts := make(plotter.XYs, len(s.x))
	for i := range s.x {
		pts[i] = plotter.XY{X: s.x[i], Y: s.y[i]}
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, fmt.Errorf("measured points: %w", err)
	}
	scatter.GlyphStyle.Color = colorPoint
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(3)
	p.Add(scatter)
	p.Legend.Add(s.name, scatter)

	return p, nil
}

func (s series) render(w io.Writer, format Format) error {
	p, err := s.plot()
	if err != nil {
		return err
	}

	c := vgimg.NewWith(vgimg.UseWH(plotWidth, plotHeight), vgimg.UseDPI(plotDPI))
	p.Draw(draw.New(c))

	var out io.WriterTo = vgimg.PngCanvas{Canvas: c}
	if format == FormatJPEG {
		out = vgimg.JpegCanvas{Canvas: c}
	}
	if _, err := out.WriteTo(w); err != nil {
		return fmt.Errorf("encode %s plot: %w", format, err)
	}
	return nil
}
