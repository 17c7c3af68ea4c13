package charts

import (
	"fmt"
	"io"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Format is an image encoding for rendered figures.
type Format string

const (
	PNG Format = "png"
	SVG Format = "svg"
)

// ParseFormat accepts "png" or "svg"; empty means PNG.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return PNG, nil
	case "svg":
		return SVG, nil
	}
	return "", fmt.Errorf("unsupported image format %q", s)
}

// ContentType is the MIME type of the encoding.
func (f Format) ContentType() string {
	if f == SVG {
		return "image/svg+xml"
	}
	return "image/png"
}

func (f Format) provider() chart.RendererProvider {
	if f == SVG {
		return chart.SVG
	}
	return chart.PNG
}

const (
	DefaultWidth  = 900
	DefaultHeight = 540
)

var (
	barColor  = drawing.ColorFromHex("4c72b0")
	lineColor = drawing.ColorFromHex("1f77b4")
	kdeColor  = drawing.ColorFromHex("2a4d7f")
)

// Render draws fig in the given format. Non-positive sizes use the defaults.
func Render(fig *Figure, format Format, w io.Writer, width, height int) error {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	rp := format.provider()
	var err error
	switch fig.Kind {
	case KindBar:
		err = renderBar(fig, rp, w, width, height)
	case KindPie:
		err = renderPie(fig, rp, w, width, height)
	case KindHistogram:
		err = renderHistogram(fig, rp, w, width, height)
	case KindLine, KindScatter:
		err = renderXY(fig, rp, w, width, height)
	case KindHeatmap:
		err = renderHeatmap(fig, rp, w, width, height)
	case KindMetric:
		err = renderMetric(fig, rp, w, width, height)
	default:
		err = fmt.Errorf("unknown figure kind %q", fig.Kind)
	}
	if err != nil {
		if _, ok := AsWarning(err); ok {
			return err
		}
		return fmt.Errorf("render %s: %w", fig.Kind, err)
	}
	return nil
}

func renderBar(fig *Figure, rp chart.RendererProvider, w io.Writer, width, height int) error {
	if len(fig.Values) == 0 {
		return warn("No values to plot.")
	}
	bars := make([]chart.Value, len(fig.Values))
	lo, hi := 0.0, 0.0
	for i, v := range fig.Values {
		bars[i] = chart.Value{
			Label: truncate(fig.Labels[i], 14),
			Value: v,
			Style: chart.Style{FillColor: barColor, StrokeColor: barColor},
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		hi = lo + 1
	}
	slot := (width - 120) / len(bars)
	if slot < 4 {
		slot = 4
	}
	bc := chart.BarChart{
		Title:      fig.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		BarWidth:   slot * 3 / 4,
		BarSpacing: slot - slot*3/4,
		YAxis: chart.YAxis{
			Name:  fig.YLabel,
			Range: &chart.ContinuousRange{Min: lo, Max: hi * 1.05},
		},
		Bars: bars,
	}
	return bc.Render(rp, w)
}

func renderPie(fig *Figure, rp chart.RendererProvider, w io.Writer, width, height int) error {
	var total float64
	for _, v := range fig.Values {
		total += v
	}
	if total <= 0 {
		return warn("No values to plot.")
	}
	values := make([]chart.Value, len(fig.Values))
	for i, v := range fig.Values {
		values[i] = chart.Value{Label: fmt.Sprintf("%s %.1f%%", truncate(fig.Labels[i], 14), v*100/total), Value: v}
	}
	pc := chart.PieChart{
		Title:  fig.Title,
		Width:  width,
		Height: height,
		Values: values,
	}
	return pc.Render(rp, w)
}

func renderHistogram(fig *Figure, rp chart.RendererProvider, w io.Writer, width, height int) error {
	if len(fig.Bins) == 0 {
		return warn("No values to plot.")
	}
	centers := make([]float64, len(fig.Bins))
	counts := make([]float64, len(fig.Bins))
	maxY := 0.0
	for i, b := range fig.Bins {
		centers[i] = (b.Lo + b.Hi) / 2
		counts[i] = float64(b.Count)
		maxY = math.Max(maxY, counts[i])
	}
	series := []chart.Series{
		chart.HistogramSeries{
			Name: fig.XLabel,
			Style: chart.Style{
				FillColor:   barColor.WithAlpha(180),
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: 1,
			},
			InnerSeries: chart.ContinuousSeries{XValues: centers, YValues: counts},
		},
	}
	if fig.Curve != nil {
		for _, y := range fig.Curve.Y {
			maxY = math.Max(maxY, y)
		}
		series = append(series, chart.ContinuousSeries{
			Name:    "density",
			XValues: fig.Curve.X,
			YValues: fig.Curve.Y,
			Style:   chart.Style{StrokeColor: kdeColor, StrokeWidth: 2},
		})
	}
	ch := chart.Chart{
		Title:      fig.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  fig.XLabel,
			Range: &chart.ContinuousRange{Min: fig.Bins[0].Lo, Max: fig.Bins[len(fig.Bins)-1].Hi},
		},
		YAxis: chart.YAxis{
			Name:  fig.YLabel,
			Range: &chart.ContinuousRange{Min: 0, Max: math.Max(1, maxY*1.05)},
		},
		Series: series,
	}
	return ch.Render(rp, w)
}

func renderXY(fig *Figure, rp chart.RendererProvider, w io.Writer, width, height int) error {
	if len(fig.Series) == 0 {
		return warn("No values to plot.")
	}
	xlo, xhi, ylo, yhi := math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)
	series := make([]chart.Series, 0, len(fig.Series))
	for _, s := range fig.Series {
		for i := range s.X {
			xlo, xhi = math.Min(xlo, s.X[i]), math.Max(xhi, s.X[i])
			ylo, yhi = math.Min(ylo, s.Y[i]), math.Max(yhi, s.Y[i])
		}
		style := chart.Style{StrokeColor: lineColor, StrokeWidth: 1.5}
		if fig.Kind == KindScatter {
			style = chart.Style{StrokeWidth: chart.Disabled, DotWidth: 3, DotColor: lineColor}
		}
		series = append(series, chart.ContinuousSeries{XValues: s.X, YValues: s.Y, Style: style})
	}
	xlo, xhi = padRange(xlo, xhi)
	ylo, yhi = padRange(ylo, yhi)
	ch := chart.Chart{
		Title:      fig.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: fig.XLabel, Range: &chart.ContinuousRange{Min: xlo, Max: xhi}},
		YAxis:      chart.YAxis{Name: fig.YLabel, Range: &chart.ContinuousRange{Min: ylo, Max: yhi}},
		Series:     series,
	}
	return ch.Render(rp, w)
}

// padRange widens a degenerate range and adds a small margin.
func padRange(lo, hi float64) (float64, float64) {
	if hi == lo {
		d := math.Max(math.Abs(lo)*0.05, 0.5)
		return lo - d, hi + d
	}
	m := (hi - lo) * 0.05
	return lo - m, hi + m
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
