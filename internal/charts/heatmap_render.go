package charts

import (
	"fmt"
	"io"
	"math"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// blues is the sequential palette used for correlation cells, light to dark.
var blues = []drawing.Color{
	drawing.ColorFromHex("f7fbff"),
	drawing.ColorFromHex("deebf7"),
	drawing.ColorFromHex("c6dbef"),
	drawing.ColorFromHex("9ecae1"),
	drawing.ColorFromHex("6baed6"),
	drawing.ColorFromHex("4292c6"),
	drawing.ColorFromHex("2171b5"),
	drawing.ColorFromHex("08519c"),
	drawing.ColorFromHex("08306b"),
}

// bluesAt maps t in [0,1] onto the palette.
func bluesAt(t float64) drawing.Color {
	if math.IsNaN(t) {
		return drawing.ColorWhite
	}
	t = math.Max(0, math.Min(1, t))
	pos := t * float64(len(blues)-1)
	i := int(pos)
	if i >= len(blues)-1 {
		return blues[len(blues)-1]
	}
	f := pos - float64(i)
	a, b := blues[i], blues[i+1]
	mix := func(x, y uint8) uint8 { return uint8(math.Round(float64(x) + (float64(y)-float64(x))*f)) }
	return drawing.Color{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

// annot formats a cell like the "%.2g" annotations of a seaborn heatmap.
func annot(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', 2, 64)
}

func renderHeatmap(fig *Figure, rp chart.RendererProvider, w io.Writer, width, height int) error {
	m := fig.Matrix
	if m == nil || len(m.Columns) == 0 {
		return warn("No numeric columns found for correlation.")
	}
	r, err := rp(width, height)
	if err != nil {
		return err
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return err
	}
	text := chart.Style{Font: font, FontSize: 9, FontColor: drawing.ColorBlack}

	chart.Draw.Box(r, chart.Box{Top: 0, Left: 0, Right: width, Bottom: height},
		chart.Style{FillColor: drawing.ColorWhite, StrokeColor: drawing.ColorWhite, StrokeWidth: 1})

	title := text
	title.FontSize = 13
	title.TextHorizontalAlign = chart.TextHorizontalAlignCenter
	title.TextVerticalAlign = chart.TextVerticalAlignMiddle
	chart.Draw.TextWithin(r, fig.Title, chart.Box{Top: 0, Left: 0, Right: width, Bottom: 32}, title)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, row := range m.Values {
		for _, v := range row {
			if !math.IsNaN(v) {
				lo, hi = math.Min(lo, v), math.Max(hi, v)
			}
		}
	}
	if math.IsInf(lo, 1) {
		lo, hi = -1, 1
	}
	if hi == lo {
		lo -= 0.5
		hi += 0.5
	}

	n := len(m.Columns)
	const labelW, labelH, barW = 120, 60, 60
	gridW := width - labelW - barW - 20
	gridH := height - labelH - 40
	cell := gridW / n
	if ch := gridH / n; ch < cell {
		cell = ch
	}
	if cell < 1 {
		cell = 1
	}
	top, left := 40, labelW

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := m.Values[i][j]
			t := (v - lo) / (hi - lo)
			fill := bluesAt(t)
			box := chart.Box{Top: top + i*cell, Left: left + j*cell, Right: left + (j+1)*cell, Bottom: top + (i+1)*cell}
			chart.Draw.Box(r, box, chart.Style{FillColor: fill, StrokeColor: drawing.ColorWhite, StrokeWidth: 1})
			label := text
			label.TextHorizontalAlign = chart.TextHorizontalAlignCenter
			label.TextVerticalAlign = chart.TextVerticalAlignMiddle
			if t > 0.6 {
				label.FontColor = drawing.ColorWhite
			}
			chart.Draw.TextWithin(r, annot(v), box, label)
		}
		rowLabel := text
		rowLabel.TextHorizontalAlign = chart.TextHorizontalAlignRight
		rowLabel.TextVerticalAlign = chart.TextVerticalAlignMiddle
		chart.Draw.TextWithin(r, truncate(m.Columns[i], 16),
			chart.Box{Top: top + i*cell, Left: 4, Right: left - 6, Bottom: top + (i+1)*cell}, rowLabel)
		colLabel := text
		colLabel.TextHorizontalAlign = chart.TextHorizontalAlignCenter
		colLabel.TextVerticalAlign = chart.TextVerticalAlignTop
		chart.Draw.TextWithin(r, truncate(m.Columns[i], 10),
			chart.Box{Top: top + n*cell + 4, Left: left + i*cell, Right: left + (i+1)*cell, Bottom: top + n*cell + labelH}, colLabel)
	}

	// color bar
	barLeft := left + n*cell + 20
	barH := n * cell
	steps := 50
	for k := 0; k < steps; k++ {
		y0 := top + barH*k/steps
		y1 := top + barH*(k+1)/steps
		t := 1 - (float64(k)+0.5)/float64(steps)
		c := bluesAt(t)
		chart.Draw.Box(r, chart.Box{Top: y0, Left: barLeft, Right: barLeft + 16, Bottom: y1},
			chart.Style{FillColor: c, StrokeColor: c, StrokeWidth: 1})
	}
	chart.Draw.Text(r, fmt.Sprintf("%.2f", hi), barLeft+20, top+8, text)
	chart.Draw.Text(r, fmt.Sprintf("%.2f", lo), barLeft+20, top+barH, text)

	return r.Save(w)
}

func renderMetric(fig *Figure, rp chart.RendererProvider, w io.Writer, width, height int) error {
	if fig.Metric == nil {
		return warn("No values to plot.")
	}
	r, err := rp(width, height/3)
	if err != nil {
		return err
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return err
	}
	h := height / 3
	chart.Draw.Box(r, chart.Box{Top: 0, Left: 0, Right: width, Bottom: h},
		chart.Style{FillColor: drawing.ColorWhite, StrokeColor: drawing.ColorWhite, StrokeWidth: 1})
	style := chart.Style{
		Font:                font,
		FontSize:            12,
		FontColor:           drawing.ColorFromHex("555555"),
		TextHorizontalAlign: chart.TextHorizontalAlignCenter,
		TextVerticalAlign:   chart.TextVerticalAlignMiddle,
	}
	chart.Draw.TextWithin(r, fig.Metric.Label, chart.Box{Top: 0, Left: 0, Right: width, Bottom: h / 2}, style)
	style.FontSize = 28
	style.FontColor = drawing.ColorBlack
	chart.Draw.TextWithin(r, strconv.FormatFloat(fig.Metric.Value, 'f', -1, 64), chart.Box{Top: h / 2, Left: 0, Right: width, Bottom: h}, style)
	return r.Save(w)
}
