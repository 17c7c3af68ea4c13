package charts

import (
	"fmt"

	"github.com/vynguyen175/vizion/internal/analysis"
)

const (
	maxBarCategories = 20
	// maxPieFrequencies caps the distinct frequencies, not the categories.
	maxPieFrequencies = 10
)

// QuickPlot builds a single-column figure. Selections the chart type cannot
// represent return a *Warning.
func QuickPlot(f *analysis.Frame, col string, t ChartType) (*Figure, error) {
	c, err := column(f, col)
	if err != nil {
		return nil, err
	}
	switch t {
	case Bar:
		counts := f.ValueCounts(c)
		if len(counts) == 0 || distinctFrequencies(counts) == f.Len() {
			return nil, warn("Nothing meaningful to plot as a bar chart.")
		}
		if len(counts) > maxBarCategories {
			counts = counts[:maxBarCategories]
		}
		fig := &Figure{Kind: KindBar, Title: fmt.Sprintf("Bar chart of %s", col), XLabel: col, YLabel: "Count"}
		for _, cc := range counts {
			fig.Labels = append(fig.Labels, cc.Value)
			fig.Values = append(fig.Values, float64(cc.Count))
		}
		return fig, nil
	case Pie:
		counts := f.ValueCounts(c)
		if len(counts) == 0 || distinctFrequencies(counts) > maxPieFrequencies {
			return nil, warn("Pie chart works best for a small number of categories.")
		}
		fig := &Figure{Kind: KindPie, Title: fmt.Sprintf("Distribution of %s", col)}
		for _, cc := range counts {
			fig.Labels = append(fig.Labels, cc.Value)
			fig.Values = append(fig.Values, float64(cc.Count))
		}
		return fig, nil
	case Histogram:
		if c.Kind != analysis.KindNumeric {
			return nil, warn("Histogram only works for numeric columns.")
		}
		vals := finiteValues(c.Values())
		fig := &Figure{Kind: KindHistogram, Title: fmt.Sprintf("Histogram of %s", col), XLabel: col, YLabel: "Count"}
		fig.Bins = HistogramBins(vals)
		if len(fig.Bins) > 0 {
			fig.Curve = densityCurve(vals, fig.Bins[0].Hi-fig.Bins[0].Lo)
		}
		return fig, nil
	case Line:
		if c.Kind != analysis.KindNumeric {
			return nil, warn("Line chart only works for numeric columns.")
		}
		xs := make([]float64, c.Len())
		for i := range xs {
			xs[i] = float64(i)
		}
		return &Figure{
			Kind:   KindLine,
			Title:  fmt.Sprintf("Line chart of %s", col),
			YLabel: col,
			Series: segments(xs, c.Nums, nil, c.Missing),
		}, nil
	default:
		return nil, fmt.Errorf("unknown chart type %q", t)
	}
}

// distinctFrequencies is the number of different counts in a value-count table.
func distinctFrequencies(counts []analysis.CategoryCount) int {
	seen := map[int]struct{}{}
	for _, cc := range counts {
		seen[cc.Count] = struct{}{}
	}
	return len(seen)
}

// segments splits paired values into runs broken at missing or non-finite cells.
func segments(xs, ys []float64, xMissing, yMissing []bool) []Series {
	var out []Series
	var cur Series
	flush := func() {
		if len(cur.X) > 0 {
			out = append(out, cur)
		}
		cur = Series{}
	}
	for i := range ys {
		if (xMissing != nil && xMissing[i]) || (yMissing != nil && yMissing[i]) || !finite(xs[i]) || !finite(ys[i]) {
			flush()
			continue
		}
		cur.X = append(cur.X, xs[i])
		cur.Y = append(cur.Y, ys[i])
	}
	flush()
	return out
}
