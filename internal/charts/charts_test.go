package charts

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vynguyen175/vizion/internal/analysis"
)

func frame(t *testing.T, content string) *analysis.Frame {
	t.Helper()
	f, err := analysis.ReadCSV(strings.NewReader(content), "t.csv", analysis.DefaultOptions())
	require.NoError(t, err)
	return f
}

const people = "name,team,age,score\nann,red,31,7.5\nbob,blue,25,6.0\ncy,red,40,9.0\ndee,green,,5.5\neve,red,28,8.0\n"

func requireWarning(t *testing.T, err error, msg string) {
	t.Helper()
	w, ok := AsWarning(err)
	require.True(t, ok, "expected warning, got %v", err)
	assert.Equal(t, msg, w.Message)
}

func TestQuickPlot_Bar(t *testing.T) {
	f := frame(t, people)
	fig, err := QuickPlot(f, "team", Bar)
	require.NoError(t, err)
	assert.Equal(t, "Bar chart of team", fig.Title)
	assert.Equal(t, "Count", fig.YLabel)
	assert.Equal(t, []string{"red", "blue", "green"}, fig.Labels)
	assert.Equal(t, []float64{3, 1, 1}, fig.Values)

	// every name appears once, so there is a single frequency and a chart
	unique, err := QuickPlot(f, "name", Bar)
	require.NoError(t, err)
	assert.Len(t, unique.Labels, 5)

	_, err = QuickPlot(frame(t, "k\na\n"), "k", Bar)
	requireWarning(t, err, "Nothing meaningful to plot as a bar chart.")
	_, err = QuickPlot(frame(t, "k,v\n"), "k", Bar)
	requireWarning(t, err, "Nothing meaningful to plot as a bar chart.")
}

func TestQuickPlot_BarKeepsTopTwenty(t *testing.T) {
	var b strings.Builder
	b.WriteString("k\n")
	for i := 0; i < 30; i++ {
		b.WriteString("a\n")
		b.WriteString(strings.Repeat("x", i+1) + "\n")
	}
	fig, err := QuickPlot(frame(t, b.String()), "k", Bar)
	require.NoError(t, err)
	assert.Len(t, fig.Labels, 20)
	assert.Equal(t, "a", fig.Labels[0])
}

func TestQuickPlot_Pie(t *testing.T) {
	fig, err := QuickPlot(frame(t, people), "team", Pie)
	require.NoError(t, err)
	assert.Equal(t, KindPie, fig.Kind)
	assert.Equal(t, "Distribution of team", fig.Title)

	// eleven categories seen once each share one frequency
	var b strings.Builder
	b.WriteString("k\n")
	for i := 0; i < 11; i++ {
		b.WriteString(strings.Repeat("y", i+1) + "\n")
	}
	fig, err = QuickPlot(frame(t, b.String()), "k", Pie)
	require.NoError(t, err)
	assert.Len(t, fig.Labels, 11)

	// category i appears i times: eleven distinct frequencies
	b.Reset()
	b.WriteString("k\n")
	for i := 1; i <= 11; i++ {
		for j := 0; j < i; j++ {
			b.WriteString(strings.Repeat("y", i) + "\n")
		}
	}
	_, err = QuickPlot(frame(t, b.String()), "k", Pie)
	requireWarning(t, err, "Pie chart works best for a small number of categories.")
}

func TestFigures_SkipInfiniteValues(t *testing.T) {
	f := frame(t, "a,b\n1,2\ninf,3\n4,5\n-inf,6\n")
	a, ok := f.Column("a")
	require.True(t, ok)
	require.Equal(t, analysis.KindNumeric, a.Kind)

	scatter, err := Compare(f, "a", "b", CompareScatter)
	require.NoError(t, err)
	require.Len(t, scatter.Series, 1)
	assert.Equal(t, []float64{1, 4}, scatter.Series[0].X)
	assert.Equal(t, []float64{2, 5}, scatter.Series[0].Y)

	line, err := Compare(f, "a", "b", CompareLine)
	require.NoError(t, err)
	require.Len(t, line.Series, 2, "infinite cells break the line")

	hist, err := QuickPlot(f, "a", Histogram)
	require.NoError(t, err)
	total := 0
	for _, b := range hist.Bins {
		total += b.Count
	}
	assert.Equal(t, 2, total)

	bar, err := Compare(f, "b", "a", CompareBar)
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "2"}, bar.Labels)
	assert.Equal(t, []float64{4, 1}, bar.Values)

	_, err = Compare(f, "a", "b", CompareCorrelation)
	requireWarning(t, err, "Correlation between a and b is undefined.")

	for _, fig := range []*Figure{scatter, line, hist, bar} {
		var buf bytes.Buffer
		require.NoError(t, Render(fig, PNG, &buf, 400, 300), fig.Kind)
	}
}

func TestQuickPlot_HistogramAndLine(t *testing.T) {
	f := frame(t, people)
	fig, err := QuickPlot(f, "score", Histogram)
	require.NoError(t, err)
	assert.Equal(t, "Histogram of score", fig.Title)
	total := 0
	for _, b := range fig.Bins {
		total += b.Count
	}
	assert.Equal(t, 5, total)
	require.NotNil(t, fig.Curve)

	_, err = QuickPlot(f, "team", Histogram)
	requireWarning(t, err, "Histogram only works for numeric columns.")

	line, err := QuickPlot(f, "age", Line)
	require.NoError(t, err)
	assert.Equal(t, "age", line.YLabel)
	assert.Equal(t, "Line chart of age", line.Title)
	require.Len(t, line.Series, 2, "missing cell breaks the line")
	assert.Equal(t, []float64{0, 1, 2}, line.Series[0].X)
	assert.Equal(t, []float64{4}, line.Series[1].X)

	_, err = QuickPlot(f, "team", Line)
	requireWarning(t, err, "Line chart only works for numeric columns.")
}

func TestQuickPlot_UnknownColumn(t *testing.T) {
	_, err := QuickPlot(frame(t, people), "nope", Bar)
	assert.True(t, errors.Is(err, ErrUnknownColumn))
	_, ok := AsWarning(err)
	assert.False(t, ok)
}

func TestHistogramBins_AutoRule(t *testing.T) {
	vals := []float64{1, 2, 2, 3, 3, 3, 4, 4, 5, 10}
	bins := HistogramBins(vals)
	// Sturges width is 9/(log2(10)+1) = 2.08; FD width 2*1.75*10^(-1/3) = 1.62.
	require.Len(t, bins, 6)
	assert.Equal(t, 1.0, bins[0].Lo)
	assert.Equal(t, 10.0, bins[len(bins)-1].Hi)
	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, len(vals), total)
	assert.Equal(t, 1, bins[len(bins)-1].Count, "max value lands in the closed last bin")

	single := HistogramBins([]float64{3, 3, 3})
	require.Len(t, single, 1)
	assert.Equal(t, 2.5, single[0].Lo)
	assert.Equal(t, 3.5, single[0].Hi)
	assert.Nil(t, HistogramBins(nil))
}

func TestCompare(t *testing.T) {
	f := frame(t, people)

	sc, err := Compare(f, "age", "score", CompareScatter)
	require.NoError(t, err)
	assert.Equal(t, "age vs score", sc.Title)
	require.Len(t, sc.Series, 1)
	assert.Len(t, sc.Series[0].X, 4)

	_, err = Compare(f, "team", "score", CompareScatter)
	requireWarning(t, err, "Scatter comparison works only for numeric columns.")

	ln, err := Compare(f, "age", "score", CompareLine)
	require.NoError(t, err)
	assert.Equal(t, "score over age", ln.Title)

	_, err = Compare(f, "age", "team", CompareLine)
	requireWarning(t, err, "Line comparison works best with numeric columns.")

	bar, err := Compare(f, "team", "score", CompareBar)
	require.NoError(t, err)
	assert.Equal(t, "score by team", bar.Title)
	assert.Equal(t, "Average score", bar.YLabel)
	assert.Equal(t, []string{"red", "blue", "green"}, bar.Labels)
	assert.InDelta(t, 8.1666666, bar.Values[0], 1e-6)

	_, err = Compare(f, "team", "name", CompareBar)
	requireWarning(t, err, "Bar comparison requires numeric Y and categorical X.")

	corr, err := Compare(f, "age", "score", CompareCorrelation)
	require.NoError(t, err)
	require.NotNil(t, corr.Metric)
	assert.Equal(t, "Correlation between age and score", corr.Metric.Label)
	assert.Equal(t, corr.Metric.Value, math.Round(corr.Metric.Value*1000)/1000)

	_, err = Compare(f, "team", "score", CompareCorrelation)
	requireWarning(t, err, "Correlation comparison works only for numeric columns.")
}

func TestCompare_UndefinedCorrelation(t *testing.T) {
	f := frame(t, "a,b\n1,5\n2,5\n3,5\n")
	_, err := Compare(f, "a", "b", CompareCorrelation)
	_, ok := AsWarning(err)
	assert.True(t, ok)
}

func TestHeatmap(t *testing.T) {
	fig, err := Heatmap(frame(t, people))
	require.NoError(t, err)
	assert.Equal(t, []string{"age", "score"}, fig.Matrix.Columns)

	_, err = Heatmap(frame(t, "a,b\nx,y\n"))
	requireWarning(t, err, "No numeric columns found for correlation.")
}

func TestVizConfig_Restore(t *testing.T) {
	f := frame(t, people)
	saved, err := ParseConfig([]byte(`{"quick_plot":{"column":"age","chart_type":"Donut"},"compare":{"x":"gone","y":"score","comparison_type":"Bar"}}`))
	require.NoError(t, err)
	got := saved.Restore(f)
	want := VizConfig{
		QuickPlot: QuickPlotConfig{Column: "age", ChartType: Bar},
		Compare:   CompareConfig{X: "name", Y: "score", ComparisonType: CompareBar},
	}
	assert.Equal(t, want, got)

	raw, err := got.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"quick_plot":{"column":"age","chart_type":"Bar"},"compare":{"x":"name","y":"score","comparison_type":"Bar"}}`, string(raw))

	_, err = ParseConfig([]byte("{"))
	assert.Error(t, err)
	empty, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(f), empty.Restore(f))
}

func TestRender(t *testing.T) {
	f := frame(t, people)
	figs := []func() (*Figure, error){
		func() (*Figure, error) { return QuickPlot(f, "team", Bar) },
		func() (*Figure, error) { return QuickPlot(f, "team", Pie) },
		func() (*Figure, error) { return QuickPlot(f, "score", Histogram) },
		func() (*Figure, error) { return QuickPlot(f, "age", Line) },
		func() (*Figure, error) { return Compare(f, "age", "score", CompareScatter) },
		func() (*Figure, error) { return Compare(f, "age", "score", CompareCorrelation) },
		func() (*Figure, error) { return Heatmap(f) },
	}
	for _, build := range figs {
		fig, err := build()
		require.NoError(t, err)
		var png bytes.Buffer
		require.NoError(t, Render(fig, PNG, &png, 640, 400), fig.Kind)
		assert.True(t, bytes.HasPrefix(png.Bytes(), []byte("\x89PNG")), fig.Kind)

		var svg bytes.Buffer
		require.NoError(t, Render(fig, SVG, &svg, 640, 400), fig.Kind)
		assert.Contains(t, svg.String(), "<svg", fig.Kind)
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, PNG, f)
	f, err = ParseFormat("SVG")
	require.NoError(t, err)
	assert.Equal(t, "image/svg+xml", f.ContentType())
	_, err = ParseFormat("gif")
	assert.Error(t, err)
}
