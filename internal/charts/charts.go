// Package charts turns column selections into figures and renders them with go-chart.
package charts

import (
	"errors"
	"fmt"
	"math"

	"github.com/vynguyen175/vizion/internal/analysis"
)

// ChartType is a single-column quick plot.
type ChartType string

const (
	Bar       ChartType = "Bar"
	Pie       ChartType = "Pie"
	Histogram ChartType = "Histogram"
	Line      ChartType = "Line"
)

// ChartTypes lists quick plot types in form order.
var ChartTypes = []ChartType{Bar, Pie, Histogram, Line}

// Valid reports whether t is a known quick plot type.
func (t ChartType) Valid() bool {
	for _, v := range ChartTypes {
		if v == t {
			return true
		}
	}
	return false
}

// CompareType is a two-column comparison.
type CompareType string

const (
	CompareScatter     CompareType = "Scatter"
	CompareLine        CompareType = "Line"
	CompareBar         CompareType = "Bar"
	CompareCorrelation CompareType = "Correlation"
)

// CompareTypes lists comparison types in form order.
var CompareTypes = []CompareType{CompareScatter, CompareLine, CompareBar, CompareCorrelation}

// Valid reports whether t is a known comparison type.
func (t CompareType) Valid() bool {
	for _, v := range CompareTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Warning is a user-facing reason a chart cannot be drawn for the selection.
type Warning struct {
	Message string
}

func (w *Warning) Error() string { return w.Message }

func warn(msg string) error { return &Warning{Message: msg} }

// AsWarning extracts a Warning from err.
func AsWarning(err error) (*Warning, bool) {
	var w *Warning
	if errors.As(err, &w) {
		return w, true
	}
	return nil, false
}

// ErrUnknownColumn is returned when a selection names a column the frame lacks.
var ErrUnknownColumn = errors.New("unknown column")

// FigureKind selects how a Figure is drawn.
type FigureKind string

const (
	KindBar       FigureKind = "bar"
	KindPie       FigureKind = "pie"
	KindHistogram FigureKind = "histogram"
	KindLine      FigureKind = "line"
	KindScatter   FigureKind = "scatter"
	KindHeatmap   FigureKind = "heatmap"
	KindMetric    FigureKind = "metric"
)

// Series is one run of points. Line figures split a column into several
// series where missing cells break the line.
type Series struct {
	X []float64
	Y []float64
}

// Bin is one histogram bucket covering [Lo, Hi).
type Bin struct {
	Lo, Hi float64
	Count  int
}

// Metric is a single labelled number.
type Metric struct {
	Label string
	Value float64
}

// Figure is a drawable chart description independent of the output format.
type Figure struct {
	Kind   FigureKind
	Title  string
	XLabel string
	YLabel string
	// Bar and pie figures.
	Labels []string
	Values []float64
	// Line and scatter figures.
	Series []Series
	// Histogram figures; Curve is the density estimate scaled to counts.
	Bins  []Bin
	Curve *Series
	// Heatmap figures.
	Matrix *analysis.CorrMatrix
	// Metric figures.
	Metric *Metric
}

func column(f *analysis.Frame, name string) (*analysis.Column, error) {
	c, ok := f.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return c, nil
}

// finite reports whether v can be placed on a chart axis.
func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// finiteValues drops infinities and NaN.
func finiteValues(vals []float64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if finite(v) {
			out = append(out, v)
		}
	}
	return out
}
