// Package cleaning applies missing-value strategies and duplicate removal to frames.
package cleaning

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/vynguyen175/vizion/internal/analysis"
)

// MissingStrategy selects how missing cells are handled.
type MissingStrategy string

const (
	None        MissingStrategy = "none"
	DropRows    MissingStrategy = "drop_rows"
	DropColumns MissingStrategy = "drop_columns"
	FillMean    MissingStrategy = "fill_mean"
	FillMedian  MissingStrategy = "fill_median"
	FillMode    MissingStrategy = "fill_mode"
)

// Strategies lists every strategy with the label shown in forms.
var Strategies = []struct {
	Value MissingStrategy
	Label string
}{
	{None, "Do Nothing"},
	{DropRows, "Drop Rows"},
	{DropColumns, "Drop Columns"},
	{FillMean, "Fill with Mean (Numeric)"},
	{FillMedian, "Fill with Median (Numeric)"},
	{FillMode, "Fill with Mode"},
}

// ParseStrategy accepts a canonical name or a form label. Empty input means None.
func ParseStrategy(s string) (MissingStrategy, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return None, nil
	}
	for _, st := range Strategies {
		if strings.EqualFold(s, string(st.Value)) || strings.EqualFold(s, st.Label) {
			return st.Value, nil
		}
	}
	return "", fmt.Errorf("unknown missing-value strategy %q", s)
}

// Options selects the cleaning steps to run.
type Options struct {
	Missing        MissingStrategy
	DropDuplicates bool
}

// Result describes what a cleaning pass changed.
type Result struct {
	// TotalMissing counts missing cells before cleaning.
	TotalMissing      int
	RowsDropped       int
	ColumnsDropped    int
	CellsFilled       int
	DuplicatesRemoved int
	Messages          []string
}

// Clean returns a cleaned copy of f. The input frame is never modified.
func Clean(f *analysis.Frame, opt Options) (*analysis.Frame, Result) {
	res := Result{TotalMissing: f.TotalMissing()}
	out := f.Clone()

	switch opt.Missing {
	case DropRows:
		var keep []int
		for i := 0; i < out.Len(); i++ {
			if !rowHasMissing(out, i) {
				keep = append(keep, i)
			}
		}
		res.RowsDropped = out.Len() - len(keep)
		out = out.TakeRows(keep)
		res.Messages = append(res.Messages, "Dropped all rows with missing values.")
	case DropColumns:
		var keep []int
		for j, c := range out.Columns {
			if c.MissingCount() == 0 {
				keep = append(keep, j)
			}
		}
		res.ColumnsDropped = out.NumCols() - len(keep)
		out = out.TakeColumns(keep)
		res.Messages = append(res.Messages, "Dropped all columns with missing values.")
	case FillMean:
		res.CellsFilled = fillNumeric(out, analysis.Mean)
		res.Messages = append(res.Messages, "Filled missing numeric values with mean.")
	case FillMedian:
		res.CellsFilled = fillNumeric(out, analysis.Median)
		res.Messages = append(res.Messages, "Filled missing numeric values with median.")
	case FillMode:
		res.CellsFilled = fillMode(out)
		res.Messages = append(res.Messages, "Filled missing values with mode.")
	}

	if opt.DropDuplicates {
		before := out.Len()
		out = dropDuplicates(out)
		res.DuplicatesRemoved = before - out.Len()
		res.Messages = append(res.Messages, fmt.Sprintf("Removed %d duplicate rows.", res.DuplicatesRemoved))
	}
	return out, res
}

func rowHasMissing(f *analysis.Frame, i int) bool {
	for _, c := range f.Columns {
		if c.IsMissing(i) {
			return true
		}
	}
	return false
}

// fillNumeric fills missing cells of numeric columns with stat(values).
// Columns whose statistic is undefined are left alone.
func fillNumeric(f *analysis.Frame, stat func([]float64) float64) int {
	filled := 0
	for _, c := range f.Columns {
		if c.Kind != analysis.KindNumeric || c.MissingCount() == 0 {
			continue
		}
		v := stat(c.Values())
		if math.IsNaN(v) {
			continue
		}
		for i := 0; i < c.Len(); i++ {
			if c.IsMissing(i) {
				c.SetFloat(i, v)
				filled++
			}
		}
	}
	return filled
}

// fillMode fills every column with its first mode: the most frequent value,
// ties broken by the smallest value in the column's natural order.
func fillMode(f *analysis.Frame) int {
	filled := 0
	for _, c := range f.Columns {
		if c.MissingCount() == 0 || c.MissingCount() == c.Len() {
			continue
		}
		if c.Kind == analysis.KindNumeric {
			v := numericMode(c.Values())
			for i := 0; i < c.Len(); i++ {
				if c.IsMissing(i) {
					c.SetFloat(i, v)
					filled++
				}
			}
			continue
		}
		counts := map[string]int{}
		for i := 0; i < c.Len(); i++ {
			if !c.IsMissing(i) {
				counts[c.Raw[i]]++
			}
		}
		keys := make([]string, 0, len(counts))
		for k := range counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		best := keys[0]
		for _, k := range keys[1:] {
			if counts[k] > counts[best] {
				best = k
			}
		}
		for i := 0; i < c.Len(); i++ {
			if c.IsMissing(i) {
				c.SetText(i, best)
				filled++
			}
		}
	}
	return filled
}

func numericMode(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	best, bestN := sorted[0], 0
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		if j-i > bestN {
			best, bestN = sorted[i], j-i
		}
		i = j
	}
	return best
}

// dropDuplicates keeps the first occurrence of every distinct row.
func dropDuplicates(f *analysis.Frame) *analysis.Frame {
	seen := map[string]struct{}{}
	var keep []int
	var b strings.Builder
	for i := 0; i < f.Len(); i++ {
		b.Reset()
		for _, c := range f.Columns {
			b.WriteString(c.Key(i))
			b.WriteByte(0x1f)
		}
		k := b.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keep = append(keep, i)
	}
	if len(keep) == f.Len() {
		return f
	}
	return f.TakeRows(keep)
}
