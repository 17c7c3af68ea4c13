package analysis

import (
	"math"
	"sort"
)

// ColumnSummary captures inferred type and statistics per column.
type ColumnSummary struct {
	Name    string
	Kind    Kind
	Count   int
	Missing int
	// Text stats
	Unique int
	Top    string
	Freq   int
	// Numeric stats; NaN when undefined
	Mean   float64
	Std    float64
	Min    float64
	Q25    float64
	Median float64
	Q75    float64
	Max    float64
	// Outliers (robust Z via MAD)
	OutliersCount    int
	OutliersMaxAbsZ  float64
	OutlierThreshold float64
}

// MissingCount is the number of missing cells in one column.
type MissingCount struct {
	Column string
	Count  int
}

// CategoryCount is one entry of a value-count table.
type CategoryCount struct {
	Value string
	Count int
}

// Describe summarizes every column: count/unique/top/freq for text columns and
// mean/std/min/quartiles/max for numeric ones.
func (f *Frame) Describe(opt Options) []ColumnSummary {
	out := make([]ColumnSummary, 0, len(f.Columns))
	for _, c := range f.Columns {
		miss := c.MissingCount()
		s := ColumnSummary{Name: c.Name, Kind: c.Kind, Count: c.Len() - miss, Missing: miss}
		nan := math.NaN()
		s.Mean, s.Std, s.Min, s.Q25, s.Median, s.Q75, s.Max = nan, nan, nan, nan, nan, nan, nan
		switch c.Kind {
		case KindNumeric:
			vals := c.Values()
			if len(vals) > 0 {
				sorted := append([]float64(nil), vals...)
				sort.Float64s(sorted)
				s.Mean = Mean(vals)
				s.Std = StdDev(vals)
				s.Min = sorted[0]
				s.Q25 = quantile(sorted, 0.25)
				s.Median = quantile(sorted, 0.5)
				s.Q75 = quantile(sorted, 0.75)
				s.Max = sorted[len(sorted)-1]
			}
			if opt.Outliers && len(vals) >= 8 {
				thr := opt.OutlierThreshold
				if thr <= 0 {
					thr = 3.5
				}
				s.OutliersCount, s.OutliersMaxAbsZ = robustOutliers(vals, thr)
				s.OutlierThreshold = thr
			}
		case KindText:
			counts := f.valueCounts(c, false)
			s.Unique = len(counts)
			if len(counts) > 0 {
				s.Top = counts[0].Value
				s.Freq = counts[0].Count
			}
		}
		out = append(out, s)
	}
	return out
}

// MissingCounts returns the number of missing cells per column.
func (f *Frame) MissingCounts() []MissingCount {
	out := make([]MissingCount, len(f.Columns))
	for i, c := range f.Columns {
		out[i] = MissingCount{Column: c.Name, Count: c.MissingCount()}
	}
	return out
}

// TotalMissing returns the number of missing cells in the frame.
func (f *Frame) TotalMissing() int {
	n := 0
	for _, c := range f.Columns {
		n += c.MissingCount()
	}
	return n
}

// ValueCounts counts the string rendering of every cell of a column, missing
// cells included as "nan". Ordered by count descending, ties by first appearance.
func (f *Frame) ValueCounts(c *Column) []CategoryCount {
	return f.valueCounts(c, true)
}

func (f *Frame) valueCounts(c *Column, withMissing bool) []CategoryCount {
	idx := map[string]int{}
	var out []CategoryCount
	for i := 0; i < c.Len(); i++ {
		if c.Missing[i] && !withMissing {
			continue
		}
		v := c.Text(i)
		if k, ok := idx[v]; ok {
			out[k].Count++
			continue
		}
		idx[v] = len(out)
		out = append(out, CategoryCount{Value: v, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
