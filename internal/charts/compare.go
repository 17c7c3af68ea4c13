package charts

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/vynguyen175/vizion/internal/analysis"
)

const maxCompareGroups = 10

// Compare builds a two-column figure. Selections the comparison cannot
// represent return a *Warning.
func Compare(f *analysis.Frame, x, y string, t CompareType) (*Figure, error) {
	xc, err := column(f, x)
	if err != nil {
		return nil, err
	}
	yc, err := column(f, y)
	if err != nil {
		return nil, err
	}
	bothNumeric := xc.Kind == analysis.KindNumeric && yc.Kind == analysis.KindNumeric
	switch t {
	case CompareScatter:
		if !bothNumeric {
			return nil, warn("Scatter comparison works only for numeric columns.")
		}
		var s Series
		for i := 0; i < f.Len(); i++ {
			if xc.IsMissing(i) || yc.IsMissing(i) || !finite(xc.Nums[i]) || !finite(yc.Nums[i]) {
				continue
			}
			s.X = append(s.X, xc.Nums[i])
			s.Y = append(s.Y, yc.Nums[i])
		}
		fig := &Figure{Kind: KindScatter, Title: fmt.Sprintf("%s vs %s", x, y), XLabel: x, YLabel: y}
		if len(s.X) > 0 {
			fig.Series = []Series{s}
		}
		return fig, nil
	case CompareLine:
		if !bothNumeric {
			return nil, warn("Line comparison works best with numeric columns.")
		}
		return &Figure{
			Kind:   KindLine,
			Title:  fmt.Sprintf("%s over %s", y, x),
			XLabel: x,
			Series: segments(xc.Nums, yc.Nums, xc.Missing, yc.Missing),
		}, nil
	case CompareBar:
		groups := groupMeans(xc, yc)
		if len(groups) == 0 {
			return nil, warn("Bar comparison requires numeric Y and categorical X.")
		}
		if len(groups) > maxCompareGroups {
			groups = groups[:maxCompareGroups]
		}
		fig := &Figure{Kind: KindBar, Title: fmt.Sprintf("%s by %s", y, x), XLabel: x, YLabel: fmt.Sprintf("Average %s", y)}
		for _, g := range groups {
			fig.Labels = append(fig.Labels, g.label)
			fig.Values = append(fig.Values, g.mean)
		}
		return fig, nil
	case CompareCorrelation:
		if !bothNumeric {
			return nil, warn("Correlation comparison works only for numeric columns.")
		}
		r, ok := analysis.Pearson(xc.Nums, yc.Nums)
		if !ok {
			return nil, warn(fmt.Sprintf("Correlation between %s and %s is undefined.", x, y))
		}
		return &Figure{
			Kind:   KindMetric,
			Title:  fmt.Sprintf("Correlation between %s and %s", x, y),
			Metric: &Metric{Label: fmt.Sprintf("Correlation between %s and %s", x, y), Value: round3(r)},
		}, nil
	default:
		return nil, fmt.Errorf("unknown comparison type %q", t)
	}
}

type groupMean struct {
	label string
	key   float64
	mean  float64
}

// groupMeans averages y per distinct non-missing x, ordered by mean descending.
// Equal means keep the order of their keys. Returns nil when y is not numeric.
func groupMeans(xc, yc *analysis.Column) []groupMean {
	if yc.Kind != analysis.KindNumeric {
		return nil
	}
	type acc struct {
		label string
		key   float64
		sum   float64
		n     int
	}
	idx := map[string]int{}
	var accs []*acc
	for i := 0; i < xc.Len(); i++ {
		if xc.IsMissing(i) {
			continue
		}
		k := xc.Key(i)
		j, ok := idx[k]
		if !ok {
			j = len(accs)
			idx[k] = j
			a := &acc{label: xc.Text(i)}
			if v, ok := xc.Float(i); ok {
				a.key = v
			}
			accs = append(accs, a)
		}
		if !yc.IsMissing(i) && finite(yc.Nums[i]) {
			accs[j].sum += yc.Nums[i]
			accs[j].n++
		}
	}
	numericKeys := xc.Kind == analysis.KindNumeric
	sort.SliceStable(accs, func(i, j int) bool {
		if numericKeys {
			return accs[i].key < accs[j].key
		}
		return accs[i].label < accs[j].label
	})
	var out []groupMean
	for _, a := range accs {
		if a.n == 0 {
			continue
		}
		out = append(out, groupMean{label: a.label, key: a.key, mean: a.sum / float64(a.n)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].mean > out[j].mean })
	return out
}

func round3(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 3, 64), 64)
	if err != nil {
		return math.Round(v*1000) / 1000
	}
	return r
}
