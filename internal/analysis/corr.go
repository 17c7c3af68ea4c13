package analysis

import (
	"math"
	"sort"
)

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]; NaN when undefined
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A, B string
	R    float64
}

// Pearson computes r over rows where both x and y are not NaN.
// ok is false when fewer than two rows overlap, either side has zero variance
// or an infinite value makes r undefined.
func Pearson(x, y []float64) (float64, bool) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	// two-pass on the complete rows for accuracy
	var xs, ys []float64
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 || constant(xs) || constant(ys) {
		return math.NaN(), false
	}
	mx, my := Mean(xs), Mean(ys)
	var sxx, syy, sxy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxx += dx * dx
		syy += dy * dy
		sxy += dx * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN(), false
	}
	r := sxy / math.Sqrt(sxx*syy)
	// infinite inputs leave r undefined
	if math.IsNaN(r) {
		return math.NaN(), false
	}
	return math.Max(-1, math.Min(1, r)), true
}

func constant(vals []float64) bool {
	for _, v := range vals[1:] {
		if v != vals[0] {
			return false
		}
	}
	return true
}

// Corr computes the Pearson correlation matrix of numeric columns using
// pairwise-complete observations. Returns nil with fewer than two numeric columns.
func (f *Frame) Corr() *CorrMatrix {
	num := f.NumericColumns()
	if len(num) < 2 {
		return nil
	}
	n := len(num)
	names := make([]string, n)
	mat := make([][]float64, n)
	for a := range mat {
		names[a] = num[a].Name
		mat[a] = make([]float64, n)
	}
	for a := 0; a < n; a++ {
		for b := 0; b <= a; b++ {
			r, _ := Pearson(num[a].Nums, num[b].Nums)
			mat[a][b] = r
			mat[b][a] = r
		}
	}
	return &CorrMatrix{Columns: names, Values: mat}
}

// TopPairs lists the off-diagonal pairs ordered by |r| descending, skipping NaN.
func (m *CorrMatrix) TopPairs(limit int) []PairCorr {
	if m == nil {
		return nil
	}
	var pairs []PairCorr
	n := len(m.Columns)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if r := m.Values[i][j]; !math.IsNaN(r) {
				pairs = append(pairs, PairCorr{A: m.Columns[i], B: m.Columns[j], R: r})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs
}
