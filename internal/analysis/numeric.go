package analysis

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// normalizeNumber strips thousands separators and rewrites the decimal separator to '.'.
func normalizeNumber(s string, opt Options) string {
	raw := strings.TrimSpace(s)
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	dec := opt.DecimalSeparator
	if dec == 0 {
		dec = '.'
	}
	if thou := opt.ThousandsSeparator; thou != 0 && thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	return raw
}

func parseNumeric(s string, opt Options) (float64, bool) {
	raw := normalizeNumber(s, opt)
	if raw == "" || strings.ContainsAny(raw, " _") || strings.HasPrefix(strings.ToLower(strings.TrimLeft(raw, "+-")), "0x") {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// Mean returns the arithmetic mean, NaN for no values.
func Mean(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// StdDev returns the sample standard deviation (n-1), NaN for fewer than two values.
func StdDev(vals []float64) float64 {
	if len(vals) < 2 {
		return math.NaN()
	}
	// Welford update
	var n int
	var mean, m2 float64
	for _, x := range vals {
		n++
		delta := x - mean
		mean += delta / float64(n)
		m2 += delta * (x - mean)
	}
	return math.Sqrt(m2 / float64(n-1))
}

// Median returns the median, NaN for no values.
func Median(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	return quantile(cp, 0.5)
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

// robustOutliers counts values whose MAD-based z-score exceeds thr.
func robustOutliers(vals []float64, thr float64) (count int, maxAbsZ float64) {
	median, mad := medianMAD(vals)
	if mad <= 0 {
		return 0, 0
	}
	for _, v := range vals {
		az := math.Abs(0.6745 * (v - median) / mad)
		if az > thr {
			count++
		}
		if az > maxAbsZ {
			maxAbsZ = az
		}
	}
	return count, maxAbsZ
}

// quantile interpolates linearly between closest ranks of a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// Quantile returns the q-th quantile of unsorted values using linear interpolation.
func Quantile(vals []float64, q float64) float64 {
	cp := append([]float64(nil), vals...)
	sort.Float64s(cp)
	return quantile(cp, q)
}
