package charts

import (
	"math"
	"sort"

	"github.com/vynguyen175/vizion/internal/analysis"
)

const densityPoints = 200

// HistogramBins buckets values with the "auto" rule: the smaller of the
// Sturges and Freedman-Diaconis widths, Sturges alone when the IQR is zero.
// The last bin is closed on the right.
func HistogramBins(vals []float64) []Bin {
	if len(vals) == 0 {
		return nil
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	n := float64(len(sorted))
	ptp := sorted[len(sorted)-1] - sorted[0]
	width := ptp / (math.Log2(n) + 1)
	iqr := analysis.Quantile(sorted, 0.75) - analysis.Quantile(sorted, 0.25)
	if fd := 2 * iqr * math.Pow(n, -1.0/3); fd > 0 && fd < width {
		width = fd
	}
	nbins := 1
	if width > 0 {
		nbins = int(math.Ceil((hi - lo) / width))
		if nbins < 1 {
			nbins = 1
		}
	}
	step := (hi - lo) / float64(nbins)
	bins := make([]Bin, nbins)
	for i := range bins {
		bins[i].Lo = lo + float64(i)*step
		bins[i].Hi = lo + float64(i+1)*step
	}
	bins[nbins-1].Hi = hi
	for _, v := range sorted {
		i := int((v - lo) / step)
		if i >= nbins {
			i = nbins - 1
		}
		if i < 0 {
			i = 0
		}
		bins[i].Count++
	}
	return bins
}

// densityCurve evaluates a Gaussian KDE with Scott's bandwidth over the data
// range, scaled so its area matches a histogram of the given bin width.
// Returns nil when the density is undefined.
func densityCurve(vals []float64, binWidth float64) *Series {
	n := len(vals)
	sd := analysis.StdDev(vals)
	if n < 2 || math.IsNaN(sd) || sd == 0 {
		return nil
	}
	bw := sd * math.Pow(float64(n), -0.2)
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	scale := float64(n) * binWidth
	norm := 1 / (float64(n) * bw * math.Sqrt(2*math.Pi))
	out := &Series{X: make([]float64, densityPoints), Y: make([]float64, densityPoints)}
	step := (hi - lo) / float64(densityPoints-1)
	for i := 0; i < densityPoints; i++ {
		x := lo + float64(i)*step
		var sum float64
		for _, v := range vals {
			z := (x - v) / bw
			sum += math.Exp(-0.5 * z * z)
		}
		out.X[i] = x
		out.Y[i] = sum * norm * scale
	}
	return out
}
