package charts

import "github.com/vynguyen175/vizion/internal/analysis"

// Heatmap builds the annotated correlation matrix of the numeric columns.
func Heatmap(f *analysis.Frame) (*Figure, error) {
	m := f.Corr()
	if m == nil {
		return nil, warn("No numeric columns found for correlation.")
	}
	return &Figure{Kind: KindHeatmap, Title: "Correlation Heatmap", Matrix: m}, nil
}
