package charts

import (
	"encoding/json"
	"fmt"

	"github.com/vynguyen175/vizion/internal/analysis"
)

// QuickPlotConfig is the saved quick plot selection.
type QuickPlotConfig struct {
	Column    string    `json:"column"`
	ChartType ChartType `json:"chart_type"`
}

// CompareConfig is the saved comparison selection.
type CompareConfig struct {
	X              string      `json:"x"`
	Y              string      `json:"y"`
	ComparisonType CompareType `json:"comparison_type"`
}

// VizConfig is the chart selection state stored with a saved analysis.
type VizConfig struct {
	QuickPlot QuickPlotConfig `json:"quick_plot"`
	Compare   CompareConfig   `json:"compare"`
}

// DefaultConfig selects the first column for every control.
func DefaultConfig(f *analysis.Frame) VizConfig {
	first := ""
	if f.NumCols() > 0 {
		first = f.Columns[0].Name
	}
	return VizConfig{
		QuickPlot: QuickPlotConfig{Column: first, ChartType: Bar},
		Compare:   CompareConfig{X: first, Y: first, ComparisonType: CompareScatter},
	}
}

// Restore returns the defaults for f overridden by every saved value that is
// still applicable: columns must exist in f and types must be known.
func (c VizConfig) Restore(f *analysis.Frame) VizConfig {
	out := DefaultConfig(f)
	has := func(name string) bool {
		_, ok := f.Column(name)
		return ok
	}
	if has(c.QuickPlot.Column) {
		out.QuickPlot.Column = c.QuickPlot.Column
	}
	if c.QuickPlot.ChartType.Valid() {
		out.QuickPlot.ChartType = c.QuickPlot.ChartType
	}
	if has(c.Compare.X) {
		out.Compare.X = c.Compare.X
	}
	if has(c.Compare.Y) {
		out.Compare.Y = c.Compare.Y
	}
	if c.Compare.ComparisonType.Valid() {
		out.Compare.ComparisonType = c.Compare.ComparisonType
	}
	return out
}

// ParseConfig decodes a stored config. Empty input yields the zero config.
func ParseConfig(data []byte) (VizConfig, error) {
	var c VizConfig
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return VizConfig{}, fmt.Errorf("parse chart config: %w", err)
	}
	return c, nil
}

// JSON encodes the config for storage.
func (c VizConfig) JSON() ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode chart config: %w", err)
	}
	return b, nil
}
