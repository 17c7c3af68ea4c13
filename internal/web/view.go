package web

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/vynguyen175/vizion/internal/analysis"
	"github.com/vynguyen175/vizion/internal/charts"
	"github.com/vynguyen175/vizion/internal/cleaning"
	"github.com/vynguyen175/vizion/internal/store"
)

// base carries what the layout needs on every page.
type base struct {
	Title  string
	User   *store.User
	Notice string
	Error  string
}

// notices maps redirect codes to banner text.
var notices = map[string]string{
	"registered": "New account created! You can now log in.",
	"saved":      "Analysis history saved.",
	"updated":    "Analysis updated.",
	"deleted":    "Analysis deleted.",
	"cleared":    "All analysis history deleted.",
	"discarded":  "Upload discarded.",
}

func noticeFor(q url.Values) string { return notices[q.Get("notice")] }

type table struct {
	Headers []string
	Rows    [][]string
}

func previewTable(f *analysis.Frame, n int) table {
	head := f.Head(n)
	t := table{Headers: head.Names()}
	for i := 0; i < head.Len(); i++ {
		row := make([]string, head.NumCols())
		for j, c := range head.Columns {
			row[j] = c.Text(i)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

var describeHeaders = []string{"column", "type", "count", "missing", "unique", "top", "freq", "mean", "std", "min", "25%", "50%", "75%", "max"}

func describeTable(f *analysis.Frame) table {
	t := table{Headers: describeHeaders}
	for _, s := range f.Describe(analysis.Options{}) {
		row := []string{s.Name, string(s.Kind), fmt.Sprint(s.Count), fmt.Sprint(s.Missing)}
		if s.Kind == analysis.KindText {
			row = append(row, fmt.Sprint(s.Unique), s.Top, fmt.Sprint(s.Freq))
		} else {
			row = append(row, "", "", "")
		}
		for _, v := range []float64{s.Mean, s.Std, s.Min, s.Q25, s.Median, s.Q75, s.Max} {
			row = append(row, statText(v))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func statText(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return fmt.Sprintf("%.6g", v)
}

// chartPanel is one chart slot: an image URL, a metric line or a warning.
type chartPanel struct {
	Title   string
	URL     string
	SVGURL  string
	Metric  string
	Warning string
}

// analysisPanel is the summary and chart block for one frame.
type analysisPanel struct {
	Heading string
	Rows    int
	Cols    int
	Stats   table
	Missing []analysis.MissingCount
	Heatmap chartPanel
	Quick   chartPanel
	Compare chartPanel
}

func buildPanel(heading, datasetID string, f *analysis.Frame, cfg charts.VizConfig, clean url.Values) analysisPanel {
	p := analysisPanel{
		Heading: heading,
		Rows:    f.Len(),
		Cols:    f.NumCols(),
		Stats:   describeTable(f),
		Missing: f.MissingCounts(),
	}
	p.Heatmap = panelFor("Correlation Heatmap", datasetID, "heatmap", nil, clean, func() (*charts.Figure, error) {
		return charts.Heatmap(f)
	})
	p.Quick = panelFor("Quick Plot", datasetID, "quick", url.Values{
		"column": {cfg.QuickPlot.Column},
		"type":   {string(cfg.QuickPlot.ChartType)},
	}, clean, func() (*charts.Figure, error) {
		return charts.QuickPlot(f, cfg.QuickPlot.Column, cfg.QuickPlot.ChartType)
	})
	p.Compare = panelFor("Compare Columns", datasetID, "compare", url.Values{
		"x":    {cfg.Compare.X},
		"y":    {cfg.Compare.Y},
		"type": {string(cfg.Compare.ComparisonType)},
	}, clean, func() (*charts.Figure, error) {
		return charts.Compare(f, cfg.Compare.X, cfg.Compare.Y, cfg.Compare.ComparisonType)
	})
	return p
}

// panelFor builds the figure once so warnings and metrics show inline
// instead of as a broken image.
func panelFor(title, datasetID, kind string, q, clean url.Values, build func() (*charts.Figure, error)) chartPanel {
	cp := chartPanel{Title: title}
	fig, err := build()
	if err != nil {
		if w, ok := charts.AsWarning(err); ok {
			cp.Warning = w.Message
		} else {
			cp.Warning = err.Error()
		}
		return cp
	}
	if fig.Kind == charts.KindMetric && fig.Metric != nil {
		cp.Metric = fmt.Sprintf("%s: %g", fig.Metric.Label, fig.Metric.Value)
		return cp
	}
	vals := url.Values{}
	for k, v := range q {
		vals[k] = v
	}
	for k, v := range clean {
		vals[k] = v
	}
	u := fmt.Sprintf("/datasets/%s/charts/%s", url.PathEscape(datasetID), kind)
	if enc := vals.Encode(); enc != "" {
		cp.URL = u + "?" + enc
	} else {
		cp.URL = u
	}
	vals.Set("format", string(charts.SVG))
	cp.SVGURL = u + "?" + vals.Encode()
	return cp
}

// option is one entry of a select control.
type option struct {
	Value    string
	Label    string
	Selected bool
}

func columnOptions(f *analysis.Frame, selected string) []option {
	out := make([]option, 0, f.NumCols())
	for _, n := range f.Names() {
		out = append(out, option{Value: n, Label: n, Selected: n == selected})
	}
	return out
}

func chartTypeOptions(selected charts.ChartType) []option {
	out := make([]option, 0, len(charts.ChartTypes))
	for _, t := range charts.ChartTypes {
		out = append(out, option{Value: string(t), Label: string(t), Selected: t == selected})
	}
	return out
}

func compareTypeOptions(selected charts.CompareType) []option {
	out := make([]option, 0, len(charts.CompareTypes))
	for _, t := range charts.CompareTypes {
		out = append(out, option{Value: string(t), Label: string(t), Selected: t == selected})
	}
	return out
}

func strategyOptions(selected cleaning.MissingStrategy) []option {
	out := make([]option, 0, len(cleaning.Strategies))
	for _, s := range cleaning.Strategies {
		out = append(out, option{Value: string(s.Value), Label: s.Label, Selected: s.Value == selected})
	}
	return out
}

// selectionFrom overrides cfg with any chart selection present in v.
func selectionFrom(v url.Values, cfg charts.VizConfig) charts.VizConfig {
	if s := v.Get("column"); s != "" {
		cfg.QuickPlot.Column = s
	}
	if s := v.Get("chart_type"); s != "" {
		cfg.QuickPlot.ChartType = charts.ChartType(s)
	}
	if s := v.Get("x"); s != "" {
		cfg.Compare.X = s
	}
	if s := v.Get("y"); s != "" {
		cfg.Compare.Y = s
	}
	if s := v.Get("comparison_type"); s != "" {
		cfg.Compare.ComparisonType = charts.CompareType(s)
	}
	return cfg
}

// cleaningFrom reads the cleaning controls. Unknown strategies fall back to none.
func cleaningFrom(v url.Values) cleaning.Options {
	st, err := cleaning.ParseStrategy(v.Get("missing"))
	if err != nil {
		st = cleaning.None
	}
	return cleaning.Options{Missing: st, DropDuplicates: truthy(v.Get("dedupe"))}
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}

// cleaningQuery encodes opt for chart and download links; empty when nothing is selected.
func cleaningQuery(opt cleaning.Options) url.Values {
	v := url.Values{}
	if opt.Missing != cleaning.None && opt.Missing != "" {
		v.Set("missing", string(opt.Missing))
	}
	if opt.DropDuplicates {
		v.Set("dedupe", "1")
	}
	return v
}

// datasetPage backs the dataset template in its three modes.
type datasetPage struct {
	base
	// Mode is "new" for an unsaved upload, "view" for a saved analysis and
	// "edit" while changing a saved analysis.
	Mode       string
	Dataset    *store.Dataset
	AnalysisID string
	Summary    string
	FormAction string
	Preview    table
	Original   analysisPanel

	QuickColumns []option
	ChartTypes   []option
	XColumns     []option
	YColumns     []option
	CompareTypes []option
	Config       charts.VizConfig

	Strategies     []option
	DropDuplicates bool
	CleanMessages  []string
	CleanUnchanged bool
	Cleaned        *analysisPanel
	CleanedURL     string
}

func newDatasetPage(mode string, d *store.Dataset, f *analysis.Frame, cfg charts.VizConfig, clean cleaning.Options, previewRows int) *datasetPage {
	p := &datasetPage{
		base:         base{Title: d.Filename},
		Mode:         mode,
		Dataset:      d,
		Preview:      previewTable(f, previewRows),
		Original:     buildPanel("Analyze this Dataset (Original)", d.ID, f, cfg, nil),
		QuickColumns: columnOptions(f, cfg.QuickPlot.Column),
		ChartTypes:   chartTypeOptions(cfg.QuickPlot.ChartType),
		XColumns:     columnOptions(f, cfg.Compare.X),
		YColumns:     columnOptions(f, cfg.Compare.Y),
		CompareTypes: compareTypeOptions(cfg.Compare.ComparisonType),
		Config:       cfg,
	}
	if mode == "view" {
		return p
	}
	p.Strategies = strategyOptions(clean.Missing)
	p.DropDuplicates = clean.DropDuplicates
	cleaned, res := cleaning.Clean(f, clean)
	p.CleanMessages = res.Messages
	q := cleaningQuery(clean)
	p.CleanedURL = fmt.Sprintf("/datasets/%s/cleaned.csv", url.PathEscape(d.ID))
	if enc := q.Encode(); enc != "" {
		p.CleanedURL += "?" + enc
	}
	if cleaned.Equal(f) {
		p.CleanUnchanged = true
		return p
	}
	panel := buildPanel("Analyze Cleaned Data", d.ID, cleaned, cfg.Restore(cleaned), q)
	p.Cleaned = &panel
	return p
}

// homePage lists saved analyses and offers the upload form.
type homePage struct {
	base
	History []historyEntry
}

type historyEntry struct {
	ID      string
	Label   string
	Created string
	Summary string
	Rows    int
	Columns int
}

func historyEntries(list []*store.Analysis) []historyEntry {
	out := make([]historyEntry, 0, len(list))
	for _, a := range list {
		e := historyEntry{
			ID:      a.ID,
			Label:   "[Missing dataset]",
			Created: a.CreatedAt.Format("2006-01-02 15:04:05"),
			Summary: a.Summary,
		}
		if a.Dataset != nil {
			e.Label = a.Dataset.Filename
			e.Rows = a.Dataset.RowCount
			e.Columns = a.Dataset.ColumnCount
		}
		out = append(out, e)
	}
	return out
}

// authPage backs the login and register forms.
type authPage struct {
	base
	Name  string
	Email string
}

type errorPage struct {
	base
	Status int
}
