package analysis

import (
	"fmt"
	"math"
	"strings"
)

// Report is a markdown-friendly analysis of a tabular dataset.
type Report struct {
	Name      string
	Rows      int
	Processed int
	Cols      []ColumnSummary
	Missing   []MissingCount
	Samples   [][]string
	Warnings  []string
	Corr      *CorrMatrix
}

// Analyze builds a Report from a parsed frame.
func Analyze(f *Frame, opt Options) *Report {
	rep := &Report{
		Name:      f.Name,
		Rows:      f.TotalRows,
		Processed: f.Len(),
		Cols:      f.Describe(opt),
		Missing:   f.MissingCounts(),
		Corr:      f.Corr(),
	}
	rep.Warnings = append(rep.Warnings, f.Warnings...)
	// SampleRows 0 leaves the sample table out
	head := f.Head(max(opt.SampleRows, 0))
	for i := 0; i < head.Len(); i++ {
		row := make([]string, head.NumCols())
		for j, c := range head.Columns {
			if !c.Missing[i] {
				row[j] = c.Text(i)
			}
		}
		rep.Samples = append(rep.Samples, row)
	}
	if rep.Corr == nil {
		rep.Warnings = append(rep.Warnings, "No numeric columns found for correlation.")
	}
	return rep
}

// Markdown renders a compact report suitable for terminals or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	if r.Processed > 0 && r.Processed < r.Rows {
		b.WriteString(fmt.Sprintf("Rows: ~%d (processed %d)\n", r.Rows, r.Processed))
	} else {
		b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	}
	b.WriteString(fmt.Sprintf("Columns: %d\n\n", len(r.Cols)))

	b.WriteString("[SUMMARY STATISTICS]\n")
	for _, c := range r.Cols {
		total := c.Count + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100.0 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (count %d, missing %.1f%%)", safeName(c.Name), c.Kind, c.Count, missPct))
		switch c.Kind {
		case KindNumeric:
			if c.Count > 0 {
				b.WriteString(fmt.Sprintf(" — mean %s, std %s, min %s, 25%% %s, 50%% %s, 75%% %s, max %s",
					num(c.Mean), num(c.Std), num(c.Min), num(c.Q25), num(c.Median), num(c.Q75), num(c.Max)))
			}
			if c.OutlierThreshold > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold))
				if c.OutliersMaxAbsZ > 0 {
					b.WriteString(fmt.Sprintf(" (max |z|≈%.2f)", c.OutliersMaxAbsZ))
				}
			}
		case KindText:
			if c.Count > 0 {
				b.WriteString(fmt.Sprintf(" — unique %d, top %s (freq %d)", c.Unique, safeVal(c.Top), c.Freq))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("\n[MISSING VALUES]\n")
	for _, m := range r.Missing {
		b.WriteString(fmt.Sprintf("- %s: %d\n", safeName(m.Column), m.Count))
	}

	if pairs := r.Corr.TopPairs(10); len(pairs) > 0 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, p := range pairs {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", p.A, p.B, p.R))
		}
	}
	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		b.WriteString("| ")
		for i, c := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeName(c.Name))
		}
		b.WriteString(" |\n")
		b.WriteString("| ")
		for i := range r.Cols {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i := range r.Cols {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i]
				}
				if len(val) > 80 {
					val = val[:77] + "..."
				}
				b.WriteString(safeVal(val))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func num(v float64) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	return fmt.Sprintf("%.4g", v)
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
