package analysis

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestDescribe_NumericAndText(t *testing.T) {
	f := mustReadCSV(t, "n,s\n1,a\n2,b\n3,a\n4,\n")
	sum := f.Describe(DefaultOptions())
	if len(sum) != 2 {
		t.Fatalf("len = %d, want 2", len(sum))
	}
	n := sum[0]
	if n.Count != 4 || n.Missing != 0 {
		t.Fatalf("count=%d missing=%d", n.Count, n.Missing)
	}
	checks := []struct {
		name      string
		got, want float64
	}{
		{"mean", n.Mean, 2.5},
		{"std", n.Std, 1.2909944487358056},
		{"min", n.Min, 1},
		{"q25", n.Q25, 1.75},
		{"median", n.Median, 2.5},
		{"q75", n.Q75, 3.25},
		{"max", n.Max, 4},
	}
	for _, c := range checks {
		if !approx(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	s := sum[1]
	if s.Count != 3 || s.Missing != 1 || s.Unique != 2 || s.Top != "a" || s.Freq != 2 {
		t.Fatalf("text summary = %+v", s)
	}
	if !math.IsNaN(s.Mean) {
		t.Fatalf("text mean = %v, want NaN", s.Mean)
	}
}

func TestDescribe_Outliers(t *testing.T) {
	f := mustReadCSV(t, "v\n10\n11\n10\n12\n11\n10\n11\n12\n500\n")
	s := f.Describe(DefaultOptions())[0]
	if s.OutliersCount != 1 || s.OutlierThreshold != 3.5 {
		t.Fatalf("outliers = %d thr=%v, want 1/3.5", s.OutliersCount, s.OutlierThreshold)
	}
	short := mustReadCSV(t, "v\n1\n2\n100\n").Describe(DefaultOptions())[0]
	if short.OutlierThreshold != 0 {
		t.Fatalf("short columns should skip outlier detection")
	}
	off := f.Describe(Options{})[0]
	if off.OutlierThreshold != 0 || off.OutliersCount != 0 {
		t.Fatalf("outliers disabled: got %d thr=%v", off.OutliersCount, off.OutlierThreshold)
	}
	if off.Mean != s.Mean || off.Median != s.Median {
		t.Fatalf("options should not change the statistics")
	}
}

func TestMissingCounts(t *testing.T) {
	f := mustReadCSV(t, "a,b\n1,\n,\n3,x\n")
	want := []MissingCount{{Column: "a", Count: 1}, {Column: "b", Count: 2}}
	if diff := cmp.Diff(want, f.MissingCounts()); diff != "" {
		t.Fatalf("missing mismatch (-want +got):\n%s", diff)
	}
}

func TestValueCounts_TiesKeepFirstAppearance(t *testing.T) {
	f := mustReadCSV(t, "c\nb\na\nb\na\nNA\nz\n")
	c, _ := f.Column("c")
	want := []CategoryCount{{"b", 2}, {"a", 2}, {"nan", 1}, {"z", 1}}
	if diff := cmp.Diff(want, f.ValueCounts(c)); diff != "" {
		t.Fatalf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestQuantileAndMedian(t *testing.T) {
	if got := Median([]float64{5, 1, 3}); got != 3 {
		t.Fatalf("Median = %v, want 3", got)
	}
	if got := Quantile([]float64{4, 1, 3, 2}, 0.5); got != 2.5 {
		t.Fatalf("Quantile = %v, want 2.5", got)
	}
	if !math.IsNaN(Mean(nil)) || !math.IsNaN(StdDev([]float64{1})) {
		t.Fatalf("empty statistics should be NaN")
	}
}
