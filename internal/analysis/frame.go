package analysis

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ErrNoColumns is returned when an input has no header row to parse.
var ErrNoColumns = errors.New("no columns to parse from file")

// Kind is the inferred type of a column.
type Kind string

const (
	KindNumeric Kind = "numeric"
	KindText    Kind = "text"
)

// Options controls how tabular input is read.
type Options struct {
	// MaxRows limits rows read; 0 means unlimited.
	MaxRows int
	// SampleRows determines how many example rows to include in the report.
	SampleRows int
	// Delimiter for CSV. If 0, sniffs among ',', ';', '\t', '|' from the header line.
	Delimiter rune
	// Numeric parsing locale. DecimalSeparator 0 means '.'; ThousandsSeparator 0 means none.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// Outlier detection via robust Z-score (MAD). If Outliers is true, counts |z|>threshold.
	Outliers         bool
	OutlierThreshold float64
}

// DefaultOptions returns reasonable defaults for dataset analysis.
func DefaultOptions() Options {
	return Options{
		MaxRows:          100000,
		SampleRows:       5,
		Outliers:         true,
		OutlierThreshold: 3.5,
	}
}

// Column is a single named column of a Frame. Numeric columns keep parsed
// values in Nums (NaN where missing); text columns keep trimmed cells in Raw.
type Column struct {
	Name    string
	Kind    Kind
	Raw     []string
	Nums    []float64
	Missing []bool
	// Integer is set when every cell parsed as an integer and none is missing.
	Integer bool
}

// Frame is an in-memory table parsed from an upload.
type Frame struct {
	Name     string
	Columns  []*Column
	Warnings []string
	// TotalRows counts data rows seen in the source, including rows past MaxRows.
	TotalRows int
}

var naTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"null": {}, "NULL": {}, "None": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "<NA>": {},
	"1.#IND": {}, "1.#QNAN": {}, "-1.#IND": {}, "-1.#QNAN": {},
}

// IsMissing reports whether a raw cell denotes a missing value.
func IsMissing(s string) bool {
	_, ok := naTokens[strings.TrimSpace(s)]
	return ok
}

// ReadCSV parses CSV content with a header row into a Frame.
// Input that is not valid UTF-8 is decoded as latin-1.
func ReadCSV(r io.Reader, name string, opt Options) (*Frame, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data, err := decodeText(raw)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrNoColumns
	}
	delim := opt.Delimiter
	if delim == 0 {
		delim = sniffDelimiter(data)
	}
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoColumns
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	ncol := len(header)
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	var records [][]string
	total := 0
	for {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", total+1, err)
		}
		total++
		if len(rec) > ncol {
			return nil, fmt.Errorf("read row %d: expected %d fields, saw %d", total, ncol, len(rec))
		}
		if len(records) >= maxRows {
			continue
		}
		records = append(records, rec)
	}
	f := newFrame(name, header, records, opt)
	f.TotalRows = total
	if len(records) < total {
		f.Warnings = append(f.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", len(records), total))
	}
	return f, nil
}

// decodeText strips a UTF-8 BOM and falls back to latin-1 for invalid UTF-8.
func decodeText(b []byte) ([]byte, error) {
	b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
	if utf8.Valid(b) {
		return b, nil
	}
	out, _, err := transform.Bytes(charmap.ISO8859_1.NewDecoder(), b)
	if err != nil {
		return nil, fmt.Errorf("decode latin-1: %w", err)
	}
	return out, nil
}

func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestN := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestN {
			best, bestN = d, n
		}
	}
	return best
}

// newFrame builds typed columns from a header and string records.
func newFrame(name string, header []string, records [][]string, opt Options) *Frame {
	names := dedupeHeader(header)
	f := &Frame{Name: name, Columns: make([]*Column, len(names)), TotalRows: len(records)}
	for j, n := range names {
		cells := make([]string, len(records))
		for i, rec := range records {
			if j < len(rec) {
				cells[i] = strings.TrimSpace(rec[j])
			}
		}
		f.Columns[j] = inferColumn(n, cells, opt)
	}
	return f
}

// dedupeHeader mirrors pandas naming: blank headers become "Unnamed: i" and
// repeated names get ".1", ".2" suffixes.
func dedupeHeader(header []string) []string {
	out := make([]string, len(header))
	used := map[string]struct{}{}
	suffix := map[string]int{}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		base := h
		n := suffix[base]
		for {
			if _, ok := used[h]; !ok {
				break
			}
			n++
			h = fmt.Sprintf("%s.%d", base, n)
		}
		suffix[base] = n
		used[h] = struct{}{}
		out[i] = h
	}
	return out
}

func inferColumn(name string, cells []string, opt Options) *Column {
	c := &Column{Name: name, Missing: make([]bool, len(cells))}
	nums := make([]float64, len(cells))
	numeric := true
	integer := true
	for i, v := range cells {
		if IsMissing(v) {
			c.Missing[i] = true
			nums[i] = math.NaN()
			integer = false
			continue
		}
		if !numeric {
			continue
		}
		x, ok := parseNumeric(v, opt)
		if !ok {
			numeric = false
			continue
		}
		nums[i] = x
		if integer {
			if _, err := strconv.ParseInt(normalizeNumber(v, opt), 10, 64); err != nil {
				integer = false
			}
		}
	}
	if numeric {
		c.Kind = KindNumeric
		c.Nums = nums
		c.Integer = integer && len(cells) > 0
		return c
	}
	c.Kind = KindText
	c.Raw = make([]string, len(cells))
	for i, v := range cells {
		if !c.Missing[i] {
			c.Raw[i] = v
		}
	}
	return c
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if len(f.Columns) == 0 {
		return 0
	}
	return f.Columns[0].Len()
}

// NumCols returns the number of columns.
func (f *Frame) NumCols() int { return len(f.Columns) }

// Names returns column names in order.
func (f *Frame) Names() []string {
	out := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		out[i] = c.Name
	}
	return out
}

// Column looks up a column by exact name.
func (f *Frame) Column(name string) (*Column, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// NumericColumns returns the numeric columns in order.
func (f *Frame) NumericColumns() []*Column {
	var out []*Column
	for _, c := range f.Columns {
		if c.Kind == KindNumeric {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := &Frame{Name: f.Name, TotalRows: f.TotalRows, Columns: make([]*Column, len(f.Columns))}
	out.Warnings = append(out.Warnings, f.Warnings...)
	for i, c := range f.Columns {
		out.Columns[i] = c.clone()
	}
	return out
}

// Head returns a copy holding the first n rows.
func (f *Frame) Head(n int) *Frame {
	if n > f.Len() {
		n = f.Len()
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return f.TakeRows(idx)
}

// TakeRows returns a copy holding the given rows in the given order.
func (f *Frame) TakeRows(idx []int) *Frame {
	out := &Frame{Name: f.Name, TotalRows: len(idx), Columns: make([]*Column, len(f.Columns))}
	out.Warnings = append(out.Warnings, f.Warnings...)
	for j, c := range f.Columns {
		nc := &Column{Name: c.Name, Kind: c.Kind, Integer: c.Integer, Missing: make([]bool, len(idx))}
		if c.Kind == KindNumeric {
			nc.Nums = make([]float64, len(idx))
		} else {
			nc.Raw = make([]string, len(idx))
		}
		for k, i := range idx {
			nc.Missing[k] = c.Missing[i]
			if c.Kind == KindNumeric {
				nc.Nums[k] = c.Nums[i]
			} else {
				nc.Raw[k] = c.Raw[i]
			}
		}
		out.Columns[j] = nc
	}
	return out
}

// TakeColumns returns a copy holding the given columns in the given order.
func (f *Frame) TakeColumns(idx []int) *Frame {
	out := &Frame{Name: f.Name, TotalRows: f.TotalRows, Columns: make([]*Column, len(idx))}
	out.Warnings = append(out.Warnings, f.Warnings...)
	for k, j := range idx {
		out.Columns[k] = f.Columns[j].clone()
	}
	if len(idx) == 0 {
		out.TotalRows = 0
	}
	return out
}

// Equal reports whether two frames hold the same names, shape and cells.
// Missing equals missing; numeric cells compare by value.
func (f *Frame) Equal(o *Frame) bool {
	if f.NumCols() != o.NumCols() || f.Len() != o.Len() {
		return false
	}
	for j, c := range f.Columns {
		oc := o.Columns[j]
		if c.Name != oc.Name || c.Kind != oc.Kind {
			return false
		}
		for i := 0; i < c.Len(); i++ {
			if c.Key(i) != oc.Key(i) {
				return false
			}
		}
	}
	return true
}

// WriteCSV writes the frame with a header row and no index column.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Names()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(f.Columns))
	for i := 0; i < f.Len(); i++ {
		for j, c := range f.Columns {
			if c.Missing[i] {
				rec[j] = ""
			} else {
				rec[j] = c.Text(i)
			}
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Missing) }

// IsMissing reports whether cell i is missing.
func (c *Column) IsMissing(i int) bool { return c.Missing[i] }

// Float returns the numeric value of cell i.
func (c *Column) Float(i int) (float64, bool) {
	if c.Kind != KindNumeric || c.Missing[i] {
		return math.NaN(), false
	}
	return c.Nums[i], true
}

// Text renders cell i the way a string conversion would: missing cells read "nan".
func (c *Column) Text(i int) string {
	if c.Missing[i] {
		return "nan"
	}
	if c.Kind == KindNumeric {
		if c.Integer {
			return strconv.FormatInt(int64(c.Nums[i]), 10)
		}
		return FormatFloat(c.Nums[i])
	}
	return c.Raw[i]
}

// Key returns a canonical identity for cell i, used for equality and grouping.
func (c *Column) Key(i int) string {
	if c.Missing[i] {
		return "\x00na"
	}
	if c.Kind == KindNumeric {
		return strconv.FormatFloat(c.Nums[i], 'g', -1, 64)
	}
	return c.Raw[i]
}

// SetFloat stores a numeric value and clears the missing flag.
func (c *Column) SetFloat(i int, v float64) {
	c.Nums[i] = v
	c.Missing[i] = false
	if v != math.Trunc(v) {
		c.Integer = false
	}
}

// SetText stores a text value and clears the missing flag.
func (c *Column) SetText(i int, s string) {
	c.Raw[i] = s
	c.Missing[i] = false
}

// Values returns the non-missing numeric values in row order.
func (c *Column) Values() []float64 {
	out := make([]float64, 0, len(c.Nums))
	for i, v := range c.Nums {
		if !c.Missing[i] {
			out = append(out, v)
		}
	}
	return out
}

// MissingCount returns the number of missing cells.
func (c *Column) MissingCount() int {
	n := 0
	for _, m := range c.Missing {
		if m {
			n++
		}
	}
	return n
}

func (c *Column) clone() *Column {
	nc := &Column{Name: c.Name, Kind: c.Kind, Integer: c.Integer}
	nc.Missing = append([]bool(nil), c.Missing...)
	if c.Nums != nil {
		nc.Nums = append([]float64(nil), c.Nums...)
	}
	if c.Raw != nil {
		nc.Raw = append([]string(nil), c.Raw...)
	}
	return nc
}

// FormatFloat renders a float the way Python's repr does for common magnitudes:
// integral values keep a trailing ".0" and very small or large values use exponents.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	a := math.Abs(v)
	if a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
