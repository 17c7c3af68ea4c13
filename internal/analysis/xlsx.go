package analysis

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"path"
	"strconv"
	"strings"
)

// ReadXLSX reads one worksheet of an .xlsx workbook into a Frame. The first row
// is the header. If sheetName is empty the sheet is chosen by 1-based
// sheetIndex (0 means the first sheet).
func ReadXLSX(r io.ReaderAt, size int64, name, sheetName string, sheetIndex int, opt Options) (*Frame, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	wb, err := openWorkbook(zr)
	if err != nil {
		return nil, err
	}
	target, err := wb.sheetPath(sheetName, sheetIndex)
	if err != nil {
		return nil, fmt.Errorf("%w in workbook '%s'", err, name)
	}
	data := readZipEntry(zr, target)
	if data == nil {
		return nil, fmt.Errorf("worksheet %s missing from workbook '%s'", target, name)
	}
	rr := &sheetRows{dec: xml.NewDecoder(bytes.NewReader(data)), shared: wb.shared}
	header, ok := rr.next()
	if !ok || len(header) == 0 {
		return nil, ErrNoColumns
	}
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	var records [][]string
	total := 0
	for {
		row, ok := rr.next()
		if !ok {
			break
		}
		total++
		if len(records) < maxRows {
			records = append(records, row)
		}
	}
	f := newFrame(name, header, records, opt)
	f.TotalRows = total
	if len(records) < total {
		f.Warnings = append(f.Warnings, fmt.Sprintf("processed only %d/%d rows due to MaxRows", len(records), total))
	}
	return f, nil
}

type workbook struct {
	sheets []workbookSheet
	rels   map[string]string
	shared []string
}

type workbookSheet struct {
	Name    string `xml:"name,attr"`
	SheetID int    `xml:"sheetId,attr"`
	RID     string `xml:"id,attr"`
}

func openWorkbook(zr *zip.Reader) (*workbook, error) {
	wb := &workbook{rels: map[string]string{}}
	var doc struct {
		Sheets []workbookSheet `xml:"sheets>sheet"`
	}
	if raw := readZipEntry(zr, "xl/workbook.xml"); raw != nil {
		if err := xml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("parse workbook: %w", err)
		}
	}
	wb.sheets = doc.Sheets

	var rels struct {
		Items []struct {
			ID     string `xml:"Id,attr"`
			Target string `xml:"Target,attr"`
		} `xml:"Relationship"`
	}
	if raw := readZipEntry(zr, "xl/_rels/workbook.xml.rels"); raw != nil {
		if err := xml.Unmarshal(raw, &rels); err != nil {
			return nil, fmt.Errorf("parse workbook relationships: %w", err)
		}
	}
	for _, it := range rels.Items {
		if it.ID != "" && it.Target != "" {
			wb.rels[it.ID] = it.Target
		}
	}
	wb.shared = parseSharedStrings(readZipEntry(zr, "xl/sharedStrings.xml"))
	return wb, nil
}

func (wb *workbook) sheetPath(sheetName string, sheetIndex int) (string, error) {
	if sheetName != "" {
		names := make([]string, len(wb.sheets))
		for i, s := range wb.sheets {
			names[i] = s.Name
			if strings.EqualFold(s.Name, sheetName) {
				if rel, ok := wb.rels[s.RID]; ok {
					return normalizeRelPath(rel), nil
				}
			}
		}
		return "", fmt.Errorf("sheet '%s' not found (available sheets: %s)", sheetName, strings.Join(names, ", "))
	}
	idx := sheetIndex
	if idx <= 0 {
		idx = 1
	}
	for _, s := range wb.sheets {
		if s.SheetID == idx {
			if rel, ok := wb.rels[s.RID]; ok {
				return normalizeRelPath(rel), nil
			}
		}
	}
	if sheetIndex <= 0 && len(wb.sheets) > 0 {
		if rel, ok := wb.rels[wb.sheets[0].RID]; ok {
			return normalizeRelPath(rel), nil
		}
	}
	return path.Join("xl", "worksheets", fmt.Sprintf("sheet%d.xml", idx)), nil
}

func readZipEntry(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, err := io.ReadAll(rc)
		if err != nil {
			return nil
		}
		return b
	}
	return nil
}

// parseSharedStrings concatenates every <t> run of each <si> entry.
func parseSharedStrings(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var out []string
	var buf strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "si":
				out = append(out, buf.String())
			}
		case xml.CharData:
			if inText {
				buf.Write(el)
			}
		}
	}
}

// sheetRows streams rows of a worksheet, placing cells by their column reference.
type sheetRows struct {
	dec    *xml.Decoder
	shared []string
}

type sheetCell struct {
	Ref    string `xml:"r,attr"`
	Type   string `xml:"t,attr"`
	Value  string `xml:"v"`
	Inline string `xml:"is>t"`
}

func (r *sheetRows) next() ([]string, bool) {
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "row" {
			continue
		}
		var row struct {
			Cells []sheetCell `xml:"c"`
		}
		if err := r.dec.DecodeElement(&row, &start); err != nil {
			return nil, false
		}
		var out []string
		for pos, c := range row.Cells {
			col := pos
			if c.Ref != "" {
				col = colIndexFromRef(c.Ref)
			}
			if col < 0 {
				continue
			}
			for len(out) <= col {
				out = append(out, "")
			}
			out[col] = r.cellText(c)
		}
		return out, true
	}
}

func (r *sheetRows) cellText(c sheetCell) string {
	switch c.Type {
	case "s":
		i, err := strconv.Atoi(strings.TrimSpace(c.Value))
		if err != nil || i < 0 || i >= len(r.shared) {
			return ""
		}
		return r.shared[i]
	case "inlineStr":
		return c.Inline
	default:
		return c.Value
	}
}

// colIndexFromRef maps refs like "C12" to a 0-based column index.
func colIndexFromRef(ref string) int {
	idx := 0
	for i := 0; i < len(ref); i++ {
		ch := ref[i]
		switch {
		case ch >= 'A' && ch <= 'Z':
			idx = idx*26 + int(ch-'A'+1)
		case ch >= 'a' && ch <= 'z':
			idx = idx*26 + int(ch-'a'+1)
		default:
			return idx - 1
		}
	}
	return idx - 1
}

// normalizeRelPath converts relationship targets to zip entry names.
// Targets may be absolute ("/xl/worksheets/sheet1.xml") or relative to xl/.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return path.Join("xl", rel)
}
