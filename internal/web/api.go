package web

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"

	"go.uber.org/zap"

	"github.com/vynguyen175/vizion/internal/analysis"
	"github.com/vynguyen175/vizion/internal/store"
	"github.com/vynguyen175/vizion/internal/workspace"
)

type summaryResponse struct {
	Dataset      datasetJSON      `json:"dataset"`
	Columns      []columnJSON     `json:"columns"`
	Missing      []missingJSON    `json:"missing"`
	TotalMissing int              `json:"total_missing"`
	Correlation  *correlationJSON `json:"correlation"`
}

type datasetJSON struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Rows     int    `json:"rows"`
	Columns  int    `json:"columns"`
	Status   string `json:"status"`
}

type columnJSON struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Count   int      `json:"count"`
	Missing int      `json:"missing"`
	Unique  *int     `json:"unique,omitempty"`
	Top     *string  `json:"top,omitempty"`
	Freq    *int     `json:"freq,omitempty"`
	Mean    *float64 `json:"mean"`
	Std     *float64 `json:"std"`
	Min     *float64 `json:"min"`
	Q25     *float64 `json:"25%"`
	Median  *float64 `json:"50%"`
	Q75     *float64 `json:"75%"`
	Max     *float64 `json:"max"`
}

type missingJSON struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
}

type correlationJSON struct {
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"`
}

// number maps NaN and infinities to JSON null.
func number(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func summarize(d *store.Dataset, f *analysis.Frame) summaryResponse {
	resp := summaryResponse{
		Dataset: datasetJSON{
			ID:       d.ID,
			Filename: d.Filename,
			Rows:     f.Len(),
			Columns:  f.NumCols(),
			Status:   d.Status,
		},
		TotalMissing: f.TotalMissing(),
	}
	for _, s := range f.Describe(analysis.Options{}) {
		c := columnJSON{
			Name:    s.Name,
			Kind:    string(s.Kind),
			Count:   s.Count,
			Missing: s.Missing,
			Mean:    number(s.Mean),
			Std:     number(s.Std),
			Min:     number(s.Min),
			Q25:     number(s.Q25),
			Median:  number(s.Median),
			Q75:     number(s.Q75),
			Max:     number(s.Max),
		}
		if s.Kind == analysis.KindText {
			unique, top, freq := s.Unique, s.Top, s.Freq
			c.Unique, c.Top, c.Freq = &unique, &top, &freq
		}
		resp.Columns = append(resp.Columns, c)
	}
	for _, m := range f.MissingCounts() {
		resp.Missing = append(resp.Missing, missingJSON{Column: m.Column, Count: m.Count})
	}
	if m := f.Corr(); m != nil {
		cj := &correlationJSON{Columns: m.Columns, Values: make([][]*float64, len(m.Values))}
		for i, row := range m.Values {
			cj.Values[i] = make([]*float64, len(row))
			for j, v := range row {
				cj.Values[i][j] = number(v)
			}
		}
		resp.Correlation = cj
	}
	return resp
}

func (s *Server) handleSummaryAPI(w http.ResponseWriter, r *http.Request, u *store.User) {
	ld, err := s.ws.Dataset(r.Context(), u.ID, r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "dataset not found"})
		case errors.Is(err, workspace.ErrDatasetMissing):
			writeJSON(w, http.StatusGone, map[string]string{"error": workspace.Message(err)})
		default:
			s.log.Error("summary api", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, summarize(ld.Dataset, ld.Frame))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
