package web

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"github.com/vynguyen175/vizion/internal/charts"
	"github.com/vynguyen175/vizion/internal/cleaning"
	"github.com/vynguyen175/vizion/internal/store"
)

// handleChart renders /datasets/{id}/charts/{kind} where kind is quick,
// compare or heatmap. Guard warnings answer 422 with the message as text.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request, u *store.User) {
	q := r.URL.Query()
	format, err := charts.ParseFormat(q.Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ld, err := s.ws.Dataset(r.Context(), u.ID, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	f := ld.Frame
	if opt := cleaningFrom(q); opt.Missing != cleaning.None || opt.DropDuplicates {
		f, _ = cleaning.Clean(f, opt)
	}

	var fig *charts.Figure
	switch kind := r.PathValue("kind"); kind {
	case "quick":
		t := charts.ChartType(q.Get("type"))
		if !t.Valid() {
			http.Error(w, "unknown chart type", http.StatusBadRequest)
			return
		}
		fig, err = charts.QuickPlot(f, q.Get("column"), t)
	case "compare":
		t := charts.CompareType(q.Get("type"))
		if !t.Valid() {
			http.Error(w, "unknown comparison type", http.StatusBadRequest)
			return
		}
		fig, err = charts.Compare(f, q.Get("x"), q.Get("y"), t)
	case "heatmap":
		fig, err = charts.Heatmap(f)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		status := http.StatusBadRequest
		if _, ok := charts.AsWarning(err); ok {
			status = http.StatusUnprocessableEntity
		} else if !errors.Is(err, charts.ErrUnknownColumn) {
			s.fail(w, r, err)
			return
		}
		http.Error(w, err.Error(), status)
		return
	}

	width := intParam(q.Get("width"), s.opt.ChartWidth, 2400)
	height := intParam(q.Get("height"), s.opt.ChartHeight, 2400)
	var buf bytes.Buffer
	if err := charts.Render(fig, format, &buf, width, height); err != nil {
		if wmsg, ok := charts.AsWarning(err); ok {
			http.Error(w, wmsg.Message, http.StatusUnprocessableEntity)
			return
		}
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "private, max-age=60")
	_, _ = buf.WriteTo(w)
}

// intParam parses a positive size, falling back to def and capping at max.
func intParam(s string, def, max int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
