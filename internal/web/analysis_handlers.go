package web

import (
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/vynguyen175/vizion/internal/store"
)

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request, u *store.User) {
	s.showAnalysis(w, r, u, "view")
}

func (s *Server) handleAnalysisEdit(w http.ResponseWriter, r *http.Request, u *store.User) {
	s.showAnalysis(w, r, u, "edit")
}

func (s *Server) showAnalysis(w http.ResponseWriter, r *http.Request, u *store.User, mode string) {
	op, err := s.ws.OpenAnalysis(r.Context(), u.ID, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	cfg := op.Config
	if mode == "edit" {
		cfg = selectionFrom(q, cfg).Restore(op.Frame)
	}
	p := newDatasetPage(mode, op.Analysis.Dataset, op.Frame, cfg, cleaningFrom(q), s.opt.PreviewRows)
	p.User = u
	p.Notice = noticeFor(q)
	p.AnalysisID = op.Analysis.ID
	p.Summary = op.Analysis.Summary
	p.FormAction = "/analyses/" + url.PathEscape(op.Analysis.ID) + "/edit"
	s.render(w, http.StatusOK, "dataset", p)
}

func (s *Server) handleAnalysisUpdate(w http.ResponseWriter, r *http.Request, u *store.User) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid form.")
		return
	}
	id := r.PathValue("id")
	op, err := s.ws.OpenAnalysis(r.Context(), u.ID, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := s.ws.UpdateAnalysis(r.Context(), u.ID, id, selectionFrom(r.PostForm, op.Config)); err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/analyses/"+url.PathEscape(id)+"?notice=updated")
}

func (s *Server) handleAnalysisDelete(w http.ResponseWriter, r *http.Request, u *store.User) {
	if err := s.ws.DeleteAnalysis(r.Context(), u.ID, r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/?notice=deleted")
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request, u *store.User) {
	n, err := s.ws.ClearHistory(r.Context(), u.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.Debug("history cleared", zap.String("user_id", u.ID), zap.Int64("analyses", n))
	redirect(w, r, "/?notice=cleared")
}
