package web

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/vynguyen175/vizion/internal/analysis"
	"github.com/vynguyen175/vizion/internal/charts"
	"github.com/vynguyen175/vizion/internal/cleaning"
	"github.com/vynguyen175/vizion/internal/store"
	"github.com/vynguyen175/vizion/internal/workspace"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request, u *store.User) {
	s.renderHome(w, r, u, http.StatusOK, "")
}

func (s *Server) renderHome(w http.ResponseWriter, r *http.Request, u *store.User, status int, errMsg string) {
	hist, err := s.ws.History(r.Context(), u.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.render(w, status, "home", homePage{
		base:    base{Title: "History", User: u, Notice: noticeFor(r.URL.Query()), Error: errMsg},
		History: historyEntries(hist),
	})
}

func (s *Server) tooLarge() string {
	if s.opt.MaxUploadBytes < 1<<20 {
		return fmt.Sprintf("File is larger than %d KB.", s.opt.MaxUploadBytes>>10)
	}
	return fmt.Sprintf("File is larger than %d MB.", s.opt.MaxUploadBytes>>20)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, u *store.User) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opt.MaxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.renderHome(w, r, u, http.StatusRequestEntityTooLarge, s.tooLarge())
			return
		}
		s.renderHome(w, r, u, http.StatusBadRequest, "Please choose a file to upload.")
		return
	}
	defer file.Close()

	ld, err := s.ws.Upload(r.Context(), u.ID, hdr.Filename, file)
	if err != nil {
		s.log.Info("upload rejected",
			zap.String("user_id", u.ID),
			zap.String("filename", hdr.Filename),
			zap.Error(err))
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.renderHome(w, r, u, http.StatusRequestEntityTooLarge, s.tooLarge())
			return
		}
		s.renderHome(w, r, u, http.StatusBadRequest, workspace.Message(err))
		return
	}
	redirect(w, r, "/datasets/"+url.PathEscape(ld.Dataset.ID)+"?uploaded=1")
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request, u *store.User) {
	ld, err := s.ws.Dataset(r.Context(), u.ID, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	q := r.URL.Query()
	cfg := selectionFrom(q, charts.DefaultConfig(ld.Frame)).Restore(ld.Frame)
	p := newDatasetPage("new", ld.Dataset, ld.Frame, cfg, cleaningFrom(q), s.opt.PreviewRows)
	p.User = u
	p.FormAction = "/datasets/" + url.PathEscape(ld.Dataset.ID)
	if q.Get("uploaded") != "" {
		p.Notice = fmt.Sprintf("File '%s' uploaded successfully!", ld.Dataset.Filename)
	}
	s.render(w, http.StatusOK, "dataset", p)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, u *store.User) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid form.")
		return
	}
	cfg := selectionFrom(r.PostForm, charts.VizConfig{})
	a, err := s.ws.SaveAnalysis(r.Context(), u.ID, r.PathValue("id"), cfg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/analyses/"+url.PathEscape(a.ID)+"?notice=saved")
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request, u *store.User) {
	if err := s.ws.DiscardUpload(r.Context(), u.ID, r.PathValue("id")); err != nil {
		if errors.Is(err, workspace.ErrAlreadySaved) {
			s.renderError(w, r, http.StatusConflict, workspace.Message(err))
			return
		}
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/?notice=discarded")
}

func (s *Server) handleDownloadOriginal(w http.ResponseWriter, r *http.Request, u *store.User) {
	ld, err := s.ws.Dataset(r.Context(), u.ID, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeCSV(w, r, ld.Frame, ld.Dataset.Filename)
}

func (s *Server) handleDownloadCleaned(w http.ResponseWriter, r *http.Request, u *store.User) {
	ld, err := s.ws.Dataset(r.Context(), u.ID, r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	cleaned, _ := cleaning.Clean(ld.Frame, cleaningFrom(r.URL.Query()))
	s.writeCSV(w, r, cleaned, "cleaned_data.csv")
}

func (s *Server) writeCSV(w http.ResponseWriter, r *http.Request, f *analysis.Frame, filename string) {
	var buf bytes.Buffer
	if err := f.WriteCSV(&buf); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	_, _ = buf.WriteTo(w)
}
