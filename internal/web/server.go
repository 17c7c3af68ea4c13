// Package web serves the browser UI: accounts, uploads, charts, cleaning and
// saved-analysis history.
package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vynguyen175/vizion/internal/auth"
	"github.com/vynguyen175/vizion/internal/store"
	"github.com/vynguyen175/vizion/internal/workspace"
)

// SessionCookie names the cookie carrying the session token.
const SessionCookie = "vizion_session"

// Options tunes the HTTP layer.
type Options struct {
	// MaxUploadBytes caps the request body of uploads; 0 means 200 MB.
	MaxUploadBytes int64
	// PreviewRows is the number of rows shown in the data preview.
	PreviewRows int
	// CookieSecure marks the session cookie Secure.
	CookieSecure bool
	ChartWidth   int
	ChartHeight  int
}

// Server holds the handlers' dependencies.
type Server struct {
	auth  *auth.Service
	ws    *workspace.Service
	store *store.Store
	log   *zap.Logger
	opt   Options
	pages *pages
}

// New builds a Server. The templates are parsed here so a broken template
// fails at startup.
func New(a *auth.Service, ws *workspace.Service, st *store.Store, log *zap.Logger, opt Options) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opt.MaxUploadBytes <= 0 {
		opt.MaxUploadBytes = 200 << 20
	}
	if opt.PreviewRows <= 0 {
		opt.PreviewRows = 20
	}
	p, err := parsePages()
	if err != nil {
		return nil, err
	}
	return &Server{auth: a, ws: ws, store: st, log: log, opt: opt, pages: p}, nil
}

// Handler returns the routed handler wrapped in session and logging middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /register", s.handleRegisterPage)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.Handle("GET /{$}", s.requireUser(s.handleHome))
	mux.Handle("POST /uploads", s.requireUser(s.handleUpload))
	mux.Handle("GET /datasets/{id}", s.requireUser(s.handleDataset))
	mux.Handle("POST /datasets/{id}/save", s.requireUser(s.handleSave))
	mux.Handle("POST /datasets/{id}/discard", s.requireUser(s.handleDiscard))
	mux.Handle("GET /datasets/{id}/original.csv", s.requireUser(s.handleDownloadOriginal))
	mux.Handle("GET /datasets/{id}/cleaned.csv", s.requireUser(s.handleDownloadCleaned))
	mux.Handle("GET /datasets/{id}/charts/{kind}", s.requireUser(s.handleChart))

	mux.Handle("GET /analyses/{id}", s.requireUser(s.handleAnalysis))
	mux.Handle("GET /analyses/{id}/edit", s.requireUser(s.handleAnalysisEdit))
	mux.Handle("POST /analyses/{id}", s.requireUser(s.handleAnalysisUpdate))
	mux.Handle("POST /analyses/{id}/delete", s.requireUser(s.handleAnalysisDelete))
	mux.Handle("POST /history/clear", s.requireUser(s.handleClearHistory))

	mux.Handle("GET /api/datasets/{id}/summary", s.requireAPIUser(s.handleSummaryAPI))

	return s.logRequests(s.withSession(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.log.Error("health check failed", zap.Error(err))
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// fail maps domain errors to a status and renders the error page.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.renderError(w, r, http.StatusNotFound, "Not found.")
	case errors.Is(err, workspace.ErrDatasetMissing):
		s.renderError(w, r, http.StatusGone, workspace.Message(err))
	default:
		s.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		s.renderError(w, r, http.StatusInternalServerError, "Something went wrong.")
	}
}

func redirect(w http.ResponseWriter, r *http.Request, to string) {
	http.Redirect(w, r, to, http.StatusSeeOther)
}
