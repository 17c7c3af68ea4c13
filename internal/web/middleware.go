package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vynguyen175/vizion/internal/auth"
	"github.com/vynguyen175/vizion/internal/store"
)

type ctxKey int

const (
	userKey ctxKey = iota
	infoKey
)

// requestInfo lets inner handlers report details to the logging middleware.
type requestInfo struct {
	userID string
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		info := &requestInfo{}
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), infoKey, info)))
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int("bytes", rec.bytes),
			zap.Duration("duration", time.Since(start)),
		}
		if info.userID != "" {
			fields = append(fields, zap.String("user_id", info.userID))
		}
		if rec.status >= http.StatusInternalServerError {
			s.log.Warn("request", fields...)
			return
		}
		s.log.Debug("request", fields...)
	})
}

// withSession resolves the session cookie to a user. Invalid or expired
// cookies are cleared.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(SessionCookie)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		u, err := s.auth.Authenticate(r.Context(), c.Value)
		if err != nil {
			if !errors.Is(err, auth.ErrNoSession) {
				s.log.Error("resolve session", zap.Error(err))
			}
			s.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		}
		if info, ok := r.Context().Value(infoKey).(*requestInfo); ok {
			info.userID = u.ID
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

func currentUser(r *http.Request) *store.User {
	u, _ := r.Context().Value(userKey).(*store.User)
	return u
}

type userHandler func(w http.ResponseWriter, r *http.Request, u *store.User)

// requireUser sends anonymous visitors to the login page.
func (s *Server) requireUser(h userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := currentUser(r)
		if u == nil {
			redirect(w, r, "/login")
			return
		}
		h(w, r, u)
	})
}

// requireAPIUser answers anonymous API calls with 401.
func (s *Server) requireAPIUser(h userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := currentUser(r)
		if u == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": auth.Message(auth.ErrNoSession)})
			return
		}
		h(w, r, u)
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.auth.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.opt.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opt.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
