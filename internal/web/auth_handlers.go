package web

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/vynguyen175/vizion/internal/auth"
)

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if currentUser(r) != nil {
		redirect(w, r, "/")
		return
	}
	s.render(w, http.StatusOK, "login", authPage{base: base{Title: "Login", Notice: noticeFor(r.URL.Query())}})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid form.")
		return
	}
	email := r.PostForm.Get("email")
	u, token, err := s.auth.Login(r.Context(), email, r.PostForm.Get("password"))
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			s.log.Error("login", zap.Error(err))
		}
		s.render(w, http.StatusUnauthorized, "login", authPage{
			base:  base{Title: "Login", Error: auth.Message(err)},
			Email: email,
		})
		return
	}
	s.setSessionCookie(w, token)
	s.log.Debug("session started", zap.String("user_id", u.ID))
	redirect(w, r, "/")
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "register", authPage{base: base{Title: "Register"}})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Invalid form.")
		return
	}
	name, email := r.PostForm.Get("name"), r.PostForm.Get("email")
	if _, err := s.auth.Register(r.Context(), name, email, r.PostForm.Get("password")); err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			status = http.StatusConflict
		case !errors.Is(err, auth.ErrMissingFields):
			s.log.Error("register", zap.Error(err))
			status = http.StatusInternalServerError
		}
		s.render(w, status, "register", authPage{
			base:  base{Title: "Register", Error: auth.Message(err)},
			Name:  name,
			Email: email,
		})
		return
	}
	redirect(w, r, "/login?notice=registered")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if err := s.auth.Logout(r.Context(), c.Value); err != nil {
			s.log.Error("logout", zap.Error(err))
		}
	}
	s.clearSessionCookie(w)
	redirect(w, r, "/login")
}
