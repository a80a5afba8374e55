package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/auth"
	"github.com/swapshop/swapshop/internal/directory"
)

type loginData struct {
	PageData
	Email string
}

// LoginPage handles GET /login.
func (s *Server) LoginPage(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil && cookie.Value != "" {
		if _, err := s.Sessions.Resolve(r.Context(), cookie.Value); err == nil {
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
			return
		}
	}
	s.Templates.Render(w, "login.html", &loginData{PageData: PageData{Title: "Sign in"}})
}

// LoginSubmit handles POST /login.
func (s *Server) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	email := r.FormValue("email")
	password := r.FormValue("password")

	user, err := s.Directory.Authenticate(r.Context(), email, password)
	if err != nil {
		status, msg := http.StatusUnauthorized, "Invalid "+s.Directory.Suffix()+" email or password"
		if !errors.Is(err, directory.ErrInvalidCredentials) {
			s.Logger.Error("authenticating user", zap.Error(err))
			status, msg = http.StatusInternalServerError, "Sign in failed, please try again."
		} else {
			s.Metrics.Login(false)
		}
		if wantsJSON(r) {
			writeJSON(w, status, map[string]string{"error": msg})
			return
		}
		s.Templates.RenderStatus(w, status, "login.html", &loginData{
			PageData: PageData{Title: "Sign in", Error: msg},
			Email:    email,
		})
		return
	}

	token, err := s.Sessions.Issue(user)
	if err != nil {
		s.Logger.Error("issuing token", zap.Error(err))
		s.Templates.RenderStatus(w, http.StatusInternalServerError, "login.html", &loginData{
			PageData: PageData{Title: "Sign in", Error: "Sign in failed, please try again."},
		})
		return
	}

	setAuthCookie(w, token, s.Sessions.MaxAge())
	s.Metrics.Login(true)
	s.Logger.Info("user logged in", zap.String("email", user.Email), zap.String("role", user.Role))

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "redirect": "/dashboard"})
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Logout handles GET and POST /logout.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil && cookie.Value != "" {
		if claims, err := s.Sessions.Resolve(r.Context(), cookie.Value); err == nil {
			if err := s.Sessions.Revoke(r.Context(), claims); err != nil {
				s.Logger.Error("revoking token", zap.Error(err))
			}
		}
	}
	clearAuthCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
