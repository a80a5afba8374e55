package web

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/directory"
	"github.com/swapshop/swapshop/internal/model"
)

// UsersPage handles GET /admin/users (admin only).
func (s *Server) UsersPage(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		http.Error(w, "Access denied.", http.StatusForbidden)
		return
	}
	s.renderUsers(w, r, http.StatusOK, withNotice(r, s.page(r, "Users", "users")))
}

func (s *Server) renderUsers(w http.ResponseWriter, r *http.Request, status int, pd PageData) {
	users, err := s.Directory.List(r.Context())
	if err != nil {
		s.Logger.Error("listing users", zap.Error(err))
	}
	s.Templates.RenderStatus(w, status, "users.html", &struct {
		PageData
		Users  []model.User
		Suffix string
	}{
		PageData: pd,
		Users:    users,
		Suffix:   s.Directory.Suffix(),
	})
}

// UserCreateSubmit handles POST /admin/users (admin only).
func (s *Server) UserCreateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	user, err := s.Directory.CreateUser(r.Context(),
		r.FormValue("email"),
		r.FormValue("name"),
		r.FormValue("password"),
		r.FormValue("role"),
	)
	if err != nil {
		pd := s.page(r, "Users", "users")
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, directory.ErrEmailTaken):
			pd.Error = "A user with that email already exists."
			status = http.StatusConflict
		case errors.Is(err, directory.ErrInvalidEmail):
			pd.Error = "Email must end in " + s.Directory.Suffix() + "."
		case errors.Is(err, directory.ErrInvalidRole):
			pd.Error = "Unknown role."
		case errors.Is(err, model.ErrWeakPassword):
			pd.Error = err.Error()
		default:
			s.Logger.Error("creating user", zap.Error(err))
			pd.Error = "The user could not be created."
			status = http.StatusInternalServerError
		}
		s.renderUsers(w, r, status, pd)
		return
	}

	s.Logger.Info("user created by admin",
		zap.String("admin", claims.Email),
		zap.String("new_user", user.Email),
		zap.String("role", user.Role),
	)
	http.Redirect(w, r, "/admin/users?notice=user-created", http.StatusSeeOther)
}

// SettingsPage handles GET /settings.
func (s *Server) SettingsPage(w http.ResponseWriter, r *http.Request) {
	s.Templates.Render(w, "settings.html", withNotice(r, s.page(r, "Settings", "settings")))
}

// SettingsSubmit handles POST /settings (change own password).
func (s *Server) SettingsSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	pd := s.page(r, "Settings", "settings")

	currentPassword := r.FormValue("current_password")
	newPassword := r.FormValue("new_password")

	if currentPassword == "" || newPassword == "" {
		pd.Error = "Enter your current and new password."
		s.Templates.RenderStatus(w, http.StatusBadRequest, "settings.html", pd)
		return
	}
	if newPassword != r.FormValue("confirm_password") {
		pd.Error = "The new passwords do not match."
		s.Templates.RenderStatus(w, http.StatusBadRequest, "settings.html", pd)
		return
	}

	err := s.Directory.ChangePassword(r.Context(), claims.UserID, currentPassword, newPassword)
	switch {
	case errors.Is(err, directory.ErrInvalidCredentials):
		pd.Error = "Current password is incorrect."
		s.Templates.RenderStatus(w, http.StatusBadRequest, "settings.html", pd)
		return
	case errors.Is(err, model.ErrWeakPassword):
		pd.Error = err.Error()
		s.Templates.RenderStatus(w, http.StatusBadRequest, "settings.html", pd)
		return
	case err != nil:
		s.Logger.Error("changing password", zap.Error(err))
		pd.Error = "The password could not be changed."
		s.Templates.RenderStatus(w, http.StatusInternalServerError, "settings.html", pd)
		return
	}

	http.Redirect(w, r, "/settings?notice=password-change", http.StatusSeeOther)
}
