package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/auth"
	"github.com/swapshop/swapshop/internal/directory"
	"github.com/swapshop/swapshop/internal/metrics"
	"github.com/swapshop/swapshop/internal/model"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	Directory *directory.Directory
	Sessions  *auth.Sessions
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Directory.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, directory.ErrInvalidCredentials) {
		h.Metrics.Login(false)
		jsonError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		h.Logger.Error("authenticating user", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := h.Sessions.Issue(user)
	if err != nil {
		h.Logger.Error("issuing token", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	h.Metrics.Login(true)
	h.Logger.Info("user logged in", zap.String("email", user.Email), zap.String("role", user.Role))
	jsonResponse(w, http.StatusOK, loginResponse{Token: token})
}

// Logout handles POST /api/auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if err := h.Sessions.Revoke(r.Context(), claims); err != nil {
		h.Logger.Error("revoking token", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}

	err := h.Directory.ChangePassword(r.Context(), claims.UserID, req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, directory.ErrInvalidCredentials):
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	case errors.Is(err, model.ErrWeakPassword):
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.Logger.Error("changing password", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}
