package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/directory"
	"github.com/swapshop/swapshop/internal/model"
)

// UsersHandler handles user management endpoints (admin only).
type UsersHandler struct {
	Directory *directory.Directory
	Logger    *zap.Logger
}

type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Directory.List(r.Context())
	if err != nil {
		h.Logger.Error("listing users", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	jsonResponse(w, http.StatusOK, users)
}

// Create handles POST /api/users.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := h.Directory.CreateUser(r.Context(), req.Email, req.Name, req.Password, req.Role)
	switch {
	case errors.Is(err, directory.ErrEmailTaken):
		jsonError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, directory.ErrInvalidEmail), errors.Is(err, directory.ErrInvalidRole), errors.Is(err, model.ErrWeakPassword):
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.Logger.Error("creating user", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.Logger.Info("user created by admin",
		zap.String("admin", GetClaims(r.Context()).Email),
		zap.String("new_user", user.Email),
		zap.String("role", user.Role),
	)
	jsonResponse(w, http.StatusCreated, user)
}
