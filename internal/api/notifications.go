package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/directory"
)

// NotificationsHandler serves the caller's notifications.
type NotificationsHandler struct {
	Directory *directory.Directory
	Logger    *zap.Logger
}

// List handles GET /api/notifications.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	ns, err := h.Directory.Notifications(r.Context(), GetClaims(r.Context()).Email)
	if err != nil {
		h.Logger.Error("listing notifications", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	jsonResponse(w, http.StatusOK, ns)
}

// MarkRead handles POST /api/notifications/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.Directory.MarkNotificationsRead(r.Context(), GetClaims(r.Context()).Email)
	if err != nil {
		h.Logger.Error("marking notifications read", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to update notifications")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"updated": n})
}
