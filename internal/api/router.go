package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/auth"
	"github.com/swapshop/swapshop/internal/directory"
	"github.com/swapshop/swapshop/internal/exchange"
	"github.com/swapshop/swapshop/internal/metrics"
	"github.com/swapshop/swapshop/internal/model"
)

// Deps are the collaborators shared by the API handlers.
type Deps struct {
	Exchange       *exchange.Service
	Directory      *directory.Directory
	Sessions       *auth.Sessions
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	MaxUploadBytes int64
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	authHandler := &AuthHandler{Directory: d.Directory, Sessions: d.Sessions, Metrics: d.Metrics, Logger: d.Logger}
	itemsHandler := &ItemsHandler{Exchange: d.Exchange, Logger: d.Logger, MaxUploadBytes: d.MaxUploadBytes}
	adminHandler := &AdminHandler{Exchange: d.Exchange, Logger: d.Logger}
	usersHandler := &UsersHandler{Directory: d.Directory, Logger: d.Logger}
	notificationsHandler := &NotificationsHandler{Directory: d.Directory, Logger: d.Logger}

	authMW := AuthMiddleware(d.Sessions)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Public: login.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)

	// Authenticated routes.
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Items (all roles).
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("GET /api/items/mine", authMW(http.HandlerFunc(itemsHandler.Mine)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("POST /api/donate", authMW(http.HandlerFunc(itemsHandler.Donate)))
	mux.Handle("POST /api/reserve", authMW(http.HandlerFunc(itemsHandler.Reserve)))
	mux.Handle("POST /api/update-status", authMW(http.HandlerFunc(itemsHandler.UpdateStatus)))

	mux.Handle("GET /api/notifications", authMW(http.HandlerFunc(notificationsHandler.List)))
	mux.Handle("POST /api/notifications/read", authMW(http.HandlerFunc(notificationsHandler.MarkRead)))

	// Moderation (admin only).
	mux.Handle("GET /api/admin/items", authMW(requireAdmin(http.HandlerFunc(adminHandler.Items))))
	mux.Handle("GET /api/admin/items/export", authMW(requireAdmin(http.HandlerFunc(adminHandler.Export))))
	mux.Handle("POST /api/admin/items/{id}/approve", authMW(requireAdmin(http.HandlerFunc(adminHandler.Approve))))
	mux.Handle("POST /api/admin/items/{id}/reject", authMW(requireAdmin(http.HandlerFunc(adminHandler.Reject))))
	mux.Handle("DELETE /api/admin/items/{id}", authMW(requireAdmin(http.HandlerFunc(adminHandler.Delete))))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))

	return mux
}
