package web

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/auth"
	"github.com/swapshop/swapshop/internal/directory"
	"github.com/swapshop/swapshop/internal/exchange"
	"github.com/swapshop/swapshop/internal/metrics"
	"github.com/swapshop/swapshop/internal/photos"
	webembed "github.com/swapshop/swapshop/web"
)

// Deps are the collaborators shared by the page handlers.
type Deps struct {
	Exchange       *exchange.Service
	Directory      *directory.Directory
	Sessions       *auth.Sessions
	Photos         *photos.Store
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	MaxUploadBytes int64
}

// NewRouter creates the web page router with all page routes registered.
func NewRouter(d Deps) (http.Handler, error) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	templates, err := LoadTemplates(d.Logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		Exchange:       d.Exchange,
		Directory:      d.Directory,
		Sessions:       d.Sessions,
		Photos:         d.Photos,
		Templates:      templates,
		Metrics:        d.Metrics,
		Logger:         d.Logger,
		MaxUploadBytes: d.MaxUploadBytes,
	}

	mux := http.NewServeMux()
	cookieAuth := CookieAuthMiddleware(d.Sessions, d.Logger)
	page := func(h http.HandlerFunc) http.Handler { return cookieAuth(h) }
	adminAction := func(h http.HandlerFunc) http.Handler { return cookieAuth(requireAdminOr("/dashboard", h)) }

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	// Public routes.
	mux.HandleFunc("GET /{$}", s.Root)
	mux.HandleFunc("GET /login", s.LoginPage)
	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.HandleFunc("GET /logout", s.Logout)
	mux.HandleFunc("POST /logout", s.Logout)

	// Authenticated routes.
	mux.Handle("GET /dashboard", page(s.Dashboard))
	mux.Handle("GET /donate", page(s.DonatePage))
	mux.Handle("POST /donate", page(s.DonateSubmit))
	mux.Handle("GET /myitems", page(s.MyItemsPage))
	mux.Handle("GET /item/{id}", page(s.ItemDetailPage))
	mux.Handle("POST /item/{id}/reserve", page(s.ItemReserveSubmit))
	mux.Handle("POST /item/{id}/status", page(s.ItemStatusSubmit))
	mux.Handle("GET /uploads/{id}/{file}", page(s.UploadGet))

	mux.Handle("GET /settings", page(s.SettingsPage))
	mux.Handle("POST /settings", page(s.SettingsSubmit))

	// Moderation. The pages answer 403, the actions send non-admins away.
	mux.Handle("GET /admin", page(s.AdminPage))
	mux.Handle("GET /admin/users", page(s.UsersPage))
	mux.Handle("POST /admin/users", adminAction(s.UserCreateSubmit))
	mux.Handle("POST /admin/approve/{id}", adminAction(s.AdminApproveSubmit))
	mux.Handle("GET /admin/reject/{id}", adminAction(s.AdminRejectPage))
	mux.Handle("POST /admin/reject/{id}", adminAction(s.AdminRejectSubmit))
	mux.Handle("POST /admin/delete/{id}", adminAction(s.AdminDeleteSubmit))
	mux.Handle("GET /admin/export", adminAction(s.AdminExport))

	return mux, nil
}
