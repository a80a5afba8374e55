package web

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/auth"
	"github.com/swapshop/swapshop/internal/directory"
	"github.com/swapshop/swapshop/internal/exchange"
	"github.com/swapshop/swapshop/internal/metrics"
	"github.com/swapshop/swapshop/internal/model"
	"github.com/swapshop/swapshop/internal/photos"
	webembed "github.com/swapshop/swapshop/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
	logger    *zap.Logger
}

// Conditions offered on the donate form.
var Conditions = []string{"New", "Like New", "Good", "Fair", "Poor"}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"roleAtLeast": model.RoleAtLeast,
		"roleName": func(role string) string {
			switch role {
			case model.RoleAdmin:
				return "Administrator"
			case model.RoleUser:
				return "Student"
			default:
				return role
			}
		},
		"statusClass": func(status string) string {
			switch status {
			case model.StatusAvailable:
				return "available"
			case model.StatusReserved:
				return "reserved"
			case model.StatusTaken:
				return "taken"
			default:
				return "pending"
			}
		},
		"photoURL": func(id int64, name string) string {
			return fmt.Sprintf("/uploads/%d/%s", id, url.PathEscape(name))
		},
		"date": func(t time.Time) string {
			return t.Local().Format("2006-01-02 15:04")
		},
		// dict builds a map from alternating keys and values for sub-templates.
		"dict": func(pairs ...any) (map[string]any, error) {
			if len(pairs)%2 != 0 {
				return nil, fmt.Errorf("dict: odd number of arguments")
			}
			m := make(map[string]any, len(pairs)/2)
			for i := 0; i < len(pairs); i += 2 {
				key, ok := pairs[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
				}
				m[key] = pairs[i+1]
			}
			return m, nil
		},
	}
}

// Pages lists every page template rendered inside the layout.
var Pages = []string{
	"login.html",
	"dashboard.html",
	"donate.html",
	"myitems.html",
	"item_detail.html",
	"admin.html",
	"reject.html",
	"users.html",
	"settings.html",
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates(logger *zap.Logger) (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	ts := &Templates{templates: make(map[string]*template.Template), logger: logger}

	for _, page := range Pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a template with the given data and a 200 status.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	ts.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a template with the given status code.
func (ts *Templates) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		ts.logger.Error("rendering template", zap.String("template", name), zap.Error(err))
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title   string
	Page    string
	User    *auth.Claims
	Error   string
	Success string
}

// Server holds all dependencies for page handlers.
type Server struct {
	Exchange       *exchange.Service
	Directory      *directory.Directory
	Sessions       *auth.Sessions
	Photos         *photos.Store
	Templates      *Templates
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	MaxUploadBytes int64
}

// page builds the base data for an authenticated page.
func (s *Server) page(r *http.Request, title, page string) PageData {
	return PageData{Title: title, Page: page, User: GetWebClaims(r.Context())}
}
