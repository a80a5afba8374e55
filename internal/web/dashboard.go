package web

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/model"
)

// Root handles GET / by sending the browser to the dashboard.
func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// Dashboard handles GET /dashboard.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	items, err := s.Exchange.Browse(r.Context(), category)
	if err != nil {
		s.Logger.Error("listing items for dashboard", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	categories, err := s.Exchange.Categories(r.Context())
	if err != nil {
		s.Logger.Error("listing categories", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Templates.Render(w, "dashboard.html", &struct {
		PageData
		Items      []model.Item
		Categories []string
		Category   string
	}{
		PageData:   s.page(r, "Browse items", "dashboard"),
		Items:      items,
		Categories: categories,
		Category:   category,
	})
}
