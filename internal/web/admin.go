package web

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/api"
	"github.com/swapshop/swapshop/internal/model"
)

// AdminPage handles GET /admin.
func (s *Server) AdminPage(w http.ResponseWriter, r *http.Request) {
	if !isAdmin(r) {
		http.Error(w, "Access denied.", http.StatusForbidden)
		return
	}

	pending, approved, err := s.Exchange.Moderation(r.Context())
	if err != nil {
		s.Logger.Error("listing items for moderation", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Templates.Render(w, "admin.html", &struct {
		PageData
		Pending  []model.Item
		Approved []model.Item
	}{
		PageData: withNotice(r, s.page(r, "Moderation", "admin")),
		Pending:  pending,
		Approved: approved,
	})
}

// AdminApproveSubmit handles POST /admin/approve/{id}.
func (s *Server) AdminApproveSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	approved, err := s.Exchange.Approve(r.Context(), id)
	if err != nil {
		s.Logger.Error("approving item", zap.Int64("item_id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.adminRedirect(w, r, approved, "approved", "approve-noop")
}

// AdminRejectPage handles GET /admin/reject/{id}.
func (s *Server) AdminRejectPage(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	item, err := s.Exchange.Get(r.Context(), id)
	if err != nil {
		s.Logger.Error("getting item", zap.Int64("item_id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if item == nil {
		http.Redirect(w, r, "/admin?notice=delete-noop", http.StatusSeeOther)
		return
	}

	s.Templates.Render(w, "reject.html", &struct {
		PageData
		Item *model.Item
	}{
		PageData: s.page(r, "Reject item", "admin"),
		Item:     item,
	})
}

// AdminRejectSubmit handles POST /admin/reject/{id}.
func (s *Server) AdminRejectSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	rejected, err := s.Exchange.Reject(r.Context(), id, r.FormValue("reason"))
	if err != nil {
		s.Logger.Error("rejecting item", zap.Int64("item_id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.adminRedirect(w, r, rejected, "rejected", "delete-noop")
}

// AdminDeleteSubmit handles POST /admin/delete/{id}.
func (s *Server) AdminDeleteSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	deleted, err := s.Exchange.Delete(r.Context(), id)
	if err != nil {
		s.Logger.Error("deleting item", zap.Int64("item_id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.adminRedirect(w, r, deleted, "deleted", "delete-noop")
}

// AdminExport handles GET /admin/export.
func (s *Server) AdminExport(w http.ResponseWriter, r *http.Request) {
	api.WriteWorkbook(w, r, s.Exchange, s.Logger)
}

func (s *Server) adminRedirect(w http.ResponseWriter, r *http.Request, ok bool, done, noop string) {
	notice := done
	if !ok {
		notice = noop
	}
	http.Redirect(w, r, fmt.Sprintf("/admin?notice=%s", notice), http.StatusSeeOther)
}
