package web

import (
	"errors"
	"fmt"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/exchange"
	"github.com/swapshop/swapshop/internal/model"
	"github.com/swapshop/swapshop/internal/photos"
)

type notice struct {
	ok   bool
	text string
}

// notices are shown after an action redirect, keyed by the "notice" query
// parameter.
var notices = map[string]notice{
	"reserved":        {true, "Item reserved. Contact the donor to arrange pickup."},
	"reserve-failed":  {false, "This item can no longer be reserved."},
	"updated":         {true, "Status updated."},
	"update-failed":   {false, "Only the donor can change this item's status."},
	"donated":         {true, "Thanks! Your item is waiting for admin approval."},
	"approved":        {true, "Item approved."},
	"approve-noop":    {false, "Item was already approved or no longer exists."},
	"rejected":        {true, "Item rejected and donor notified."},
	"deleted":         {true, "Item deleted."},
	"delete-noop":     {false, "Item no longer exists."},
	"user-created":    {true, "User created."},
	"password-change": {true, "Password changed."},
}

// withNotice fills the Error or Success message from the notice parameter.
func withNotice(r *http.Request, pd PageData) PageData {
	if n, ok := notices[r.URL.Query().Get("notice")]; ok {
		if n.ok {
			pd.Success = n.text
		} else {
			pd.Error = n.text
		}
	}
	return pd
}

type donateForm struct {
	PageData
	Form       exchange.DonateRequest
	Categories []string
	Conditions []string
}

// DonatePage handles GET /donate.
func (s *Server) DonatePage(w http.ResponseWriter, r *http.Request) {
	s.renderDonate(w, r, http.StatusOK, exchange.DonateRequest{}, "")
}

func (s *Server) renderDonate(w http.ResponseWriter, r *http.Request, status int, form exchange.DonateRequest, msg string) {
	categories, err := s.Exchange.Categories(r.Context())
	if err != nil {
		s.Logger.Error("listing categories", zap.Error(err))
	}
	pd := s.page(r, "Donate an item", "donate")
	pd.Error = msg
	s.Templates.RenderStatus(w, status, "donate.html", &donateForm{
		PageData:   pd,
		Form:       form,
		Categories: categories,
		Conditions: Conditions,
	})
}

// DonateSubmit handles POST /donate (multipart with optional "photos" files).
func (s *Server) DonateSubmit(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	if s.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.renderDonate(w, r, http.StatusBadRequest, exchange.DonateRequest{}, "The upload could not be read. Photos may be too large.")
		return
	}

	form := exchange.DonateRequest{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Condition:   r.FormValue("condition"),
		Donor:       claims.Email,
	}
	if donor := r.FormValue("donor"); donor != "" && model.NormalizeEmail(donor) != claims.Email {
		s.renderDonate(w, r, http.StatusBadRequest, form, "You can only donate items as yourself.")
		return
	}

	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["photos"]
	}
	uploads, closeAll, err := photos.OpenUploads(files)
	if err != nil {
		s.renderDonate(w, r, http.StatusBadRequest, form, "The photos could not be read.")
		return
	}
	defer closeAll()

	if _, err := s.Exchange.Donate(r.Context(), form, uploads); err != nil {
		var verr *exchange.ValidationError
		switch {
		case errors.As(err, &verr):
			s.renderDonate(w, r, http.StatusBadRequest, form, "Please fill in: "+strings.Join(verr.Fields, ", ")+".")
		case errors.Is(err, photos.ErrUnsupportedFormat):
			s.renderDonate(w, r, http.StatusBadRequest, form, "Photos must be JPEG or PNG images.")
		case errors.Is(err, photos.ErrImageTooLarge):
			s.renderDonate(w, r, http.StatusBadRequest, form, "Photos are too large to process.")
		case errors.Is(err, photos.ErrTooManyPhotos):
			s.renderDonate(w, r, http.StatusBadRequest, form, fmt.Sprintf("At most %d photos per item.", s.Photos.MaxPhotos))
		default:
			s.Logger.Error("donating item", zap.Error(err))
			s.renderDonate(w, r, http.StatusInternalServerError, form, "Your donation could not be saved, please try again.")
		}
		return
	}

	http.Redirect(w, r, "/myitems?notice=donated", http.StatusSeeOther)
}

// MyItemsPage handles GET /myitems. Notifications are marked read once shown.
func (s *Server) MyItemsPage(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())

	mine, err := s.Exchange.Mine(r.Context(), claims.Email)
	if err != nil {
		s.Logger.Error("listing own items", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	notifications, err := s.Directory.Notifications(r.Context(), claims.Email)
	if err != nil {
		s.Logger.Error("listing notifications", zap.Error(err))
	}

	s.Templates.Render(w, "myitems.html", &struct {
		PageData
		Mine          *exchange.MyItems
		Notifications []model.Notification
	}{
		PageData:      withNotice(r, s.page(r, "My items", "myitems")),
		Mine:          mine,
		Notifications: notifications,
	})

	for _, n := range notifications {
		if !n.Read {
			if _, err := s.Directory.MarkNotificationsRead(r.Context(), claims.Email); err != nil {
				s.Logger.Warn("marking notifications read", zap.Error(err))
			}
			break
		}
	}
}

// donorStatuses are the states a donor may set; Reserved only comes from a
// reservation.
var donorStatuses = []string{model.StatusAvailable, model.StatusTaken}

// ItemDetailPage handles GET /item/{id}.
func (s *Server) ItemDetailPage(w http.ResponseWriter, r *http.Request) {
	item, ok := s.visibleItem(w, r)
	if !ok {
		return
	}
	claims := GetWebClaims(r.Context())

	s.Templates.Render(w, "item_detail.html", &struct {
		PageData
		Item       *model.Item
		IsDonor    bool
		CanReserve bool
		Statuses   []string
	}{
		PageData:   withNotice(r, s.page(r, item.Title, "")),
		Item:       item,
		IsDonor:    item.Donor == claims.Email,
		CanReserve: item.Approved && item.Status == model.StatusAvailable && item.Donor != claims.Email,
		Statuses:   donorStatuses,
	})
}

// ItemReserveSubmit handles POST /item/{id}/reserve.
func (s *Server) ItemReserveSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	reserved, err := s.Exchange.Reserve(r.Context(), id, GetWebClaims(r.Context()).Email)
	if err != nil {
		s.Logger.Error("reserving item", zap.Int64("item_id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	notice := "reserved"
	if !reserved {
		notice = "reserve-failed"
	}
	http.Redirect(w, r, fmt.Sprintf("/item/%d?notice=%s", id, notice), http.StatusSeeOther)
}

// ItemStatusSubmit handles POST /item/{id}/status.
func (s *Server) ItemStatusSubmit(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	updated, err := s.Exchange.UpdateStatus(r.Context(), id, r.FormValue("status"), GetWebClaims(r.Context()).Email)
	if err != nil {
		s.Logger.Error("updating item status", zap.Int64("item_id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	notice := "updated"
	if !updated {
		notice = "update-failed"
	}
	http.Redirect(w, r, fmt.Sprintf("/item/%d?notice=%s", id, notice), http.StatusSeeOther)
}

// UploadGet handles GET /uploads/{id}/{file}.
func (s *Server) UploadGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.visibleItem(w, r); !ok {
		return
	}
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	name := r.PathValue("file")
	if !fs.ValidPath(name) || name == "." {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeFileFS(w, r, os.DirFS(s.Photos.ItemDir(id)), name)
}

// visibleItem loads the item named by the path, writing 404 when the caller
// may not see it.
func (s *Server) visibleItem(w http.ResponseWriter, r *http.Request) (*model.Item, bool) {
	id, ok := itemID(w, r)
	if !ok {
		return nil, false
	}
	claims := GetWebClaims(r.Context())
	item, err := s.Exchange.GetVisible(r.Context(), id, claims.Email, isAdmin(r))
	if err != nil {
		s.Logger.Error("getting item", zap.Int64("item_id", id), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	if item == nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return nil, false
	}
	return item, true
}

func itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
