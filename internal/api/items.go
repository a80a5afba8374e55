package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/exchange"
	"github.com/swapshop/swapshop/internal/model"
	"github.com/swapshop/swapshop/internal/photos"
)

// ItemsHandler handles item browsing and the donor/reserver actions.
type ItemsHandler struct {
	Exchange       *exchange.Service
	Logger         *zap.Logger
	MaxUploadBytes int64
}

type actionRequest struct {
	ID     flexID `json:"id"`
	Status string `json:"status"`
	User   string `json:"user"`
}

// List handles GET /api/items.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Exchange.Browse(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		h.Logger.Error("listing items", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	jsonResponse(w, http.StatusOK, items)
}

// Get handles GET /api/items/{id}.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	claims := GetClaims(r.Context())
	item, err := h.Exchange.GetVisible(r.Context(), id, claims.Email, model.RoleAtLeast(claims.Role, model.RoleAdmin))
	if err != nil {
		h.Logger.Error("getting item", zap.Int64("item_id", id), zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to get item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// Mine handles GET /api/items/mine.
func (h *ItemsHandler) Mine(w http.ResponseWriter, r *http.Request) {
	mine, err := h.Exchange.Mine(r.Context(), GetClaims(r.Context()).Email)
	if err != nil {
		h.Logger.Error("listing own items", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	jsonResponse(w, http.StatusOK, mine)
}

// Donate handles POST /api/donate (multipart with optional "photos" files).
func (h *ItemsHandler) Donate(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())

	var req exchange.DonateRequest
	var files []*multipart.FileHeader
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	if isJSON(r) {
		if err := decodeJSON(r, &req); err != nil {
			result(w, http.StatusBadRequest, false, "invalid request body")
			return
		}
	} else {
		if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			result(w, http.StatusBadRequest, false, "invalid form: "+err.Error())
			return
		}
		req = exchange.DonateRequest{
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
			Category:    r.FormValue("category"),
			Condition:   r.FormValue("condition"),
			Donor:       r.FormValue("donor"),
		}
		if r.MultipartForm != nil {
			files = r.MultipartForm.File["photos"]
		}
	}

	// A missing donor falls through to validation; a foreign one is refused.
	if donor := strings.TrimSpace(req.Donor); donor == "" {
		req.Donor = ""
	} else if model.NormalizeEmail(donor) != claims.Email {
		result(w, http.StatusBadRequest, false, "donor must be the signed-in user")
		return
	} else {
		req.Donor = claims.Email
	}

	uploads, closeAll, err := photos.OpenUploads(files)
	if err != nil {
		result(w, http.StatusBadRequest, false, "reading photos failed")
		return
	}
	defer closeAll()

	item, err := h.Exchange.Donate(r.Context(), req, uploads)
	if err != nil {
		if status, msg := donateFailure(err); status != http.StatusInternalServerError {
			result(w, status, false, msg)
			return
		}
		h.Logger.Error("donating item", zap.Error(err))
		result(w, http.StatusInternalServerError, false, "internal error")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{"success": true, "item": item})
}

// Reserve handles POST /api/reserve.
func (h *ItemsHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	req, ok := readAction(w, r)
	if !ok {
		return
	}
	claims := GetClaims(r.Context())
	if !sameUser(req.User, claims.Email) {
		result(w, http.StatusOK, false, "")
		return
	}

	reserved, err := h.Exchange.Reserve(r.Context(), int64(req.ID), claims.Email)
	if err != nil {
		h.Logger.Error("reserving item", zap.Int64("item_id", int64(req.ID)), zap.Error(err))
		result(w, http.StatusInternalServerError, false, "internal error")
		return
	}
	result(w, http.StatusOK, reserved, "")
}

// UpdateStatus handles POST /api/update-status.
func (h *ItemsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	req, ok := readAction(w, r)
	if !ok {
		return
	}
	claims := GetClaims(r.Context())
	if !sameUser(req.User, claims.Email) {
		result(w, http.StatusOK, false, "")
		return
	}

	updated, err := h.Exchange.UpdateStatus(r.Context(), int64(req.ID), req.Status, claims.Email)
	if err != nil {
		h.Logger.Error("updating item status", zap.Int64("item_id", int64(req.ID)), zap.Error(err))
		result(w, http.StatusInternalServerError, false, "internal error")
		return
	}
	result(w, http.StatusOK, updated, "")
}

// readAction decodes {id, status, user} from JSON or form data.
func readAction(w http.ResponseWriter, r *http.Request) (actionRequest, bool) {
	var req actionRequest
	if isJSON(r) {
		if err := decodeJSON(r, &req); err != nil {
			result(w, http.StatusBadRequest, false, "invalid request body")
			return req, false
		}
	} else {
		id, err := strconv.ParseInt(r.FormValue("id"), 10, 64)
		if err != nil {
			result(w, http.StatusBadRequest, false, "invalid item id")
			return req, false
		}
		req = actionRequest{ID: flexID(id), Status: r.FormValue("status"), User: r.FormValue("user")}
	}
	if req.ID <= 0 {
		result(w, http.StatusBadRequest, false, "invalid item id")
		return req, false
	}
	return req, true
}

// sameUser reports whether a client-supplied user field is absent or names
// the caller.
func sameUser(given, caller string) bool {
	given = strings.TrimSpace(given)
	return given == "" || model.NormalizeEmail(given) == caller
}

func donateFailure(err error) (int, string) {
	var verr *exchange.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, photos.ErrUnsupportedFormat), errors.Is(err, photos.ErrTooManyPhotos), errors.Is(err, photos.ErrImageTooLarge):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, ""
}
