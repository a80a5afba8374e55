package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/swapshop/swapshop/internal/exchange"
	"github.com/swapshop/swapshop/internal/model"
)

// XLSXContentType is the media type of exported workbooks.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminHandler handles moderation endpoints (admin only).
type AdminHandler struct {
	Exchange *exchange.Service
	Logger   *zap.Logger
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Items handles GET /api/admin/items.
func (h *AdminHandler) Items(w http.ResponseWriter, r *http.Request) {
	pending, approved, err := h.Exchange.Moderation(r.Context())
	if err != nil {
		h.Logger.Error("listing items for moderation", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "failed to list items")
		return
	}
	jsonResponse(w, http.StatusOK, map[string][]model.Item{"pending": pending, "approved": approved})
}

// Approve handles POST /api/admin/items/{id}/approve.
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		result(w, http.StatusBadRequest, false, "invalid item id")
		return
	}
	changed, err := h.Exchange.Approve(r.Context(), id)
	if err != nil {
		h.Logger.Error("approving item", zap.Int64("item_id", id), zap.Error(err))
		result(w, http.StatusInternalServerError, false, "internal error")
		return
	}
	result(w, http.StatusOK, changed, "")
}

// Reject handles POST /api/admin/items/{id}/reject.
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		result(w, http.StatusBadRequest, false, "invalid item id")
		return
	}

	var req rejectRequest
	if isJSON(r) {
		if err := decodeJSON(r, &req); err != nil {
			result(w, http.StatusBadRequest, false, "invalid request body")
			return
		}
	} else {
		req.Reason = r.FormValue("reason")
	}

	removed, err := h.Exchange.Reject(r.Context(), id, req.Reason)
	if err != nil {
		h.Logger.Error("rejecting item", zap.Int64("item_id", id), zap.Error(err))
		result(w, http.StatusInternalServerError, false, "internal error")
		return
	}
	result(w, http.StatusOK, removed, "")
}

// Delete handles DELETE /api/admin/items/{id}.
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		result(w, http.StatusBadRequest, false, "invalid item id")
		return
	}
	removed, err := h.Exchange.Delete(r.Context(), id)
	if err != nil {
		h.Logger.Error("deleting item", zap.Int64("item_id", id), zap.Error(err))
		result(w, http.StatusInternalServerError, false, "internal error")
		return
	}
	result(w, http.StatusOK, removed, "")
}

// Export handles GET /api/admin/items/export.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	WriteWorkbook(w, r, h.Exchange, h.Logger)
}

// WriteWorkbook sends every item as an .xlsx attachment.
func WriteWorkbook(w http.ResponseWriter, r *http.Request, ex *exchange.Service, logger *zap.Logger) {
	var buf bytes.Buffer
	if err := ex.ExportSheet(r.Context(), &buf); err != nil {
		logger.Error("exporting items", zap.Error(err))
		http.Error(w, "failed to export items", http.StatusInternalServerError)
		return
	}

	name := fmt.Sprintf("items-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		logger.Warn("writing export", zap.Error(err))
	}
}
