package www

import (
	"net/http"

	"chipsight/store"
)

func (h *Handlers) apiListRework(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = store.ReworkPendingApproval
	}
	items, err := h.engine.Rework().ByStatus(status)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, items)
}

func (h *Handlers) apiApproveRework(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	item, err := h.engine.Rework().Approve(id, h.getUsername(r), req.Notes)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, item)
}

func (h *Handlers) apiDeclineRework(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Notes string `json:"notes"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	item, err := h.engine.Rework().Decline(id, h.getUsername(r), req.Notes)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, item)
}
