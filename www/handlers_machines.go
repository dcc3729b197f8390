package www

import (
	"net/http"

	"chipsight/store"
)

func (h *Handlers) apiListMachines(w http.ResponseWriter, r *http.Request) {
	machines, err := h.engine.DB().ListMachines()
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, machines)
}

func (h *Handlers) apiMachineLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	logs, err := h.engine.DB().ListLogsByMachine(id, queryLimit(r, 100))
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, logs)
}

func (h *Handlers) apiCreateMachine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		h.jsonError(w, "name is required", http.StatusBadRequest)
		return
	}
	m := &store.Machine{Name: req.Name, Active: true}
	if err := h.engine.DB().CreateMachine(m); err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, m)
}

func (h *Handlers) apiSetMachineActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.engine.DB().SetMachineActive(id, req.Active); err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, map[string]any{"ok": true})
}

func (h *Handlers) apiReportBreakdown(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		SessionID *int64 `json:"session_id"`
		Notes     string `json:"notes"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.engine.Workflow().ReportBreakdown(id, req.SessionID, req.Notes); err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, map[string]any{"ok": true})
}

func (h *Handlers) apiMarkHealthy(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.engine.Workflow().MarkHealthy(id); err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, map[string]any{"ok": true})
}
