package www

import (
	"net/http"

	"chipsight/store"
)

// Workstation actions: the operator terminal drives the production log
// state machine through these endpoints.

func (h *Handlers) apiSessionLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OperatorName string `json:"operator_name"`
		MachineID    int64  `json:"machine_id"`
		Shift        string `json:"shift"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.OperatorName == "" || req.MachineID == 0 {
		h.jsonError(w, "operator_name and machine_id are required", http.StatusBadRequest)
		return
	}
	s := &store.OperatorSession{OperatorName: req.OperatorName, MachineID: req.MachineID, Shift: req.Shift}
	if err := h.engine.DB().CreateOperatorSession(s); err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, s)
}

func (h *Handlers) apiSessionLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.engine.DB().CloseOperatorSession(id); err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, map[string]any{"ok": true})
}

func (h *Handlers) apiSelectDrawing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		DrawingNumber string `json:"drawing_number"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	d, err := h.engine.Workflow().SelectDrawing(id, req.DrawingNumber)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, d)
}

func (h *Handlers) apiStartSetup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID   int64  `json:"session_id"`
		DrawingID   int64  `json:"drawing_id"`
		BatchNumber string `json:"batch_number"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	l, err := h.engine.Workflow().StartSetup(req.SessionID, req.DrawingID, req.BatchNumber)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, l)
}

func (h *Handlers) apiStartRework(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID    int64  `json:"session_id"`
		ReworkItemID int64  `json:"rework_item_id"`
		BatchNumber  string `json:"batch_number"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	l, err := h.engine.Workflow().StartRework(req.SessionID, req.ReworkItemID, req.BatchNumber)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, l)
}

func (h *Handlers) apiSetupDone(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	l, err := h.engine.Workflow().SetupDone(id)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, l)
}

func (h *Handlers) apiCycleStart(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	l, err := h.engine.Workflow().CycleStart(id)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, l)
}

func (h *Handlers) apiCycleComplete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Quantity int64 `json:"quantity"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	l, err := h.engine.Workflow().CycleComplete(id, req.Quantity)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, l)
}

func (h *Handlers) apiCyclePause(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Category string  `json:"category"`
		Minutes  float64 `json:"minutes"`
		NotedBy  string  `json:"noted_by"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	l, err := h.engine.Workflow().CyclePause(id, req.Category, req.Minutes, req.NotedBy)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, l)
}

func (h *Handlers) apiLogDowntimeAdd(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Category string  `json:"category"`
		Minutes  float64 `json:"minutes"`
		NotedBy  string  `json:"noted_by"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.engine.Workflow().LogDowntime(id, req.Category, req.Minutes, req.NotedBy); err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, map[string]any{"ok": true})
}

func (h *Handlers) apiCancelLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Actor  string `json:"actor"`
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	l, err := h.engine.Workflow().CancelLog(id, req.Actor, req.Reason)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, l)
}

func (h *Handlers) apiCloseLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	l, err := h.engine.Workflow().CloseLog(id)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, l)
}

func (h *Handlers) apiForceCloseLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	l, err := h.engine.Workflow().CloseSpecificLog(id, h.getUsername(r), req.Reason)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, l)
}

func (h *Handlers) apiCloseAllLogs(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	n, err := h.engine.Workflow().CloseAllActiveLogs(h.getUsername(r), req.Reason)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, map[string]any{"closed": n})
}
