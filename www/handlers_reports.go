package www

import (
	"database/sql"
	"errors"
	"net/http"
)

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	messaging := false
	if h.engine.MsgClient() != nil {
		messaging = h.engine.MsgClient().IsConnected()
	}
	h.jsonOK(w, map[string]any{"status": "ok", "messaging": messaging})
}

func (h *Handlers) apiActiveSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.engine.DB().ListActiveSessions()
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, sessions)
}

func (h *Handlers) apiOpenLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.engine.DB().ListOpenLogs()
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, logs)
}

func (h *Handlers) apiGetLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	l, err := h.engine.DB().GetProductionLog(id)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, l)
}

func (h *Handlers) apiLogHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	entries, err := h.engine.DB().ListLogHistory(id)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, entries)
}

func (h *Handlers) apiLogCycles(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	cycles, err := h.engine.DB().ListLogCycles(id)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, cycles)
}

func (h *Handlers) apiLogDowntime(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	entries, err := h.engine.DB().ListDowntimeByLog(id)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, entries)
}

func (h *Handlers) apiLogChecks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	checks, err := h.engine.DB().ListQualityChecks(id)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, checks)
}

func (h *Handlers) apiLogOEE(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	result, err := h.engine.ComputeOEE(id)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, result)
}

func (h *Handlers) apiDrawingHold(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	hold, err := h.engine.DB().GetDrawingHold(id)
	if errors.Is(err, sql.ErrNoRows) {
		h.jsonOK(w, map[string]any{"held": false})
		return
	}
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, map[string]any{"held": true, "blocking_log_id": hold.BlockingLogID, "set_at": hold.SetAt})
}

func (h *Handlers) apiDrawingLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	logs, err := h.engine.DB().ListLogsByDrawing(id, queryLimit(r, 100))
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, logs)
}

func (h *Handlers) apiDrawingRework(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	items, err := h.engine.DB().ListApprovedReworkForDrawing(id)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, items)
}

func (h *Handlers) apiDrawingScrap(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	records, err := h.engine.DB().ListScrapByDrawing(id)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, records)
}

func (h *Handlers) apiListHolds(w http.ResponseWriter, r *http.Request) {
	holds, err := h.engine.DB().ListDrawingHolds()
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, holds)
}

func (h *Handlers) apiAuditLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.engine.DB().ListAuditLog(queryLimit(r, 200))
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, entries)
}
