package www

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"chipsight/workflow"
)

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// actionError maps engine refusals onto HTTP codes. Rejections carry a
// kind the station UI branches on; anything else is a 500.
func (h *Handlers) actionError(w http.ResponseWriter, err error) {
	kind := workflow.KindOf(err)
	var code int
	switch kind {
	case workflow.KindNotFound:
		code = http.StatusNotFound
	case workflow.KindBadRequest:
		code = http.StatusBadRequest
	case workflow.KindInvalidTransition, workflow.KindMachineBusy, workflow.KindMachineDown,
		workflow.KindAlreadyBroken, workflow.KindNotBroken, workflow.KindDrawingHeld,
		workflow.KindQuantityExceeded, workflow.KindSessionInactive:
		code = http.StatusConflict
	default:
		if errors.Is(err, sql.ErrNoRows) {
			h.jsonError(w, "not found", http.StatusNotFound)
			return
		}
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "kind": string(kind)})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func queryLimit(r *http.Request, def int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			return n
		}
	}
	return def
}
