package www

import (
	"net/http"

	"chipsight/quality"
)

func (h *Handlers) apiRecordFPI(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Inspector       string `json:"inspector"`
		Pass            bool   `json:"pass"`
		RejectionReason string `json:"rejection_reason"`
		Disposition     string `json:"disposition"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	qc, err := h.engine.Quality().RecordFPI(id, quality.FPIResult{
		Inspector:       req.Inspector,
		Pass:            req.Pass,
		RejectionReason: req.RejectionReason,
		Disposition:     req.Disposition,
	})
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, qc)
}

func (h *Handlers) apiRecordLPI(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Inspector         string `json:"inspector"`
		Pass              bool   `json:"pass"`
		QuantityInspected int64  `json:"quantity_inspected"`
		QuantityToRework  int64  `json:"quantity_to_rework"`
		QuantityToScrap   int64  `json:"quantity_to_scrap"`
		RejectionReason   string `json:"rejection_reason"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	qc, err := h.engine.Quality().RecordLPI(id, quality.LPIResult{
		Inspector:         req.Inspector,
		Pass:              req.Pass,
		QuantityInspected: req.QuantityInspected,
		QuantityToRework:  req.QuantityToRework,
		QuantityToScrap:   req.QuantityToScrap,
		RejectionReason:   req.RejectionReason,
	})
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, qc)
}
