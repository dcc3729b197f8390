package www

import (
	"net/http"

	"chipsight/store"
)

func (h *Handlers) apiListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.engine.DB().ListProjects()
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, projects)
}

func (h *Handlers) apiCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectCode string `json:"project_code"`
		ProjectName string `json:"project_name"`
		Description string `json:"description"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProjectCode == "" || req.ProjectName == "" {
		h.jsonError(w, "project_code and project_name are required", http.StatusBadRequest)
		return
	}
	p := &store.Project{ProjectCode: req.ProjectCode, ProjectName: req.ProjectName, Description: req.Description}
	if err := h.engine.DB().CreateProject(p); err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, p)
}

func (h *Handlers) apiListEndProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	products, err := h.engine.DB().ListEndProductsByProject(id)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, products)
}

func (h *Handlers) apiCreateEndProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return
	}
	var req struct {
		Name         string  `json:"name"`
		SAPID        string  `json:"sap_id"`
		Quantity     int64   `json:"quantity"`
		SetupTimeStd float64 `json:"setup_time_std"`
		CycleTimeStd float64 `json:"cycle_time_std"`
		FPIRequired  bool    `json:"fpi_required"`
		LPIRequired  bool    `json:"lpi_required"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SAPID == "" || req.Quantity <= 0 {
		h.jsonError(w, "sap_id and a positive quantity are required", http.StatusBadRequest)
		return
	}
	ep := &store.EndProduct{
		ProjectID:    id,
		Name:         req.Name,
		SAPID:        req.SAPID,
		Quantity:     req.Quantity,
		SetupTimeStd: req.SetupTimeStd,
		CycleTimeStd: req.CycleTimeStd,
		FPIRequired:  req.FPIRequired,
		LPIRequired:  req.LPIRequired,
	}
	if err := h.engine.DB().CreateEndProduct(ep); err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, ep)
}

func (h *Handlers) apiListDrawings(w http.ResponseWriter, r *http.Request) {
	drawings, err := h.engine.DB().ListDrawings()
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, drawings)
}

func (h *Handlers) apiLookupDrawing(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("number")
	if number == "" {
		h.jsonError(w, "number is required", http.StatusBadRequest)
		return
	}
	d, err := h.engine.DB().GetDrawingByNumber(number)
	if err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, d)
}

func (h *Handlers) apiCreateDrawing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DrawingNumber string `json:"drawing_number"`
		SAPID         string `json:"sap_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.DrawingNumber == "" || req.SAPID == "" {
		h.jsonError(w, "drawing_number and sap_id are required", http.StatusBadRequest)
		return
	}
	d := &store.Drawing{DrawingNumber: req.DrawingNumber, SAPID: req.SAPID}
	if err := h.engine.DB().CreateDrawing(d); err != nil {
		h.actionError(w, err)
		return
	}
	h.jsonOK(w, d)
}
