package handlers

import (
	"net/http"

	"nearmiss-dashboard/core/incidents"
	"nearmiss-dashboard/core/observability"
	"nearmiss-dashboard/core/utils"
)

type IncidentsHandler struct {
	svc     *incidents.Service
	metrics *observability.Metrics
	logger  *utils.Logger
}

func NewIncidentsHandler(svc *incidents.Service, metrics *observability.Metrics, logger *utils.Logger) *IncidentsHandler {
	return &IncidentsHandler{svc: svc, metrics: metrics, logger: logger}
}

func (h *IncidentsHandler) List(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	page, err := h.svc.List(r.Context(), params)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *IncidentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	incident, err := h.svc.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, incident)
}

func (h *IncidentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload incidents.CreateInput
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	incident, err := h.svc.Create(r.Context(), payload)
	h.metrics.RecordWrite("create", err)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, incident)
}

func (h *IncidentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload incidents.UpdateInput
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	incident, err := h.svc.Update(r.Context(), urlParam(r, "id"), payload)
	h.metrics.RecordWrite("update", err)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, incident)
}

func (h *IncidentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Delete(r.Context(), urlParam(r, "id"))
	h.metrics.RecordWrite("delete", err)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *IncidentsHandler) Attributes(w http.ResponseWriter, r *http.Request) {
	vals, err := h.svc.AttributeValues(r.Context(), urlParam(r, "field"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, vals)
}
