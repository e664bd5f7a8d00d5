package handlers

import (
	"net/http"

	"nearmiss-dashboard/core/incidents"
	"nearmiss-dashboard/core/utils"
)

type StatsHandler struct {
	svc    *incidents.Service
	logger *utils.Logger
}

func NewStatsHandler(svc *incidents.Service, logger *utils.Logger) *StatsHandler {
	return &StatsHandler{svc: svc, logger: logger}
}

func (h *StatsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	summary, err := h.svc.Summary(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Breakdown serves one of the grouped label/value reports.
func (h *StatsHandler) Breakdown(report incidents.Report) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseFilter(r.URL.Query())
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		items, err := h.svc.Breakdown(r.Context(), report, filter)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func (h *StatsHandler) ByMonth(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items, err := h.svc.ByMonth(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *StatsHandler) ActionCauseDetails(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items, err := h.svc.ActionCauseDetails(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *StatsHandler) FilterOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.svc.FilterOptions(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}
