package routegroups

import (
	"nearmiss-dashboard/api/handlers"
	"nearmiss-dashboard/core/incidents"

	"github.com/go-chi/chi/v5"
)

func RegisterIncidents(apiRouter chi.Router, g Guards, h *handlers.IncidentsHandler, stats *handlers.StatsHandler) {
	apiRouter.Route("/incidents", func(incidentsRouter chi.Router) {
		incidentsRouter.MethodFunc("GET", "/", g.SessionPerm("incidents.view", h.List))
		incidentsRouter.MethodFunc("POST", "/", g.SessionPerm("incidents.manage", h.Create))
		incidentsRouter.MethodFunc("GET", "/attributes/{field}", g.SessionPerm("incidents.view", h.Attributes))
		incidentsRouter.MethodFunc("GET", "/{id}", g.SessionPerm("incidents.view", h.Get))
		incidentsRouter.MethodFunc("PUT", "/{id}", g.SessionPerm("incidents.manage", h.Update))
		incidentsRouter.MethodFunc("DELETE", "/{id}", g.SessionPerm("incidents.manage", h.Delete))
		incidentsRouter.Route("/stats", func(statsRouter chi.Router) {
			statsRouter.MethodFunc("GET", "/summary", g.SessionPerm("incidents.view", stats.Summary))
			statsRouter.MethodFunc("GET", "/by-severity", g.SessionPerm("incidents.view", stats.Breakdown(incidents.ReportSeverity)))
			statsRouter.MethodFunc("GET", "/by-region", g.SessionPerm("incidents.view", stats.Breakdown(incidents.ReportRegion)))
			statsRouter.MethodFunc("GET", "/by-month", g.SessionPerm("incidents.view", stats.ByMonth))
			statsRouter.MethodFunc("GET", "/by-action-cause", g.SessionPerm("incidents.view", stats.Breakdown(incidents.ReportActionCause)))
			statsRouter.MethodFunc("GET", "/by-action-cause-details", g.SessionPerm("incidents.view", stats.ActionCauseDetails))
			statsRouter.MethodFunc("GET", "/by-gbu", g.SessionPerm("incidents.view", stats.Breakdown(incidents.ReportGBU)))
			statsRouter.MethodFunc("GET", "/by-behavior-type", g.SessionPerm("incidents.view", stats.Breakdown(incidents.ReportBehaviorType)))
			statsRouter.MethodFunc("GET", "/by-primary-category", g.SessionPerm("incidents.view", stats.Breakdown(incidents.ReportPrimaryCategory)))
			statsRouter.MethodFunc("GET", "/by-location", g.SessionPerm("incidents.view", stats.Breakdown(incidents.ReportLocation)))
			statsRouter.MethodFunc("GET", "/by-job", g.SessionPerm("incidents.view", stats.Breakdown(incidents.ReportJob)))
			statsRouter.MethodFunc("GET", "/filter-options", g.SessionPerm("incidents.view", stats.FilterOptions))
		})
	})
}
