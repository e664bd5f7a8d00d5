package api

import (
	"net/http"

	"nearmiss-dashboard/api/routegroups"
	"nearmiss-dashboard/core/rbac"

	"github.com/go-chi/chi/v5"
)

func (s *Server) registerRoutes() {
	h := s.newRouteHandlers()
	s.router.Use(s.recoverMiddleware, s.metricsMiddleware, s.loggingMiddleware, s.securityHeadersMiddleware, s.corsMiddleware)
	s.router.NotFound(s.notFound)
	s.router.MethodNotAllowed(s.methodNotAllowed)

	s.router.MethodFunc("GET", "/health", h.health.Live)
	s.router.MethodFunc("GET", "/health/ready", h.health.Ready)
	if s.metrics != nil && s.cfg.Metrics.Enabled {
		path := s.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		s.router.Method("GET", path, s.metrics.Handler())
	}

	s.router.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Use(s.jsonMiddleware)
		s.registerIncidentRoutes(apiRouter, h)
	})
}

func (s *Server) registerIncidentRoutes(apiRouter chi.Router, h routeHandlers) {
	routegroups.RegisterIncidents(apiRouter, routegroups.Guards{
		WithSession:       s.withSession,
		RequirePermission: func(p string) func(http.HandlerFunc) http.HandlerFunc { return s.requirePermission(rbac.Permission(p)) },
	}, h.incidents, h.stats)
}
