package api

import "nearmiss-dashboard/api/handlers"

type routeHandlers struct {
	incidents *handlers.IncidentsHandler
	stats     *handlers.StatsHandler
	health    *handlers.HealthHandler
}

func (s *Server) newRouteHandlers() routeHandlers {
	return routeHandlers{
		incidents: handlers.NewIncidentsHandler(s.incidentsSvc, s.metrics, s.logger),
		stats:     handlers.NewStatsHandler(s.incidentsSvc, s.logger),
		health:    handlers.NewHealthHandler(s.incidentsSvc, serviceName, s.logger),
	}
}
