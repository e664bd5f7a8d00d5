package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nearmiss-dashboard/config"
	"nearmiss-dashboard/core/auth"
	"nearmiss-dashboard/core/incidents"
	"nearmiss-dashboard/core/observability"
	"nearmiss-dashboard/core/rbac"
	"nearmiss-dashboard/core/utils"

	"github.com/go-chi/chi/v5"
)

const serviceName = "nearmiss-dashboard-api"

type ServerDeps struct {
	Incidents *incidents.Service
	Policy    *rbac.Policy
	Keys      *auth.KeyManager
	Metrics   *observability.Metrics
}

type Server struct {
	cfg          *config.AppConfig
	router       chi.Router
	httpServer   *http.Server
	logger       *utils.Logger
	incidentsSvc *incidents.Service
	policy       *rbac.Policy
	keys         *auth.KeyManager
	metrics      *observability.Metrics
}

func NewServer(cfg *config.AppConfig, deps ServerDeps, logger *utils.Logger) *Server {
	s := &Server{
		cfg:          cfg,
		router:       chi.NewRouter(),
		logger:       logger,
		incidentsSvc: deps.Incidents,
		policy:       deps.Policy,
		keys:         deps.Keys,
		metrics:      deps.Metrics,
	}
	s.registerRoutes()
	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Printf("listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Printf("shutting down")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
