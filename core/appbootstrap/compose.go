package appbootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"nearmiss-dashboard/api"
	"nearmiss-dashboard/config"
	"nearmiss-dashboard/core/auth"
	"nearmiss-dashboard/core/incidents"
	"nearmiss-dashboard/core/observability"
	"nearmiss-dashboard/core/rbac"
	"nearmiss-dashboard/core/store"
	"nearmiss-dashboard/core/utils"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	incidents  *incidents.Service
	metrics    *observability.Metrics
}

func composeRuntime(cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (*runtimeComposition, error) {
	incidentsStore := store.NewIncidentsStore(db)
	incidentsSvc := incidents.NewService(incidentsStore, cfg.Incidents, logger)

	policy, err := rbac.NewPolicy(rbac.DefaultRoles())
	if err != nil {
		return nil, fmt.Errorf("rbac policy: %w", err)
	}
	keys, err := auth.NewKeyManager(cfg.Auth, policy)
	if err != nil {
		return nil, fmt.Errorf("api keys: %w", err)
	}
	if !keys.Enabled() {
		logger.Warnf("no api keys configured, every caller is treated as admin")
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics, err = observability.NewMetrics(db)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
	}

	return &runtimeComposition{
		serverDeps: api.ServerDeps{
			Incidents: incidentsSvc,
			Policy:    policy,
			Keys:      keys,
			Metrics:   metrics,
		},
		incidents: incidentsSvc,
		metrics:   metrics,
	}, nil
}

// App owns the database handle and everything composed on top of it.
type App struct {
	cfg     *config.AppConfig
	db      *sql.DB
	logger  *utils.Logger
	runtime *runtimeComposition
}

// Open connects to the configured database, brings the schema up to date and
// composes the services.
func Open(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) (*App, error) {
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	rt, err := composeRuntime(cfg, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &App{cfg: cfg, db: db, logger: logger, runtime: rt}, nil
}

func (a *App) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

func (a *App) Incidents() *incidents.Service {
	return a.runtime.incidents
}

func (a *App) Server() *api.Server {
	return api.NewServer(a.cfg, a.runtime.serverDeps, a.logger)
}

// Serve runs the HTTP API until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	return a.Server().Run(ctx)
}

// Seed imports a JSON array of raw incidents and records the outcome.
func (a *App) Seed(ctx context.Context, r io.Reader, opts incidents.SeedOptions) (*incidents.SeedResult, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = a.cfg.Seed.BatchSize
	}
	res, err := a.runtime.incidents.Seed(ctx, r, opts)
	if res != nil {
		a.runtime.metrics.RecordSeed(res.Inserted, res.Skipped)
	}
	return res, err
}

// Migrate applies pending migrations without composing the services.
func Migrate(ctx context.Context, cfg *config.AppConfig, logger *utils.Logger) (int64, error) {
	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	if err := store.ApplyMigrations(ctx, db, logger); err != nil {
		return 0, err
	}
	return store.MigrationVersion(ctx, db)
}

// Context is shared by the CLI commands. Config and Logger are filled in by
// Init once flags are parsed.
type Context struct {
	ConfigPath string
	Debug      bool
	Config     *config.AppConfig
	Logger     *utils.Logger
}

func (c *Context) Init() error {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return err
	}
	if c.Debug {
		cfg.Log.Level = "debug"
	}
	c.Config = cfg
	c.Logger = utils.NewLoggerWith(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return nil
}
