package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"bugx/internal/api"
	"bugx/internal/config"
	"bugx/internal/database"
	"bugx/internal/docs"
	"bugx/internal/logging"
	"bugx/internal/mcp"
	"bugx/internal/metrics"
	"bugx/internal/notify"
	"bugx/internal/patterns"
	"bugx/internal/workflow"
)

// app holds the wired components of one server process
type app struct {
	cfg          *config.Config
	logger       logging.Logger
	registry     *prometheus.Registry
	orchestrator *workflow.Orchestrator
	datastore    *database.Datastore
	redis        *redis.Client
	redisSink    *notify.Guarded
	hub          *notify.Hub
	mcp          *mcp.Server
	router       *api.Router
}

// buildApp wires every component from cfg. Optional dependencies that fail to
// come up (Redis, the datastore) are logged and left out.
func buildApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	library := patterns.BuiltinLibrary()
	if cfg.Patterns.LibraryFile != "" {
		extended, err := patterns.LoadLibraryFile(library, cfg.Patterns.LibraryFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load pattern library: %w", err)
		}
		library = extended
		logger.Info("Pattern library extended", "file", cfg.Patterns.LibraryFile, "signatures", len(library.Signatures()))
	}
	engine := patterns.NewEngine(library,
		patterns.WithMinConfidence(cfg.Patterns.MinConfidence),
		patterns.WithLogger(logger))

	var notifiers notify.Multi
	if cfg.Notification.LogEnabled {
		notifiers = append(notifiers, notify.NewLogNotifier(logger))
	}
	if cfg.Notification.WebSocketEnabled {
		a.hub = notify.NewHub(logger)
		notifiers = append(notifiers, a.hub)
	}
	if cfg.Redis.Enabled {
		rdb, err := notify.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, team notifications stay local", "addr", cfg.Redis.Addr, "error", err)
		} else {
			a.redis = rdb
			a.redisSink = notify.NewGuarded("redis", notify.NewRedisNotifier(rdb, cfg.Redis.Channel),
				notify.WithGuardLogger(logger))
			notifiers = append(notifiers, a.redisSink)
		}
	}

	ds, err := database.OpenDatastore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Warn("Datastore unavailable, activity logging disabled", "driver", cfg.Database.Driver, "error", err)
	} else {
		a.datastore = ds
	}

	opts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithConfig(cfg.Workflow),
		workflow.WithPatternEngine(engine),
		workflow.WithCollector(metrics.NewCollector(metrics.WithRegisterer(a.registry), metrics.WithLogger(logger))),
		workflow.WithNotifier(notifiers),
	}
	if a.datastore != nil {
		opts = append(opts, workflow.WithProbe("datastore", func(ctx context.Context) error {
			return a.datastore.DB().PingContext(ctx)
		}))
	}
	if a.redis != nil {
		opts = append(opts, workflow.WithProbe("redis", func(ctx context.Context) error {
			if err := a.redisSink.Check(ctx); err != nil {
				return err
			}
			return a.redis.Ping(ctx).Err()
		}))
	}
	a.orchestrator = workflow.NewOrchestrator(opts...)

	a.mcp, err = mcp.NewServer(a.orchestrator, docs.APIVersion, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}

	a.router = api.NewRouter(cfg, api.Dependencies{
		Orchestrator: a.orchestrator,
		Datastore:    a.datastore,
		Hub:          a.hub,
		MCP:          a.mcp,
		Registry:     a.registry,
		Logger:       logger,
	})
	a.router.OnShutdown(func(context.Context) error { return a.close() })

	return a, nil
}

// initializeDatastore runs the bootstrap at start-up when configured
func (a *app) initializeDatastore(ctx context.Context) {
	if a.datastore == nil || !a.cfg.Database.InitializeOnStart {
		return
	}
	report, err := a.datastore.Setup(ctx)
	if err != nil {
		a.logger.Warn("Datastore initialization failed, retry with POST /api/setup", "error", err)
		return
	}
	a.logger.Info("Datastore initialized", "demo_user_created", report.DemoUserCreated)
}

// close releases the datastore and Redis connections
func (a *app) close() error {
	var errs []error
	if a.datastore != nil {
		errs = append(errs, a.datastore.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
