// Package app wires the catalog, progress store, tracker and dashboard from
// configuration. Both binaries build on it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/pai-progress/internal/catalog"
	"github.com/p-n-ai/pai-progress/internal/dashboard"
	"github.com/p-n-ai/pai-progress/internal/platform/cache"
	"github.com/p-n-ai/pai-progress/internal/platform/config"
	"github.com/p-n-ai/pai-progress/internal/platform/database"
	"github.com/p-n-ai/pai-progress/internal/platform/metrics"
	"github.com/p-n-ai/pai-progress/internal/progress"
	"github.com/p-n-ai/pai-progress/internal/scoring"
	"github.com/p-n-ai/pai-progress/internal/tracker"
)

// App holds the wired services.
type App struct {
	Config     *config.Config
	Catalog    *catalog.Loader
	Store      progress.Store
	Scoring    scoring.Engine
	Aggregator *progress.Aggregator
	Tracker    *tracker.Tracker
	Dashboard  *dashboard.Service
	Metrics    *metrics.Metrics

	db    *database.DB
	cache *cache.Cache
}

// New loads the catalog and connects the configured store backend.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cat, err := catalog.NewLoader(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	if len(cat.AllModules()) == 0 {
		return nil, fmt.Errorf("no modules found under %s", cfg.CatalogPath)
	}

	a := &App{
		Config:  cfg,
		Catalog: cat,
		Metrics: metrics.New(),
		Scoring: scoring.Engine{PassingThreshold: cfg.Policy.PassingThreshold},
	}

	var events tracker.EventLogger = tracker.NopEventLogger{}
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, fmt.Errorf("connecting database: %w", err)
		}
		a.db = db
		store, err := progress.NewPostgresStore(db)
		if err != nil {
			a.Close()
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				a.Close()
				return nil, fmt.Errorf("applying schema: %w", err)
			}
		}
		a.Store = store
		events = tracker.NewPostgresEventLogger(db)

	case config.BackendRedis:
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting cache: %w", err)
		}
		a.cache = c.WithPrefix(cfg.Cache.Prefix)
		store, err := progress.NewRedisStore(a.cache)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Store = store

	default:
		a.Store = progress.NewMemoryStore()
	}

	a.Aggregator = progress.NewAggregator(progress.AggregatorConfig{
		Modules:    cat,
		Store:      a.Store,
		Retake:     progress.RetakePolicy(cfg.Policy.Retake),
		MaxRetries: cfg.Policy.MaxWriteRetries,
		Metrics:    a.Metrics,
	})
	a.Tracker = tracker.New(tracker.Config{
		Catalog:    cat,
		Scoring:    a.Scoring,
		Aggregator: a.Aggregator,
		Events:     events,
		Metrics:    a.Metrics,
	})
	a.Dashboard = dashboard.NewService(cat, a.Store, progress.NewResolver(progress.ResolverConfig{
		StartedPercent: cfg.Policy.StartedPercent,
		UnlockPolicy:   progress.UnlockPolicy(cfg.Policy.Unlock),
	}))

	slog.Info("app ready",
		"store", cfg.Store.Backend,
		"modules", len(cat.AllModules()),
		"retake", cfg.Policy.Retake,
		"unlock", cfg.Policy.Unlock,
	)
	return a, nil
}

// Ready checks connectivity of the configured backends.
func (a *App) Ready(ctx context.Context) error {
	var errs []error
	if a.db != nil {
		if err := a.db.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if a.cache != nil {
		if err := a.cache.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cache: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close releases backend connections.
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Warn("closing cache", "error", err)
		}
	}
}
