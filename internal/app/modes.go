package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/trendbot/internal/config"
	"github.com/alanyoungcy/trendbot/internal/pipeline"
	"github.com/alanyoungcy/trendbot/internal/platform/polymarket"
	"github.com/alanyoungcy/trendbot/internal/server"
	"github.com/alanyoungcy/trendbot/internal/server/handler"
	"github.com/alanyoungcy/trendbot/internal/server/ws"
	"github.com/alanyoungcy/trendbot/internal/service"
	"github.com/alanyoungcy/trendbot/internal/trend"
)

const shutdownTimeout = 5 * time.Second

// IngestMode runs the fetch+upsert loop only.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ingest mode")
	return a.buildOrchestrator(deps).Run(ctx)
}

// ScoreMode runs the scoring loop only, over ticks another process ingests.
func (a *App) ScoreMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting score mode")
	return a.buildOrchestrator(deps).Run(ctx)
}

// ServerMode serves the read API without running the pipeline.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, nil)
	return g.Wait()
}

// FullMode runs the ingest+score loop and, when enabled, the read API with a
// manual run trigger.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	g, ctx := errgroup.WithContext(ctx)

	orch := a.buildOrchestrator(deps)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, orch)
	}
	return g.Wait()
}

// buildOrchestrator assembles the pipeline phases the mode runs; it returns
// nil for server mode.
func (a *App) buildOrchestrator(deps *Dependencies) *pipeline.Orchestrator {
	mode := strings.ToLower(a.cfg.Mode)

	var ingester pipeline.Ingestor
	if mode == config.ModeIngest || mode == config.ModeFull {
		ingester = a.buildIngester(deps)
	}
	var runner pipeline.TrendRunner
	if mode == config.ModeScore || mode == config.ModeFull {
		runner = a.buildRunner(deps)
	}
	if ingester == nil && runner == nil {
		return nil
	}

	return pipeline.NewOrchestrator(
		ingester,
		runner,
		deps.LockManager,
		a.cfg.Scoring.Interval.Duration,
		a.cfg.Scoring.LockTTL.Duration,
		a.logger,
	)
}

func (a *App) buildIngester(deps *Dependencies) *pipeline.Ingester {
	pm := a.cfg.Polymarket
	client := polymarket.New(polymarket.Config{
		MarketsURL:        pm.MarketsURL,
		TicksURL:          pm.TicksURL,
		PageSize:          pm.PageSize,
		RequestsPerSecond: pm.RequestsPerSecond,
		Burst:             pm.Burst,
		Timeout:           pm.Timeout.Duration,
		EnableLiquidity:   pm.EnableLiquidity,
	})
	svc := service.NewIngestService(deps.MarketStore, deps.TickStore, a.logger)
	return pipeline.NewIngester(client, svc, pm.Concurrency, a.logger)
}

func (a *App) buildRunner(deps *Dependencies) *trend.Runner {
	r := trend.NewRunner(deps.TrendStore, a.cfg.Scoring.MinLiquidity, a.logger).
		WithAudit(deps.AuditStore)
	if a.cfg.Scoring.RefreshCategoryIndex {
		r = r.WithCategoryIndex(deps.CategoryIndex)
	}
	if a.cfg.Scoring.ArchiveRuns && deps.RunArchiver != nil {
		r = r.WithArchiver(deps.RunArchiver)
	}
	if deps.SignalBus != nil {
		r = r.WithBus(deps.SignalBus)
	}
	if deps.ViewCache != nil {
		r = r.WithCache(deps.ViewCache)
	}
	return r
}

// startHTTPServer serves the read API and, with Redis, the run-event
// WebSocket. trigger is nil when this process runs no pipeline.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, trigger handler.Triggerer) {
	health := handler.NewHealthHandler(a.cfg.Mode, a.logger)
	for name, check := range deps.Checks {
		health = health.WithCheck(name, check)
	}

	trendSvc := service.NewTrendService(deps.ViewStore, deps.ViewCache, a.logger)

	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.cfg.Mode, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			RateLimit:   a.cfg.Server.RateLimit,
			RateWindow:  a.cfg.Server.RateWindow.Duration,
		},
		server.Handlers{
			Health:   health,
			Trends:   handler.NewTrendHandler(trendSvc, a.logger),
			Pipeline: handler.NewPipelineHandler(trigger, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("HTTP server shutting down", slog.String("reason", context.Cause(ctx).Error()))
		return srv.Shutdown(shutCtx)
	})
}
