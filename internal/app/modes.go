package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/monitor"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/server"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/server/handler"
	"github.com/AxelRoffi/OpinionMarketCap-sub004/internal/server/ws"
)

// ServerMode serves the HTTP API and the flow WebSocket stream.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return ignoreCanceled(g.Wait())
}

// MonitorMode runs the RPC health checks and the flow archive schedule.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startMonitor(ctx, g, deps)
	return ignoreCanceled(g.Wait())
}

// FullMode runs the API and the monitor in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startMonitor(ctx, g, deps)
	a.startHTTPServer(ctx, g, deps)
	return ignoreCanceled(g.Wait())
}

func (a *App) startMonitor(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	m := monitor.New(
		deps.Checker,
		deps.Archiver,
		a.cfg.Monitor.Interval.Duration,
		a.cfg.Monitor.ArchiveInterval.Duration,
		a.cfg.Monitor.ArchiveAfter.Duration,
		a.logger,
	)
	g.Go(func() error {
		return m.Run(ctx)
	})
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if !a.cfg.Server.Enabled {
		a.logger.WarnContext(ctx, "server.enabled is false, HTTP API not started")
		return
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Network:        deps.Network.Name,
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:           a.cfg.Server.Port,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		APIKey:         a.cfg.Server.APIKey,
		FlowRateLimit:  a.cfg.Flow.RateLimit,
		FlowRateWindow: a.cfg.Flow.RateWindow.Duration,
	}, server.Handlers{
		Health:   handler.NewHealthHandler(deps.Network.Name, deps.Checker, deps.BlobReader, a.logger),
		Opinions: handler.NewOpinionHandler(deps.Opinions, a.logger),
		Pools:    handler.NewPoolHandler(deps.Pools, deps.Chain.Address(), a.logger),
		Flows:    handler.NewFlowHandler(deps.Flows, a.logger),
		Sessions: handler.NewSessionHandler(deps.Sessions, deps.Network.ChainID, a.logger),
	}, deps.RateLimiter, hub, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening", slog.Int("port", a.cfg.Server.Port))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// ignoreCanceled treats a cancelled context as a clean shutdown.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
