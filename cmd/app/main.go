package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arbscope/internal/app"
	"arbscope/internal/domain"
	"arbscope/internal/engine"
	"arbscope/internal/ingest"
	"arbscope/internal/service"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize("configs/config.yaml"); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Background Asset Sync
	go bootstrap.SyncAssets(ctx)

	// 5. Engine + Market Service
	staleness := time.Duration(cfg.Engine.StalenessMS) * time.Millisecond
	eng := engine.New(bootstrap.Fees, staleness)

	svc := service.NewMarketService(eng, bootstrap.Store, cfg.Engine.TargetNotional)
	for _, alert := range cfg.Alerts {
		svc.AddAlert(domain.NewOpportunityAlert(alert.Pair, alert.MinNetProfit, alert.Persistent))
	}
	svc.StartProcessor(ctx)
	slog.InfoContext(ctx, "✅ Market service started")

	// 6. Feed Workers
	for _, feed := range cfg.Feeds {
		worker := ingest.NewWorker(feed.Venue, feed.WSURL, feed.Pairs, svc.SnapshotChan())
		if err := worker.Connect(ctx); err != nil {
			slog.Error("Failed to start feed", slog.String("venue", feed.Venue), slog.Any("error", err))
			continue
		}
		defer worker.Disconnect()
		slog.InfoContext(ctx, "✅ Feed worker started",
			slog.String("venue", feed.Venue),
			slog.Int("pairs", len(feed.Pairs)))
	}

	slog.InfoContext(ctx, "✨ ArbScope fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
