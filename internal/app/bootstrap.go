package app

import (
	"context"
	"log/slog"
	"time"

	"arbscope/internal/domain"
	"arbscope/internal/fees"
	"arbscope/internal/history"
	"arbscope/internal/infra"
	"arbscope/internal/infra/storage"

	"golang.org/x/sync/errgroup"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config     *infra.Config
	Store      *storage.SnapshotStore
	Fees       *fees.Registry
	History    *history.BarCache
	Downloader *infra.IconDownloader
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, stores)
func (b *Bootstrap) Initialize(configPath string) error {
	slog.Info("🚀 Bootstrapping ArbScope...")

	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	store, err := storage.NewSnapshotStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("✅ Snapshot store initialized", slog.String("path", cfg.Storage.Path))

	b.Fees = fees.NewRegistry(cfg.FeeSchedules())
	slog.Info("✅ Fee registry loaded", slog.Int("venues", len(b.Fees.Venues())))

	unitStore, err := history.NewUnitStore(cfg.History.Dir)
	if err != nil {
		return err
	}
	fetcher := history.NewRESTBarFetcher(cfg.History.BarsURL)
	fetchTimeout := time.Duration(cfg.History.FetchTimeoutSec) * time.Second
	b.History = history.NewBarCache(unitStore, fetcher, cfg.History.MaxRetries, fetchTimeout)
	slog.Info("✅ Bar cache ready", slog.String("dir", cfg.History.Dir))

	downloader, err := infra.NewIconDownloader(cfg.History.Dir)
	if err != nil {
		return err
	}
	b.Downloader = downloader

	return nil
}

// SyncAssets fetches icons for every base asset the feeds cover, with
// bounded concurrency, so the display layer has them locally.
func (b *Bootstrap) SyncAssets(ctx context.Context) {
	slog.Info("🔄 Starting asset synchronization...")

	uniqueAssets := make(map[string]bool)
	for _, feed := range b.Config.Feeds {
		for _, pair := range feed.Pairs {
			uniqueAssets[domain.BaseAsset(pair)] = true
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(5) // Limit concurrent downloads

	for asset := range uniqueAssets {
		asset := asset
		g.Go(func() error {
			path, err := b.Downloader.DownloadIcon(gctx, asset)
			if err != nil {
				slog.Warn("Failed to download icon", slog.String("asset", asset), slog.Any("error", err))
				return nil // best effort, keep the group going
			}
			slog.Debug("Icon synced", slog.String("asset", asset), slog.String("path", path))
			return nil
		})
	}

	g.Wait()
	slog.Info("✨ Asset synchronization completed")
}
