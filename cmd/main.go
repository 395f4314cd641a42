// Command karat runs the metal-price caching and dynamic-pricing
// propagation engine. It periodically fetches gold and platinum spot
// prices, caches them durably, recomputes every dynamic catalog item's
// display price, and exposes a manual trigger and health endpoint for
// operations.
//
// Usage:
//
//	karat --config config.yaml
//	karat --setup (interactive configuration wizard)
//
// Required environment variable:
//
//	GOLDAPI_KEY — credential for the metals market-data API. When unset,
//	the service starts but every update run fails with a configuration
//	error until the key is supplied.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/karatlabs/karat/config"
	"github.com/karatlabs/karat/internal/clients"
	"github.com/karatlabs/karat/internal/services/catalog"
	"github.com/karatlabs/karat/internal/services/health"
	"github.com/karatlabs/karat/internal/services/quote"
	"github.com/karatlabs/karat/internal/setup"
	"github.com/karatlabs/karat/internal/storage/pricecache"
	"github.com/karatlabs/karat/internal/storage/updatelog"
	"github.com/karatlabs/karat/internal/updater"
	"github.com/karatlabs/karat/internal/web"
)

func main() {
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Setup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		return
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	quoteClient := clients.NewGoldAPIClient(cfg.QuoteAPIBaseURL, cfg.QuoteAPIKey, cfg.FetchTimeout)
	quoteSource := quote.NewGoldAPISource(quoteClient, logger)
	if !quoteSource.Configured() {
		logger.Warn("GOLDAPI_KEY is not set, price updates will fail until an operator supplies it")
	}

	cache, err := pricecache.NewWALStore(cfg.PriceCacheDir)
	if err != nil {
		logger.Fatal("failed to open price cache", zap.Error(err))
	}
	defer cache.Close()

	runLog, err := updatelog.NewWALStore(cfg.UpdateLogDir, logger)
	if err != nil {
		logger.Fatal("failed to open update log", zap.Error(err))
	}
	defer runLog.Close()

	var catalogStore catalog.Store
	switch cfg.CatalogMode {
	case "cms":
		catalogStore = catalog.NewCMSClient(cfg.CatalogBaseURL, cfg.PropagateTimeout)
	case "memory":
		catalogStore = catalog.NewMemoryStore()
	default:
		logger.Fatal("unsupported catalog mode", zap.String("catalog", cfg.CatalogMode))
	}

	u := updater.New(
		quoteSource,
		cache,
		catalogStore,
		runLog,
		cfg.Markup,
		cfg.DefaultCurrency,
		cfg.FetchTimeout,
		cfg.PropagateTimeout,
		logger,
	)

	reporter := health.NewReporter(cache, quoteSource, cfg.DefaultCurrency, cfg.StalenessThreshold)
	scheduler := updater.NewScheduler(u, cfg.UpdateInterval, cfg.DefaultCurrency, logger)
	server := web.NewServer(cfg.HTTPAddr, u, reporter, runLog, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.Run(ctx)
	})
	g.Go(func() error {
		if len(cfg.TLSDomains) > 0 {
			return server.StartWithAutoTLS(ctx, cfg.TLSDomains, cfg.CertCacheDir)
		}
		return server.Start(ctx)
	})

	logger.Info("karat started",
		zap.String("currency", cfg.DefaultCurrency),
		zap.String("addr", cfg.HTTPAddr),
		zap.String("catalog", cfg.CatalogMode))

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("shutdown with error", zap.Error(err))
	}
}
