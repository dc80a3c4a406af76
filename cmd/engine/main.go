package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/dhima/webhook-scheduler/internal/catalog"
	"github.com/dhima/webhook-scheduler/internal/generator"
	"github.com/dhima/webhook-scheduler/internal/logging"
	"github.com/dhima/webhook-scheduler/internal/processor"
	"github.com/dhima/webhook-scheduler/internal/registry"
	"github.com/dhima/webhook-scheduler/internal/storage"
	"github.com/dhima/webhook-scheduler/pkg/config"
	"github.com/dhima/webhook-scheduler/platform/events"
)

func main() {
	cfg := config.FromEnv()

	logger, err := logging.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := storage.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	store := storage.NewClient(pool)

	// A previous crash may have left rows locked by a replica that no
	// longer exists. Reclaim them before the loops start.
	if err := store.UnlockAllLockedEvents(ctx); err != nil {
		logger.Fatal("failed to unlock stale locked events", zap.Error(err))
	}

	triggerCatalog := catalog.NewCache(pool, logger, cfg.CatalogRefresh)
	if err := triggerCatalog.Load(ctx); err != nil {
		logger.Fatal("failed to load trigger catalog", zap.Error(err))
	}

	zapLogger, _ := zap.NewProduction()
	publisher := events.NewPublisher(cfg.Brokers(), cfg.KafkaTopic, zapLogger)
	defer publisher.Close()

	gen := generator.New(cfg.GeneratorInterval, store, triggerCatalog, logger)
	proc := processor.New(cfg.ProcessorInterval, store, triggerCatalog, registry.New(),
		http.DefaultClient, publisher, logger)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		triggerCatalog.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		gen.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		proc.Run(ctx)
	}()

	logger.Info("engine started",
		zap.Duration("generator_interval", cfg.GeneratorInterval),
		zap.Duration("processor_interval", cfg.ProcessorInterval),
		zap.Duration("catalog_refresh", cfg.CatalogRefresh))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down engine gracefully...")
	cancel()
	wg.Wait()

	// The loop context is gone; the drain gets its own deadline so the
	// unlock writes still go through.
	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.DrainTimeout)
	defer drainCancel()
	proc.Drain(drainCtx)

	logger.Info("engine stopped")
}
