package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/config"
	"github.com/kailas-cloud/deskindex/internal/httpretry"
	logpkg "github.com/kailas-cloud/deskindex/internal/logger"
	"github.com/kailas-cloud/deskindex/internal/repository/index"
	"github.com/kailas-cloud/deskindex/internal/repository/postgres"
	"github.com/kailas-cloud/deskindex/internal/settings"
	"github.com/kailas-cloud/deskindex/internal/source/faq"
	"github.com/kailas-cloud/deskindex/internal/transport/aiclient"
	"github.com/kailas-cloud/deskindex/internal/usecase/rebuild"
	searchuc "github.com/kailas-cloud/deskindex/internal/usecase/search"
)

// runWorker performs one full rebuild and reports the outcome on fd 3.
// It returns the process exit code.
func runWorker(env, logLevel string, cfg config.Config) int {
	if mode := os.Getenv(rebuild.EnvMode); mode != "" {
		env = mode
	}
	logger, err := logpkg.NewLogger(env, rebuild.WorkerCommand, logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	report := os.NewFile(rebuild.ReportFD, "report")
	if report == nil {
		logger.Error("Report descriptor is not open")
		return 1
	}
	defer report.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := rebuildIndices(ctx, cfg, logger)
	if runErr != nil {
		logger.Error("Index rebuild failed", zap.Error(runErr))
	}
	if err := rebuild.Report(report, runErr); err != nil {
		logger.Error("Failed to report rebuild outcome", zap.Error(err))
		return 1
	}
	if runErr != nil {
		return 1
	}
	return 0
}

func rebuildIndices(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	dbURL := os.Getenv(rebuild.EnvDatabaseURL)
	if dbURL == "" {
		dbURL = cfg.Database.URL
	}
	pool, err := postgres.Connect(ctx, dbURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	cache := settings.NewCache(postgres.NewSettingsRepo(pool), logger.Named("settings"))
	snap, err := cache.Get(ctx)
	if err != nil {
		return err
	}
	if !snap.IndexStoreEnabled {
		return errors.New("index store is disabled")
	}

	aiHTTP := httpretry.NewClient(cfg.AI.Retry.Policy(), time.Duration(cfg.AI.TimeoutSec)*time.Second, logger.Named("httpretry"))
	embedder := buildEmbedder(cfg, aiclient.New(aiHTTP, cache, logger.Named("ai")), logger)

	manager := index.NewManager(cache, storeFactory(cfg.IndexStore), index.DefaultDescriptors(), logger.Named("index")).
		WithHNSW(index.HNSWConfig{M: cfg.IndexStore.HNSWM, EFConstruct: cfg.IndexStore.HNSWEFConstruct})
	defer manager.Close()
	if err := manager.CheckConnection(ctx); err != nil {
		return err
	}
	publicQA, _ := manager.Descriptor(index.PublicQA)

	// sync only reads; no event subscriptions in the worker
	faqSource := faq.New(postgres.NewFAQRepo(pool), nil, cfg.Search.SyncBatchSize, logger.Named("faq"))
	engine := searchuc.New(cache, manager, embedder, publicQA, logger.Named("search")).AddSource(faqSource)

	return rebuild.RunWorker(ctx, rebuild.WorkerDeps{
		Indices: manager,
		Syncer:  engine,
		Logger:  logger,
	})
}
