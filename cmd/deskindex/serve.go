package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/config"
	"github.com/kailas-cloud/deskindex/internal/eventbus"
	"github.com/kailas-cloud/deskindex/internal/httpretry"
	logpkg "github.com/kailas-cloud/deskindex/internal/logger"
	"github.com/kailas-cloud/deskindex/internal/metrics"
	"github.com/kailas-cloud/deskindex/internal/repository/index"
	"github.com/kailas-cloud/deskindex/internal/repository/postgres"
	"github.com/kailas-cloud/deskindex/internal/settings"
	"github.com/kailas-cloud/deskindex/internal/source/faq"
	"github.com/kailas-cloud/deskindex/internal/transport/aiclient"
	chiTransport "github.com/kailas-cloud/deskindex/internal/transport/chi"
	natsBridge "github.com/kailas-cloud/deskindex/internal/transport/nats"
	"github.com/kailas-cloud/deskindex/internal/usecase/autotag"
	healthuc "github.com/kailas-cloud/deskindex/internal/usecase/health"
	"github.com/kailas-cloud/deskindex/internal/usecase/rebuild"
	searchuc "github.com/kailas-cloud/deskindex/internal/usecase/search"
	"github.com/kailas-cloud/deskindex/internal/usecase/strategy"
	"github.com/kailas-cloud/deskindex/internal/version"
)

func serve(env, logLevel string, cfg config.Config) error {
	logger, err := logpkg.NewLogger(env, "api", logLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting deskindex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.RegisterServiceMetrics()

	pool, err := postgres.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if cfg.Database.Migrate {
		if err := postgres.Migrate(ctx, pool); err != nil {
			return err
		}
	}
	logger.Info("Connected to database")

	bus := eventbus.New(logger.Named("eventbus"))
	defer func() { _ = bus.Close() }()

	cache := settings.NewCache(postgres.NewSettingsRepo(pool), logger.Named("settings"))
	if _, err := cache.Subscribe(ctx, bus); err != nil {
		return fmt.Errorf("subscribe settings: %w", err)
	}

	aiHTTP := httpretry.NewClient(cfg.AI.Retry.Policy(), time.Duration(cfg.AI.TimeoutSec)*time.Second, logger.Named("httpretry"))
	ai := aiclient.New(aiHTTP, cache, logger.Named("ai"))
	embedder := buildEmbedder(cfg, ai, logger)

	manager := index.NewManager(cache, storeFactory(cfg.IndexStore), index.DefaultDescriptors(), logger.Named("index")).
		WithHNSW(index.HNSWConfig{M: cfg.IndexStore.HNSWM, EFConstruct: cfg.IndexStore.HNSWEFConstruct})
	defer manager.Close()
	publicQA, _ := manager.Descriptor(index.PublicQA)

	faqSource := faq.New(postgres.NewFAQRepo(pool), bus, cfg.Search.SyncBatchSize, logger.Named("faq"))
	defer faqSource.Close()
	if err := faqSource.Listen(ctx); err != nil {
		return fmt.Errorf("subscribe faq events: %w", err)
	}
	engine := searchuc.New(cache, manager, embedder, publicQA, logger.Named("search")).AddSource(faqSource)
	defer engine.Close()

	if err := engine.Init(ctx); err != nil {
		logger.Warn("Search sources not fully registered", zap.Error(err))
	}
	manager.OnReady(func(ctx context.Context) {
		if err := engine.Init(ctx); err != nil {
			logger.Warn("Search sources not fully registered", zap.Error(err))
		}
	})
	defer manager.Watch(cache)()
	if err := manager.Setup(ctx); err != nil {
		logger.Warn("Index store setup failed, search degraded", zap.Error(err))
	}

	orchestrator := rebuild.NewOrchestrator(cache, manager, &rebuild.ExecSpawner{
		DatabaseURL: cfg.Database.URL,
		Mode:        env,
		Logger:      logger.Named("rebuild"),
	}, logger.Named("rebuild"))
	defer orchestrator.Watch(cache)()

	tagger := autotag.New(postgres.NewTagRepo(pool), ai, cache, strategy.NewRegistry(logger.Named("strategy")), logger.Named("autotag"))
	job := autotag.NewJob(tagger, postgres.NewTicketRepo(pool),
		time.Duration(cfg.Autotagger.IntervalSec)*time.Second, cfg.Autotagger.BatchSize, logger.Named("autotag"))
	stopJob, err := job.Start(ctx, cache)
	if err != nil {
		return fmt.Errorf("start autotagger: %w", err)
	}
	defer stopJob()

	if cfg.Events.NatsURL != "" {
		bridge, err := natsBridge.Connect(cfg.Events.NatsURL, cfg.Events.SubjectPrefix, bus, logger.Named("nats"))
		if err != nil {
			return err
		}
		defer bridge.Close()
		if err := bridge.Start(); err != nil {
			return err
		}
	}

	health := healthuc.New(pool, manager, ai, cache)
	server := chiTransport.NewServer(engine, orchestrator, health, cache, logger).WithAPIKeys(cfg.Auth.APIKeys)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
