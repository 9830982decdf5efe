package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kailas-cloud/deskindex/internal/config"
	"github.com/kailas-cloud/deskindex/internal/db"
	dbRedis "github.com/kailas-cloud/deskindex/internal/db/redis"
	"github.com/kailas-cloud/deskindex/internal/domain"
	"github.com/kailas-cloud/deskindex/internal/repository/index"
	openaiEmb "github.com/kailas-cloud/deskindex/internal/transport/openai"
	"github.com/kailas-cloud/deskindex/internal/usecase/rebuild"
	"github.com/kailas-cloud/deskindex/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "deskindex: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var env, logLevel string
	var showVersion bool

	flagSet := pflag.NewFlagSet("deskindex", pflag.ContinueOnError)
	flagSet.StringVar(&env, "env", config.GetEnv(), "configuration environment: local, docker or prod")
	flagSet.StringVar(&logLevel, "log-level", "", "override logging.level: debug, info, warn, error")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n  deskindex [flags]                 serve the search API\n  deskindex %s [flags]   run one index rebuild and exit\n\nFlags:\n", rebuild.WorkerCommand)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Println("deskindex " + version.String())
		return nil
	}

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if logLevel == "" {
		logLevel = cfg.Logging.Level
	}

	switch args := flagSet.Args(); {
	case len(args) == 0:
		return serve(env, logLevel, cfg)
	case args[0] == rebuild.WorkerCommand:
		os.Exit(runWorker(env, logLevel, cfg))
		return nil
	default:
		flagSet.Usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// storeFactory builds index store clients for the address held in settings.
func storeFactory(cfg config.IndexStoreConfig) index.Factory {
	return func(addr string) (db.Store, error) {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addr:     addr,
			Username: cfg.Username,
			Password: cfg.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create index store: %w", err)
		}
		timeout := time.Duration(cfg.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(context.Background(), timeout); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	}
}

// buildEmbedder picks the embedding provider: the AI service or an OpenAI-compatible API.
func buildEmbedder(cfg config.Config, native domain.Embedder, logger *zap.Logger) domain.Embedder {
	if cfg.Embedding.Provider != config.ProviderOpenAI {
		return native
	}
	return openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     cfg.Embedding.OpenAI.APIKey,
		BaseURL:    cfg.Embedding.OpenAI.BaseURL,
		Model:      cfg.Embedding.OpenAI.Model,
		Dimensions: cfg.Embedding.OpenAI.Dimensions,
		Logger:     logger.Named("openai"),
	})
}
