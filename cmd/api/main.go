package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"server/internal/adapter/repo"
	"server/internal/config"
	"server/internal/http/handlers"
	"server/internal/http/httpapi"
	"server/internal/infra"
	"server/internal/pipeline"
	"server/internal/providers"
	"server/internal/providers/transport"
	"server/internal/scheduler"
	"server/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	pipelineCfg, err := config.Load(cfg.PipelineConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: pipeline config failed")
	}

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: redis connection failed")
	}
	defer rdb.Close()

	runner := infra.NewSQLRunner(pool, logger)
	jobs := repo.NewJobRepository(runner)

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath, cfg.PublicBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: storage failed")
	}

	// The API never executes steps; it needs the orchestrator only for
	// provider validation, retry and cancel, so no notifier or credential
	// source is wired here.
	caller := transport.NewCaller(transport.Options{
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Audit:      repo.NewAuditRepository(runner, logger),
		Logger:     &logger,
		RateLimits: pipelineCfg.Limits.ProviderRatesPerSec,
	})
	registry := providers.NewRegistry(caller)

	queue := scheduler.NewQueue(rdb, logger)
	enqueuer := scheduler.GenerationEnqueuer{Queue: queue}

	orch := pipeline.New(pipeline.Options{
		Jobs:     jobs,
		Adapters: registry,
		Store:    fileStore,
		Queue:    enqueuer,
		Logger:   logger,
	})

	app := &handlers.App{
		Jobs:     jobs,
		Pipeline: orch,
		Queue:    enqueuer,
		Store:    fileStore,
		Config:   pipelineCfg,
		Logger:   logger,
	}

	router := httpapi.NewRouter(httpapi.Options{
		App:           app,
		Config:        cfg,
		DefaultLocale: pipelineCfg.Defaults.Locale,
		AssetsDir:     storagePath,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
