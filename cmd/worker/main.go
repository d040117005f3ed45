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
	"golang.org/x/sync/errgroup"

	"server/internal/adapter/repo"
	"server/internal/config"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/infra/credentials"
	"server/internal/monitor"
	"server/internal/notify"
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
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	pipelineCfg, err := config.Load(cfg.PipelineConfigPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: pipeline config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	rdb, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: redis connection failed")
	}
	defer rdb.Close()

	runner := infra.NewSQLRunner(pool, logger)
	jobs := repo.NewJobRepository(runner)
	plans := repo.NewPlanRepository(runner)
	audit := repo.NewAuditRepository(runner, logger)
	notifier := notify.NewNotifier(runner, logger, pipelineCfg.Defaults.Locale)
	creds := credentials.NewStore(runner, nil)

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	fileStore, err := storage.NewFileStore(storagePath, cfg.PublicBaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	caller := transport.NewCaller(transport.Options{
		HTTPClient: &http.Client{Timeout: 90 * time.Second},
		Audit:      audit,
		Logger:     &logger,
		RateLimits: pipelineCfg.Limits.ProviderRatesPerSec,
	})
	registry := providers.NewRegistry(caller)

	queue := scheduler.NewQueue(rdb, logger)
	enqueuer := scheduler.GenerationEnqueuer{Queue: queue}

	stepTimeout := pipelineCfg.Timeouts.Step.Std()
	orch := pipeline.New(pipeline.Options{
		Jobs:     jobs,
		Adapters: registry,
		Creds:    creds,
		Notify:   notifier,
		Store:    fileStore,
		Queue:    enqueuer,
		Logger:   logger,
		Timeouts: map[domain.Step]time.Duration{
			domain.StepScript:   stepTimeout,
			domain.StepVoice:    stepTimeout,
			domain.StepMedia:    stepTimeout,
			domain.StepVideoAI:  pipelineCfg.Timeouts.Generation.Std() / 2,
			domain.StepAssembly: pipelineCfg.Timeouts.Generation.Std() / 2,
		},
	})

	worker := scheduler.NewWorker(scheduler.WorkerOptions{
		Queue:       queue,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Timeouts: map[scheduler.TaskKind]time.Duration{
			scheduler.TaskGenerateVideo: pipelineCfg.Timeouts.Generation.Std(),
		},
		Handlers: map[scheduler.TaskKind]scheduler.HandlerFunc{
			scheduler.TaskGenerateVideo: func(ctx context.Context, task scheduler.Task) error {
				return orch.Run(ctx, task.JobID)
			},
		},
	})

	stuck := monitor.New(monitor.Options{
		Jobs:     jobs,
		Plans:    plans,
		Notify:   notifier,
		Logger:   logger,
		Interval: pipelineCfg.Monitor.SweepInterval.Std(),
		Timeout:  pipelineCfg.Monitor.StuckTimeout.Std(),
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(ctx) })
	g.Go(func() error { return stuck.Run(ctx) })
	g.Go(func() error { return queue.RunPromoter(ctx, time.Minute) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
