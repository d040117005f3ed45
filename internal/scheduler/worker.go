package scheduler

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"server/internal/infra"
)

// HandlerFunc executes one task. The context carries the per-kind deadline.
type HandlerFunc func(ctx context.Context, task Task) error

// Per-kind execution ceilings: the hard safety net behind the stuck
// monitor's soft heartbeat detection.
var defaultKindTimeouts = map[TaskKind]time.Duration{
	TaskGenerateVideo: 30 * time.Minute,
	TaskPublishVideo:  5 * time.Minute,
	TaskSyncAnalytics: 5 * time.Minute,
}

const dequeueWait = 5 * time.Second

// WorkerOptions wires a worker pool.
type WorkerOptions struct {
	Queue       *Queue
	Handlers    map[TaskKind]HandlerFunc
	Logger      infra.Logger
	Concurrency int
	// Timeouts overrides defaultKindTimeouts per kind.
	Timeouts map[TaskKind]time.Duration
}

// Worker consumes the ready list with a fixed number of goroutines, each
// executing one task at a time.
type Worker struct {
	queue       *Queue
	handlers    map[TaskKind]HandlerFunc
	logger      infra.Logger
	concurrency int
	timeouts    map[TaskKind]time.Duration
}

func NewWorker(opts WorkerOptions) *Worker {
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	timeouts := make(map[TaskKind]time.Duration, len(defaultKindTimeouts))
	for kind, d := range defaultKindTimeouts {
		timeouts[kind] = d
	}
	for kind, d := range opts.Timeouts {
		if d > 0 {
			timeouts[kind] = d
		}
	}
	return &Worker{
		queue:       opts.Queue,
		handlers:    opts.Handlers,
		logger:      opts.Logger,
		concurrency: concurrency,
		timeouts:    timeouts,
	}
}

// Run blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			return w.consume(ctx)
		})
	}
	w.logger.Info().Int("concurrency", w.concurrency).Msg("worker: started")
	return g.Wait()
}

func (w *Worker) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		task, err := w.queue.Dequeue(ctx, dequeueWait)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			w.logger.Error().Err(err).Msg("worker: dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}
		w.dispatch(ctx, *task)
	}
}

func (w *Worker) dispatch(ctx context.Context, task Task) {
	handler, ok := w.handlers[task.Kind]
	if !ok {
		w.logger.Error().Str("kind", string(task.Kind)).Str("job_id", task.JobID).
			Msg("worker: no handler for task kind")
		return
	}

	timeout := w.timeouts[task.Kind]
	if timeout <= 0 {
		timeout = defaultKindTimeouts[TaskGenerateVideo]
	}
	taskCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	w.logger.Info().Str("kind", string(task.Kind)).Str("job_id", task.JobID).Msg("worker: picked task")
	started := time.Now()
	if err := handler(taskCtx, task); err != nil {
		// The job row already holds any pipeline-level failure; this path
		// is infra-level only, and the stuck monitor owns the recovery.
		w.logger.Error().Err(err).Str("kind", string(task.Kind)).Str("job_id", task.JobID).
			Dur("took", time.Since(started)).Msg("worker: task failed")
		return
	}
	w.logger.Info().Str("kind", string(task.Kind)).Str("job_id", task.JobID).
		Dur("took", time.Since(started)).Msg("worker: task done")
}
