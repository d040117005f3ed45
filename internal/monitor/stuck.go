// Package monitor reclaims generation jobs abandoned mid-flight: worker
// crashes, network partitions, or vendor hangs that outlived every adapter
// timeout. It only ever transitions status and emits notifications; it never
// deletes data.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"server/internal/domain"
	"server/internal/infra"
)

const (
	// DefaultSweepInterval is how often the sweeps run.
	DefaultSweepInterval = 5 * time.Minute
	// DefaultStuckTimeout is how stale a processing job's heartbeat may be
	// before it is declared stuck.
	DefaultStuckTimeout = 30 * time.Minute
)

// Options wires a Monitor.
type Options struct {
	Jobs     domain.JobRepository
	Plans    domain.PlanRepository
	Notify   domain.NotificationSink
	Logger   infra.Logger
	Interval time.Duration
	Timeout  time.Duration
	Now      func() time.Time
}

type Monitor struct {
	jobs     domain.JobRepository
	plans    domain.PlanRepository
	notify   domain.NotificationSink
	logger   infra.Logger
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

func New(opts Options) *Monitor {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultStuckTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		jobs:     opts.Jobs,
		plans:    opts.Plans,
		notify:   opts.Notify,
		logger:   opts.Logger,
		interval: interval,
		timeout:  timeout,
		now:      now,
	}
}

// Run sweeps on a fixed interval until the context is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.logger.Info().Dur("interval", m.interval).Dur("timeout", m.timeout).Msg("monitor: started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil {
				m.logger.Error().Err(err).Msg("monitor: sweep failed")
			}
		}
	}
}

// Sweep runs both detections once and returns how many jobs it terminated.
// It is idempotent: terminated jobs leave the processing state, so a second
// pass over the same instant finds nothing new.
func (m *Monitor) Sweep(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-m.timeout)
	terminated := 0

	stale, err := m.jobs.ListStaleProcessing(ctx, cutoff)
	if err != nil {
		return terminated, fmt.Errorf("list stale processing jobs: %w", err)
	}
	for _, job := range stale {
		msg := fmt.Sprintf("generation timed out at step %s: no progress since %s",
			job.CurrentStep, job.LastStepUpdatedAt.UTC().Format(time.RFC3339))
		if m.terminate(ctx, job, msg, domain.NotifyGenerationTimedOut) {
			terminated++
		}
	}

	// Claimed but without a single heartbeat: the dispatch itself failed,
	// which is a different root cause than an execution hang, even though
	// the user-facing remedy (retry) is the same.
	never, err := m.jobs.ListNeverStarted(ctx, cutoff)
	if err != nil {
		return terminated, fmt.Errorf("list never-started jobs: %w", err)
	}
	for _, job := range never {
		msg := fmt.Sprintf("generation never started: claimed at %s but no step was recorded",
			job.GenerationStartedAt.UTC().Format(time.RFC3339))
		if m.terminate(ctx, job, msg, domain.NotifyGenerationNeverStarted) {
			terminated++
		}
	}

	return terminated, nil
}

func (m *Monitor) terminate(ctx context.Context, job *domain.GenerationJob, msg string, kind domain.NotificationKind) bool {
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = msg

	if err := m.jobs.Save(ctx, job); err != nil {
		// A conflict means the worker made progress (or the user cancelled)
		// between our read and this write; leave the job alone.
		if errors.Is(err, domain.ErrVersionConflict) {
			m.logger.Debug().Str("job_id", job.ID).Msg("monitor: job changed under sweep, skipping")
			return false
		}
		m.logger.Error().Err(err).Str("job_id", job.ID).Msg("monitor: failed to terminate job")
		return false
	}

	m.notify.Notify(ctx, job.UserID, kind, map[string]any{
		"job_id": job.ID,
		"step":   string(job.CurrentStep),
		"error":  msg,
	})

	if job.PlanID != "" {
		if err := m.plans.MarkFailed(ctx, job.PlanID, msg); err != nil {
			m.logger.Error().Err(err).Str("plan_id", job.PlanID).Msg("monitor: plan cascade failed")
		}
	}

	m.logger.Warn().Str("job_id", job.ID).Str("step", string(job.CurrentStep)).
		Str("kind", string(kind)).Msg("monitor: terminated job")
	return true
}
