package pipeline

import (
	"context"
	"errors"
	"fmt"

	"server/internal/domain"
)

// Retry resets a failed job to pending and re-enqueues it. Swaps replace the
// pinned vendor for a category, but only for the failed step and later ones:
// artifacts produced before the failure point are preserved as-is and never
// regenerated, so swapping their producer would be meaningless.
func (o *Orchestrator) Retry(ctx context.Context, jobID string, swaps map[domain.Step]string) (*domain.GenerationJob, error) {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if err := job.CanRetry(); err != nil {
		return nil, err
	}

	failedStep := job.CurrentStep
	if !domain.ValidStep(failedStep) {
		failedStep = domain.StepScript
	}

	for category, provider := range swaps {
		if !domain.ValidStep(category) {
			return nil, fmt.Errorf("unknown provider category %q", category)
		}
		if category.Index() < failedStep.Index() {
			return nil, fmt.Errorf("%w: %s already completed before the failure at %s",
				domain.ErrSwapNotAllowed, category, failedStep)
		}
		if err := o.validateProvider(category, provider); err != nil {
			return nil, err
		}
		job.Providers.Set(category, provider)
	}

	job.Status = domain.JobStatusPending
	job.RetryCount++
	job.ErrorMessage = ""
	job.ErrorDetails = ""
	job.RecordStep(failedStep, domain.StepStatePending, o.now())

	if err := o.jobs.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job %s for retry: %w", jobID, err)
	}
	job.Version++

	if err := o.queue.Enqueue(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("enqueue job %s for retry: %w", jobID, err)
	}

	o.logger.Info().Str("job_id", job.ID).Int("retry_count", job.RetryCount).
		Str("failed_step", string(failedStep)).Msg("pipeline: retry accepted")
	return job, nil
}

// Cancel marks the job cancelled. The running worker observes the new status
// at its next between-steps check and stops before starting another step;
// an in-flight vendor call is never interrupted. Losing the version race to
// a worker heartbeat just means reloading and re-applying: the cancel is
// still valid against the fresher row.
func (o *Orchestrator) Cancel(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", jobID, err)
	}

	for {
		if job.Status.Terminal() {
			return nil, fmt.Errorf("%w: %s", domain.ErrJobTerminal, job.Status)
		}

		job.Status = domain.JobStatusCancelled
		err := o.jobs.Save(ctx, job)
		if err == nil {
			job.Version++
			break
		}
		if !errors.Is(err, domain.ErrVersionConflict) {
			return nil, fmt.Errorf("save cancelled job %s: %w", jobID, err)
		}
		job, err = o.jobs.GetByID(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("reload job %s after conflict: %w", jobID, err)
		}
	}

	o.logger.Info().Str("job_id", job.ID).Msg("pipeline: job cancelled")
	return job, nil
}

func (o *Orchestrator) validateProvider(category domain.Step, provider string) error {
	var err error
	switch category {
	case domain.StepScript:
		_, err = o.adapters.Script(provider)
	case domain.StepVoice:
		_, err = o.adapters.Voice(provider)
	case domain.StepMedia:
		_, err = o.adapters.Media(provider)
	case domain.StepVideoAI:
		_, err = o.adapters.VideoAI(provider)
	case domain.StepAssembly:
		_, err = o.adapters.Assembly(provider)
	}
	return err
}

// ValidateProviders checks that every pinned vendor is registered for its
// category, so a bad selection is rejected at job creation instead of
// surfacing mid-pipeline.
func (o *Orchestrator) ValidateProviders(sel domain.ProviderSelection) error {
	for _, step := range domain.StepOrder {
		if err := o.validateProvider(step, sel.For(step)); err != nil {
			return fmt.Errorf("%s: %w", step, err)
		}
	}
	return nil
}
