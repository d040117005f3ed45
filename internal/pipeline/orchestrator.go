// Package pipeline drives a generation job through its fixed step sequence,
// persisting durable progress after every transition so a crash mid-run
// loses at most one step's work.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers/assembly"
	"server/internal/providers/media"
	"server/internal/providers/script"
	"server/internal/providers/transport"
	"server/internal/providers/videoai"
	"server/internal/providers/voice"
)

// Adapters resolves the vendor factory for each category. providers.Registry
// is the production implementation; tests substitute fakes.
type Adapters interface {
	Script(name string) (script.Factory, error)
	Voice(name string) (voice.Factory, error)
	Media(name string) (media.Factory, error)
	VideoAI(name string) (videoai.Factory, error)
	Assembly(name string) (assembly.Factory, error)
}

// BlobStore persists step outputs that arrive as raw bytes (narration audio).
type BlobStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	PublicURL(key string) string
}

// Enqueuer re-queues a job for asynchronous execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

// StepResult is the normalized outcome of one step invocation. Exactly one
// of Data and Err is populated.
type StepResult struct {
	Success bool
	Data    any
	Err     error
}

// DefaultStepTimeout bounds a step when no per-step override is configured.
const DefaultStepTimeout = 5 * time.Minute

// Options wires an Orchestrator.
type Options struct {
	Jobs     domain.JobRepository
	Adapters Adapters
	Creds    domain.CredentialSource
	Notify   domain.NotificationSink
	Store    BlobStore
	Queue    Enqueuer
	Logger   infra.Logger
	// Timeouts bounds each adapter call; video generation needs far more
	// headroom than text or voice.
	Timeouts map[domain.Step]time.Duration
	Now      func() time.Time
}

type Orchestrator struct {
	jobs     domain.JobRepository
	adapters Adapters
	creds    domain.CredentialSource
	notify   domain.NotificationSink
	store    BlobStore
	queue    Enqueuer
	logger   infra.Logger
	timeouts map[domain.Step]time.Duration
	now      func() time.Time
}

func New(opts Options) *Orchestrator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		jobs:     opts.Jobs,
		adapters: opts.Adapters,
		creds:    opts.Creds,
		notify:   opts.Notify,
		store:    opts.Store,
		queue:    opts.Queue,
		logger:   opts.Logger,
		timeouts: opts.Timeouts,
		now:      now,
	}
}

// errStopRun aborts the step loop when a concurrent writer (cancel request,
// stuck monitor) moved the job out from under this worker.
var errStopRun = errors.New("job taken over concurrently")

// Run executes one orchestrator pass over the job. Dispatch is at-least-once,
// so a duplicate delivery of an already-terminal job is a silent no-op.
func (o *Orchestrator) Run(ctx context.Context, jobID string) error {
	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	log := o.logger.With().Str("job_id", job.ID).Str("user_id", job.UserID).Logger()

	if job.Status.Terminal() {
		log.Info().Str("status", string(job.Status)).Msg("pipeline: job already terminal, skipping")
		return nil
	}

	if job.Status == domain.JobStatusPending {
		job.Status = domain.JobStatusProcessing
		if job.GenerationStartedAt == nil {
			ts := o.now()
			job.GenerationStartedAt = &ts
		}
		job, err = o.save(ctx, job)
		if err != nil {
			if errors.Is(err, errStopRun) {
				return nil
			}
			return err
		}
		log.Info().Msg("pipeline: job claimed")
	}

	for _, step := range domain.StepOrder {
		// Artifacts from a previous attempt are kept; never re-pay a
		// provider for a step that already succeeded.
		if job.Artifacts.Has(step) && job.Steps[step].State == domain.StepStateSucceeded {
			continue
		}

		// Cancellation is cooperative: checked between steps, never
		// mid-adapter-call, because in-flight vendor work has no
		// cancellation hook.
		fresh, err := o.jobs.GetByID(ctx, job.ID)
		if err != nil {
			return fmt.Errorf("refresh job %s: %w", job.ID, err)
		}
		if fresh.Status != domain.JobStatusProcessing {
			log.Info().Str("status", string(fresh.Status)).Str("step", string(step)).
				Msg("pipeline: job left processing state, stopping before next step")
			return nil
		}
		job = fresh

		// Heartbeat write before the adapter call: a crash during a slow
		// external call must still be visible as "stuck at step N".
		job.CurrentStep = step
		job.RecordStep(step, domain.StepStateRunning, o.now())
		job, err = o.save(ctx, job)
		if err != nil {
			if errors.Is(err, errStopRun) {
				return nil
			}
			return err
		}

		result := o.executeStep(ctx, job, step)
		if !result.Success {
			return o.failJob(ctx, job, step, result.Err)
		}

		if err := job.Artifacts.Merge(step, result.Data); err != nil {
			return o.failJob(ctx, job, step, err)
		}
		job.RecordStep(step, domain.StepStateSucceeded, o.now())
		job.CurrentStep = step.Next()
		job, err = o.save(ctx, job)
		if err != nil {
			if errors.Is(err, errStopRun) {
				return nil
			}
			return err
		}
		log.Info().Str("step", string(step)).Msg("pipeline: step succeeded")
	}

	job.Status = domain.JobStatusCompleted
	job.CurrentStep = domain.StepDone
	if _, err := o.save(ctx, job); err != nil {
		if errors.Is(err, errStopRun) {
			return nil
		}
		return err
	}
	o.notify.Notify(ctx, job.UserID, domain.NotifyGenerationCompleted, map[string]any{
		"job_id":    job.ID,
		"video_url": job.Artifacts.Assembly.VideoURL,
	})
	log.Info().Msg("pipeline: job completed")
	return nil
}

// executeStep resolves credential and adapter for the step and invokes it.
// Every failure mode comes back inside the StepResult; nothing escapes as a
// panic or an unclassified error.
func (o *Orchestrator) executeStep(ctx context.Context, job *domain.GenerationJob, step domain.Step) StepResult {
	providerName := job.Providers.For(step)
	if providerName == "" {
		return StepResult{Err: fmt.Errorf("%w: no %s provider selected", domain.ErrProviderNotRegistered, step)}
	}

	cred, err := o.creds.Resolve(ctx, job.UserID, step)
	if err != nil {
		return StepResult{Err: fmt.Errorf("resolve %s credential: %w", step, err)}
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeoutFor(step))
	defer cancel()

	switch step {
	case domain.StepScript:
		factory, err := o.adapters.Script(providerName)
		if err != nil {
			return StepResult{Err: err}
		}
		artifact, cerr := factory(cred, job.Config.Script).GenerateScript(ctx, script.Request{
			JobID:             job.ID,
			UserID:            job.UserID,
			Prompt:            job.Prompt,
			TemplateID:        job.TemplateID,
			TargetDurationSec: job.TargetDurationSec,
		})
		if cerr != nil {
			return StepResult{Err: cerr}
		}
		return StepResult{Success: true, Data: artifact}

	case domain.StepVoice:
		factory, err := o.adapters.Voice(providerName)
		if err != nil {
			return StepResult{Err: err}
		}
		result, cerr := factory(cred, job.Config.Voice).GenerateVoice(ctx, voice.Request{
			JobID:  job.ID,
			UserID: job.UserID,
			Text:   job.Artifacts.Script.Text,
		})
		if cerr != nil {
			return StepResult{Err: cerr}
		}
		key := fmt.Sprintf("generated/audio/%s/narration.mp3", job.ID)
		savedKey, err := o.store.Write(ctx, key, result.Audio)
		if err != nil {
			return StepResult{Err: fmt.Errorf("store narration audio: %w", err)}
		}
		return StepResult{Success: true, Data: &domain.VoiceArtifact{
			AudioKey:    savedKey,
			AudioURL:    o.store.PublicURL(savedKey),
			Format:      result.Format,
			DurationSec: result.DurationSec,
		}}

	case domain.StepMedia:
		factory, err := o.adapters.Media(providerName)
		if err != nil {
			return StepResult{Err: err}
		}
		artifact, cerr := factory(cred, job.Config.Media).FetchMedia(ctx, media.Request{
			JobID:  job.ID,
			UserID: job.UserID,
			Scenes: job.Artifacts.Script.Scenes,
		})
		if cerr != nil {
			return StepResult{Err: cerr}
		}
		return StepResult{Success: true, Data: artifact}

	case domain.StepVideoAI:
		factory, err := o.adapters.VideoAI(providerName)
		if err != nil {
			return StepResult{Err: err}
		}
		artifact, cerr := factory(cred, job.Config.VideoAI).GenerateVideo(ctx, videoai.Request{
			JobID:       job.ID,
			UserID:      job.UserID,
			Prompt:      visualPrompt(job.Artifacts.Script),
			DurationSec: clipDuration(job.TargetDurationSec),
		})
		if cerr != nil {
			return StepResult{Err: cerr}
		}
		return StepResult{Success: true, Data: artifact}

	case domain.StepAssembly:
		factory, err := o.adapters.Assembly(providerName)
		if err != nil {
			return StepResult{Err: err}
		}
		artifact, cerr := factory(cred, job.Config.Assembly).AssembleVideo(ctx, assembly.Request{
			JobID:    job.ID,
			UserID:   job.UserID,
			Script:   job.Artifacts.Script,
			AudioURL: job.Artifacts.Voice.AudioURL,
			Media:    job.Artifacts.Media,
			AIClip:   job.Artifacts.VideoAI,
		})
		if cerr != nil {
			return StepResult{Err: cerr}
		}
		return StepResult{Success: true, Data: artifact}
	}

	return StepResult{Err: fmt.Errorf("unknown step %q", step)}
}

// failJob persists the failure and stops the run. Partially completed
// artifacts stay on the row for possible reuse on retry.
func (o *Orchestrator) failJob(ctx context.Context, job *domain.GenerationJob, step domain.Step, cause error) error {
	job.RecordStep(step, domain.StepStateFailed, o.now())
	job.Status = domain.JobStatusFailed
	job.CurrentStep = step
	job.ErrorMessage = fmt.Sprintf("step %s failed: %s", step, summarizeCause(cause))
	job.ErrorDetails = cause.Error()

	if _, err := o.save(ctx, job); err != nil {
		if errors.Is(err, errStopRun) {
			return nil
		}
		return err
	}

	o.notify.Notify(ctx, job.UserID, domain.NotifyGenerationFailed, map[string]any{
		"job_id":            job.ID,
		"step":              string(step),
		"error":             job.ErrorMessage,
		"retries_remaining": job.RetryBudgetRemaining(),
	})
	o.logger.Warn().Str("job_id", job.ID).Str("step", string(step)).Err(cause).
		Msg("pipeline: job failed")
	return nil
}

// summarizeCause keeps the user-facing message short and actionable while
// ErrorDetails retains the full cause.
func summarizeCause(cause error) string {
	var perr *transport.Error
	if errors.As(cause, &perr) {
		switch perr.Code {
		case transport.CodeInvalidKey:
			return fmt.Sprintf("%s rejected the API key (invalid_key); update it in settings", perr.Provider)
		case transport.CodeInsufficientPermissions:
			return fmt.Sprintf("%s key lacks required permissions (insufficient_permissions)", perr.Provider)
		case transport.CodeRateLimited:
			return fmt.Sprintf("%s rate limited the request (rate_limited); retry later", perr.Provider)
		case transport.CodeServiceUnavailable:
			return fmt.Sprintf("%s is unavailable (service_unavailable); retry later", perr.Provider)
		case transport.CodeNotImplemented:
			return fmt.Sprintf("%s does not support this operation (not_implemented)", perr.Provider)
		default:
			return fmt.Sprintf("%s returned an unexpected error (unknown_error)", perr.Provider)
		}
	}
	if errors.Is(cause, domain.ErrNotConfigured) || errors.Is(cause, domain.ErrProviderNotRegistered) {
		return "configuration error: " + cause.Error()
	}
	return cause.Error()
}

// save applies the optimistic-versioned update. On conflict it reloads: a
// job that left the processing state belongs to someone else now (cancel or
// monitor), otherwise the stale version is adopted and the write retried.
func (o *Orchestrator) save(ctx context.Context, job *domain.GenerationJob) (*domain.GenerationJob, error) {
	err := o.jobs.Save(ctx, job)
	if err == nil {
		job.Version++
		return job, nil
	}
	if !errors.Is(err, domain.ErrVersionConflict) {
		return nil, fmt.Errorf("save job %s: %w", job.ID, err)
	}

	fresh, ferr := o.jobs.GetByID(ctx, job.ID)
	if ferr != nil {
		return nil, fmt.Errorf("reload job %s after conflict: %w", job.ID, ferr)
	}
	if fresh.Status != domain.JobStatusProcessing && fresh.Status != domain.JobStatusPending {
		o.logger.Info().Str("job_id", job.ID).Str("status", string(fresh.Status)).
			Msg("pipeline: yielding job to concurrent writer")
		return fresh, errStopRun
	}
	job.Version = fresh.Version
	if serr := o.jobs.Save(ctx, job); serr != nil {
		return nil, fmt.Errorf("save job %s after conflict: %w", job.ID, serr)
	}
	job.Version++
	return job, nil
}

func (o *Orchestrator) timeoutFor(step domain.Step) time.Duration {
	if d, ok := o.timeouts[step]; ok && d > 0 {
		return d
	}
	return DefaultStepTimeout
}

// visualPrompt condenses the script's scene directions into one generation
// prompt for the AI video vendor.
func visualPrompt(s *domain.ScriptArtifact) string {
	var prompts []string
	for _, scene := range s.Scenes {
		if scene.VisualPrompt != "" {
			prompts = append(prompts, scene.VisualPrompt)
		}
	}
	if len(prompts) == 0 {
		return s.Text
	}
	joined := strings.Join(prompts, "; ")
	if len(joined) > 1000 {
		joined = joined[:1000]
	}
	return joined
}

// clipDuration caps the AI clip request; the bulk of runtime is covered by
// stock footage, the generated clip is the opener.
func clipDuration(targetSec int) int {
	if targetSec <= 0 || targetSec > 8 {
		return 8
	}
	return targetSec
}
