package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"server/internal/domain"
)

type generationCreateRequest struct {
	Prompt            string                 `json:"prompt"`
	TemplateID        string                 `json:"template_id"`
	TargetDurationSec int                    `json:"target_duration_sec"`
	PlanID            string                 `json:"plan_id"`
	Providers         map[string]string      `json:"providers"`
	Config            *domain.PipelineConfig `json:"config"`
	// ScheduleAt defers the generation; empty means run now.
	ScheduleAt *time.Time `json:"schedule_at"`
}

type generationRetryRequest struct {
	Providers map[string]string `json:"providers"`
}

type jobView struct {
	ID               string                            `json:"id"`
	Status           domain.JobStatus                  `json:"status"`
	CurrentStep      domain.Step                       `json:"current_step"`
	Steps            map[domain.Step]domain.StepRecord `json:"steps,omitempty"`
	Providers        domain.ProviderSelection          `json:"providers"`
	Artifacts        domain.Artifacts                  `json:"artifacts"`
	ErrorMessage     string                            `json:"error_message,omitempty"`
	RetriesRemaining int                               `json:"retries_remaining"`
	CreatedAt        time.Time                         `json:"created_at"`
	LastStepAt       *time.Time                        `json:"last_step_updated_at,omitempty"`
}

func viewOf(job *domain.GenerationJob) jobView {
	return jobView{
		ID:               job.ID,
		Status:           job.Status,
		CurrentStep:      job.CurrentStep,
		Steps:            job.Steps,
		Providers:        job.Providers,
		Artifacts:        job.Artifacts,
		ErrorMessage:     job.ErrorMessage,
		RetriesRemaining: job.RetryBudgetRemaining(),
		CreatedAt:        job.CreatedAt,
		LastStepAt:       job.LastStepUpdatedAt,
	}
}

func (a *App) GenerationCreate(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req generationCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}

	active, err := a.Jobs.CountActiveByUser(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("count active jobs failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to check quota")
		return
	}
	if active >= a.Config.Limits.MaxConcurrentPerUser {
		a.error(w, http.StatusTooManyRequests, "quota_exceeded", "too many generations in progress")
		return
	}

	providers := a.Config.DefaultProviders()
	for category, name := range req.Providers {
		step := domain.Step(category)
		if !domain.ValidStep(step) {
			a.error(w, http.StatusBadRequest, "bad_request", "unknown provider category: "+category)
			return
		}
		providers.Set(step, name)
	}
	if err := a.Pipeline.ValidateProviders(providers); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	cfg := domain.DefaultPipelineConfig()
	if req.Config != nil {
		cfg = *req.Config
	}
	if err := cfg.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	now := time.Now().UTC()
	job := &domain.GenerationJob{
		ID:                uuid.NewString(),
		UserID:            userID,
		PlanID:            req.PlanID,
		Prompt:            req.Prompt,
		TemplateID:        req.TemplateID,
		TargetDurationSec: req.TargetDurationSec,
		Providers:         providers,
		Config:            cfg,
		Status:            domain.JobStatusPending,
		CurrentStep:       domain.StepScript,
		MaxRetries:        a.Config.Limits.MaxRetries,
		CreatedAt:         now,
	}
	if err := a.Jobs.Create(r.Context(), job); err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("create job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create job")
		return
	}

	if req.ScheduleAt != nil && req.ScheduleAt.After(now) {
		err = a.Queue.EnqueueAt(r.Context(), job.ID, *req.ScheduleAt)
	} else {
		err = a.Queue.Enqueue(r.Context(), job.ID)
	}
	if err != nil {
		// The job row exists; the stuck monitor will not see it (still
		// pending), so surface the failure to the caller.
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("enqueue job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}

	a.json(w, http.StatusAccepted, viewOf(job))
}

func (a *App) GenerationStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadOwnedJob(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, viewOf(job))
}

func (a *App) GenerationRetry(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadOwnedJob(w, r)
	if !ok {
		return
	}
	var req generationRetryRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
	}
	swaps := make(map[domain.Step]string, len(req.Providers))
	for category, name := range req.Providers {
		swaps[domain.Step(category)] = name
	}

	updated, err := a.Pipeline.Retry(r.Context(), job.ID, swaps)
	if err != nil {
		a.retryError(w, err)
		return
	}
	a.json(w, http.StatusAccepted, viewOf(updated))
}

func (a *App) GenerationCancel(w http.ResponseWriter, r *http.Request) {
	job, ok := a.loadOwnedJob(w, r)
	if !ok {
		return
	}
	updated, err := a.Pipeline.Cancel(r.Context(), job.ID)
	if err != nil {
		if errors.Is(err, domain.ErrJobTerminal) {
			a.error(w, http.StatusConflict, "conflict", err.Error())
			return
		}
		a.Logger.Error().Err(err).Str("job_id", job.ID).Msg("cancel failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to cancel job")
		return
	}
	a.json(w, http.StatusOK, viewOf(updated))
}

func (a *App) loadOwnedJob(w http.ResponseWriter, r *http.Request) (*domain.GenerationJob, bool) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return nil, false
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return nil, false
	}
	job, err := a.Jobs.GetByID(r.Context(), jobID)
	if err != nil || job.UserID != userID {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return nil, false
	}
	return job, true
}

func (a *App) retryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrJobNotRetryable):
		a.error(w, http.StatusConflict, "not_retryable", "only failed jobs can be retried")
	case errors.Is(err, domain.ErrRetryBudgetExhausted):
		a.error(w, http.StatusConflict, "retries_exhausted", "retry budget exhausted")
	case errors.Is(err, domain.ErrSwapNotAllowed):
		a.error(w, http.StatusUnprocessableEntity, "swap_not_allowed", err.Error())
	case errors.Is(err, domain.ErrProviderNotRegistered):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("retry failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to retry job")
	}
}
