package domain

import "time"

// JobStatus enumerates the lifecycle states of a generation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether no further pipeline work may happen in this state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Step identifies one stage of the generation pipeline. The same values
// double as provider categories: each step is backed by a swappable vendor.
type Step string

const (
	StepScript   Step = "script"
	StepVoice    Step = "voice"
	StepMedia    Step = "media"
	StepVideoAI  Step = "video_ai"
	StepAssembly Step = "assembly"
	StepDone     Step = "done"
)

// StepOrder is the fixed execution sequence. Voice depends on the script
// text, media and video selection depend on visual prompts derived from the
// script, and assembly depends on everything before it, so the order is a
// hard dependency chain rather than a tunable.
var StepOrder = []Step{StepScript, StepVoice, StepMedia, StepVideoAI, StepAssembly}

// Index returns the position of the step in StepOrder, or len(StepOrder)
// for StepDone and unknown values.
func (s Step) Index() int {
	for i, step := range StepOrder {
		if step == s {
			return i
		}
	}
	return len(StepOrder)
}

// Next returns the step that follows s, or StepDone after the last one.
func (s Step) Next() Step {
	idx := s.Index() + 1
	if idx >= len(StepOrder) {
		return StepDone
	}
	return StepOrder[idx]
}

// ValidStep reports whether s names a pipeline step (StepDone excluded).
func ValidStep(s Step) bool {
	return s.Index() < len(StepOrder)
}

// StepRunState enumerates per-step progress inside a processing job.
type StepRunState string

const (
	StepStatePending   StepRunState = "pending"
	StepStateRunning   StepRunState = "running"
	StepStateSucceeded StepRunState = "succeeded"
	StepStateFailed    StepRunState = "failed"
)

// StepRecord captures the last observed state of one step and when it moved.
type StepRecord struct {
	State     StepRunState `json:"state"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ProviderSelection pins one vendor per category. It is resolved once at job
// creation and frozen for the job's lifetime; the only sanctioned change is
// an explicit retry-with-swap for steps at or after the failure point.
type ProviderSelection struct {
	Script   string `json:"script"`
	Voice    string `json:"voice"`
	Media    string `json:"media"`
	VideoAI  string `json:"video_ai"`
	Assembly string `json:"assembly"`
}

// For returns the pinned provider for the given step.
func (p ProviderSelection) For(step Step) string {
	switch step {
	case StepScript:
		return p.Script
	case StepVoice:
		return p.Voice
	case StepMedia:
		return p.Media
	case StepVideoAI:
		return p.VideoAI
	case StepAssembly:
		return p.Assembly
	}
	return ""
}

// Set overwrites the pinned provider for the given step.
func (p *ProviderSelection) Set(step Step, provider string) {
	switch step {
	case StepScript:
		p.Script = provider
	case StepVoice:
		p.Voice = provider
	case StepMedia:
		p.Media = provider
	case StepVideoAI:
		p.VideoAI = provider
	case StepAssembly:
		p.Assembly = provider
	}
}

// GenerationJob tracks one video through the pipeline. It is the single
// mutable shared resource between workers, the stuck monitor and the API;
// all writes go through optimistic versioning (see JobRepository.Save).
type GenerationJob struct {
	ID     string
	UserID string
	PlanID string // empty when the job is not part of a content plan

	Prompt            string
	TemplateID        string
	TargetDurationSec int
	Providers         ProviderSelection
	Config            PipelineConfig

	Status      JobStatus
	CurrentStep Step
	Steps       map[Step]StepRecord
	Artifacts   Artifacts

	ErrorMessage string
	ErrorDetails string
	RetryCount   int
	MaxRetries   int

	Version int

	CreatedAt           time.Time
	GenerationStartedAt *time.Time
	LastStepUpdatedAt   *time.Time
	PostedAt            *time.Time
}

// DefaultMaxRetries bounds explicit user-triggered retries per job.
const DefaultMaxRetries = 3

// RecordStep updates the per-step map and advances the heartbeat. The
// heartbeat write is what proves to the stuck monitor that the job is still
// being actively worked.
func (j *GenerationJob) RecordStep(step Step, state StepRunState, now time.Time) {
	if j.Steps == nil {
		j.Steps = make(map[Step]StepRecord, len(StepOrder))
	}
	j.Steps[step] = StepRecord{State: state, UpdatedAt: now}
	ts := now
	j.LastStepUpdatedAt = &ts
}

// RetryBudgetRemaining returns how many explicit retries the job has left.
func (j *GenerationJob) RetryBudgetRemaining() int {
	remaining := j.MaxRetries - j.RetryCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CanRetry reports whether an explicit retry is currently admissible.
func (j *GenerationJob) CanRetry() error {
	if j.Status != JobStatusFailed {
		return ErrJobNotRetryable
	}
	if j.RetryBudgetRemaining() == 0 {
		return ErrRetryBudgetExhausted
	}
	return nil
}
