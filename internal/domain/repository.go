package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for generation jobs.
//
// Save applies optimistic versioning: the update only lands when the stored
// version still matches the loaded one, otherwise ErrVersionConflict is
// returned and the caller must reload. This is what keeps a worker heartbeat
// and a concurrent cancel from silently overwriting each other.
type JobRepository interface {
	Create(ctx context.Context, job *GenerationJob) error
	GetByID(ctx context.Context, jobID string) (*GenerationJob, error)
	Save(ctx context.Context, job *GenerationJob) error
	CountActiveByUser(ctx context.Context, userID string) (int, error)
	// ListStaleProcessing returns processing jobs whose heartbeat is older
	// than the cutoff.
	ListStaleProcessing(ctx context.Context, cutoff time.Time) ([]*GenerationJob, error)
	// ListNeverStarted returns processing jobs that were claimed before the
	// cutoff but never recorded a single heartbeat.
	ListNeverStarted(ctx context.Context, cutoff time.Time) ([]*GenerationJob, error)
}

// PlanRepository cascades job failures to the owning content plan.
type PlanRepository interface {
	MarkFailed(ctx context.Context, planID, reason string) error
}

// NotificationKind tags terminal-state notifications.
type NotificationKind string

const (
	NotifyGenerationCompleted    NotificationKind = "generation_completed"
	NotifyGenerationFailed       NotificationKind = "generation_failed"
	NotifyGenerationTimedOut     NotificationKind = "generation_timed_out"
	NotifyGenerationNeverStarted NotificationKind = "generation_never_started"
)

// NotificationSink receives terminal-state events, fire and forget. A
// failing sink must never fail the pipeline.
type NotificationSink interface {
	Notify(ctx context.Context, userID string, kind NotificationKind, payload map[string]any)
}

// AuditSink records one row per outbound provider call.
type AuditSink interface {
	Record(ctx context.Context, entry APIRequestLog)
}

// CredentialSource resolves the decrypted credential for a (user, category)
// pair. A missing configuration surfaces as ErrNotConfigured.
type CredentialSource interface {
	Resolve(ctx context.Context, userID string, category Step) (ProviderCredential, error)
}
