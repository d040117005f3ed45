package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"server/internal/config"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/pipeline"
)

// Enqueuer is the slice of the scheduler the API needs: push a generation
// task now or at a future time.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
	EnqueueAt(ctx context.Context, jobID string, at time.Time) error
}

// BlobReader reads locally stored generation outputs for download bundles.
type BlobReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

type App struct {
	Jobs     domain.JobRepository
	Pipeline *pipeline.Orchestrator
	Queue    Enqueuer
	Store    BlobReader
	Config   *config.Pipeline
	Logger   infra.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, slug, message string) {
	a.json(w, code, map[string]string{"error": slug, "message": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
