package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// JobRepositoryPG implements domain.JobRepository on PostgreSQL. The job row
// is the source of truth for pipeline progress; everything that can change
// after creation goes through Save and its version check.
type JobRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewJobRepository(sql infra.SQLExecutor) *JobRepositoryPG {
	return &JobRepositoryPG{sql: sql}
}

func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.GenerationJob) error {
	providers, config, steps, artifacts, err := encodeJobJSON(job)
	if err != nil {
		return err
	}
	_, err = r.sql.Exec(ctx, sqlinline.QInsertGenerationJob,
		job.ID,
		job.UserID,
		job.PlanID,
		job.Prompt,
		job.TemplateID,
		job.TargetDurationSec,
		providers,
		config,
		job.Status,
		job.CurrentStep,
		steps,
		artifacts,
		job.ErrorMessage,
		job.ErrorDetails,
		job.RetryCount,
		job.MaxRetries,
		job.Version,
		job.CreatedAt,
	)
	return err
}

func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectGenerationJob, jobID)
	job, err := scanJob(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// Save writes the mutable columns guarded by the version the caller loaded.
// Zero affected rows means another writer advanced the row first; the caller
// must reload and decide whether its change still applies.
func (r *JobRepositoryPG) Save(ctx context.Context, job *domain.GenerationJob) error {
	providers, _, steps, artifacts, err := encodeJobJSON(job)
	if err != nil {
		return err
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateGenerationJob,
		job.ID,
		job.Version,
		providers,
		job.Status,
		job.CurrentStep,
		steps,
		artifacts,
		job.ErrorMessage,
		job.ErrorDetails,
		job.RetryCount,
		job.GenerationStartedAt,
		job.LastStepUpdatedAt,
		job.PostedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

func (r *JobRepositoryPG) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QCountActiveJobsByUser, userID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *JobRepositoryPG) ListStaleProcessing(ctx context.Context, cutoff time.Time) ([]*domain.GenerationJob, error) {
	return r.list(ctx, sqlinline.QSelectStaleProcessingJobs, cutoff)
}

func (r *JobRepositoryPG) ListNeverStarted(ctx context.Context, cutoff time.Time) ([]*domain.GenerationJob, error) {
	return r.list(ctx, sqlinline.QSelectNeverStartedJobs, cutoff)
}

func (r *JobRepositoryPG) list(ctx context.Context, query string, cutoff time.Time) ([]*domain.GenerationJob, error) {
	rows, err := r.sql.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func encodeJobJSON(job *domain.GenerationJob) (providers, config, steps, artifacts []byte, err error) {
	if providers, err = json.Marshal(job.Providers); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode providers: %w", err)
	}
	if config, err = json.Marshal(job.Config); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode config: %w", err)
	}
	if steps, err = json.Marshal(job.Steps); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode steps: %w", err)
	}
	if artifacts, err = json.Marshal(job.Artifacts); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("encode artifacts: %w", err)
	}
	return providers, config, steps, artifacts, nil
}

func scanJob(row pgx.Row) (*domain.GenerationJob, error) {
	var (
		job       domain.GenerationJob
		providers []byte
		config    []byte
		steps     []byte
		artifacts []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.PlanID,
		&job.UserID,
		&job.Prompt,
		&job.TemplateID,
		&job.TargetDurationSec,
		&providers,
		&config,
		&job.Status,
		&job.CurrentStep,
		&steps,
		&artifacts,
		&job.ErrorMessage,
		&job.ErrorDetails,
		&job.RetryCount,
		&job.MaxRetries,
		&job.Version,
		&job.CreatedAt,
		&job.GenerationStartedAt,
		&job.LastStepUpdatedAt,
		&job.PostedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(providers, &job.Providers); err != nil {
		return nil, fmt.Errorf("decode providers: %w", err)
	}
	if err := json.Unmarshal(config, &job.Config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &job.Steps); err != nil {
			return nil, fmt.Errorf("decode steps: %w", err)
		}
	}
	if len(artifacts) > 0 {
		if err := json.Unmarshal(artifacts, &job.Artifacts); err != nil {
			return nil, fmt.Errorf("decode artifacts: %w", err)
		}
	}
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
