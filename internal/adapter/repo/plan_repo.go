package repo

import (
	"context"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// PlanRepositoryPG implements domain.PlanRepository. The pipeline only ever
// cascades failures; plan creation and scheduling live in the planner.
type PlanRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewPlanRepository(sql infra.SQLExecutor) *PlanRepositoryPG {
	return &PlanRepositoryPG{sql: sql}
}

// MarkFailed is idempotent: a plan already failed stays failed with its
// original reason.
func (r *PlanRepositoryPG) MarkFailed(ctx context.Context, planID, reason string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QMarkPlanFailed, planID, reason)
	return err
}

var _ domain.PlanRepository = (*PlanRepositoryPG)(nil)
