package domain

import "time"

// PlanStatus enumerates content plan lifecycle states.
type PlanStatus string

const (
	PlanStatusActive PlanStatus = "active"
	PlanStatusDone   PlanStatus = "done"
	PlanStatusFailed PlanStatus = "failed"
)

// ContentPlan groups scheduled generation jobs. When a member job fails or
// times out, the failure cascades to the plan so the dashboard shows one
// actionable state instead of a half-broken schedule.
type ContentPlan struct {
	ID        string
	UserID    string
	Title     string
	Status    PlanStatus
	CreatedAt time.Time
}
