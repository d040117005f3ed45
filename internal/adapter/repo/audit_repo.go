package repo

import (
	"context"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// AuditRepositoryPG persists one row per outbound provider call. A failed
// insert is logged and swallowed: losing an audit row must never fail a
// generation that the user is paying a vendor for.
type AuditRepositoryPG struct {
	sql    infra.SQLExecutor
	logger infra.Logger
}

func NewAuditRepository(sql infra.SQLExecutor, logger infra.Logger) *AuditRepositoryPG {
	return &AuditRepositoryPG{sql: sql, logger: logger}
}

func (r *AuditRepositoryPG) Record(ctx context.Context, entry domain.APIRequestLog) {
	_, err := r.sql.Exec(ctx, sqlinline.QInsertAPIRequestLog,
		entry.JobID,
		entry.Step,
		entry.Provider,
		entry.Endpoint,
		entry.Method,
		entry.StatusCode,
		entry.Duration.Milliseconds(),
		entry.RequestBody,
		entry.ResponseBody,
		entry.ErrorMessage,
	)
	if err != nil {
		r.logger.Error().Err(err).
			Str("provider", entry.Provider).
			Str("job_id", entry.JobID).
			Msg("audit: insert failed")
	}
}

var _ domain.AuditSink = (*AuditRepositoryPG)(nil)
