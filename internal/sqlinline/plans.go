package sqlinline

const QMarkPlanFailed = `--sql 4f1d2899-1320-4619-8256-b0e765ebd680
update content_plans
set status = 'failed',
    failure_reason = $2,
    updated_at = now()
where id = $1
  and status <> 'failed';
`
