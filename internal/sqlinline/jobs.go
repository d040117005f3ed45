package sqlinline

const QInsertGenerationJob = `--sql 6a394ab5-d822-4e40-9133-bad7e98d3d90
insert into generation_jobs (
    id, user_id, plan_id, prompt, template_id, target_duration_sec,
    providers_json, config_json, status, current_step, steps_json,
    artifacts_json, error_message, error_details, retry_count, max_retries,
    version, created_at
) values (
    $1, $2, nullif($3, ''), $4, $5, $6,
    $7::jsonb, $8::jsonb, $9, $10, $11::jsonb,
    $12::jsonb, $13, $14, $15, $16,
    $17, $18
);
`

const jobColumns = `
    id, coalesce(plan_id::text, ''), user_id, prompt, template_id,
    target_duration_sec, providers_json, config_json, status, current_step,
    steps_json, artifacts_json, error_message, error_details, retry_count,
    max_retries, version, created_at, generation_started_at,
    last_step_updated_at, posted_at`

const QSelectGenerationJob = `--sql 03f6d514-44fb-4804-a732-5e4778cfd55a
select` + jobColumns + `
from generation_jobs
where id = $1;
`

// QUpdateGenerationJob only lands when the stored version still matches the
// loaded one. A zero-row update means a concurrent writer got there first.
const QUpdateGenerationJob = `--sql 4c4c6659-0876-4f42-bc8a-6df22ec5e5ff
update generation_jobs
set providers_json = $3::jsonb,
    status = $4,
    current_step = $5,
    steps_json = $6::jsonb,
    artifacts_json = $7::jsonb,
    error_message = $8,
    error_details = $9,
    retry_count = $10,
    generation_started_at = $11,
    last_step_updated_at = $12,
    posted_at = $13,
    version = version + 1
where id = $1
  and version = $2;
`

const QCountActiveJobsByUser = `--sql c6c8a64f-8d5b-46d2-98d8-88c4ea10e44c
select count(*)
from generation_jobs
where user_id = $1
  and status in ('pending', 'processing');
`

const QSelectStaleProcessingJobs = `--sql bc7f9c92-2c0d-4519-9427-a1210d694934
select` + jobColumns + `
from generation_jobs
where status = 'processing'
  and last_step_updated_at is not null
  and last_step_updated_at < $1
order by last_step_updated_at asc;
`

const QSelectNeverStartedJobs = `--sql f7187227-0c6d-4c93-83ce-ceb3c75af722
select` + jobColumns + `
from generation_jobs
where status = 'processing'
  and last_step_updated_at is null
  and generation_started_at is not null
  and generation_started_at < $1
order by generation_started_at asc;
`
