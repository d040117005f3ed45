package sqlinline

const QInsertAPIRequestLog = `--sql a5f5bf89-1d9f-473e-8d74-fd8ed9d051f6
insert into api_request_logs (
    job_id, step, provider, endpoint, method, status_code,
    duration_ms, request_body, response_body, error_message, created_at
) values (
    nullif($1, ''), $2, $3, $4, $5, $6,
    $7, $8, $9, $10, now()
);
`
