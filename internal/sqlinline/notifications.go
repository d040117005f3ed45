package sqlinline

const QInsertNotification = `--sql 693f26c1-20a7-479a-a4b5-400ad0c292ce
insert into notifications (user_id, kind, payload_json, created_at)
values ($1, $2, $3::jsonb, now());
`
