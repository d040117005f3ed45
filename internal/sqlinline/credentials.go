package sqlinline

// The settings subsystem owns this table; the pipeline only reads the
// ciphertext plus provider-specific properties for one (user, category).
const QSelectUserCredential = `--sql 8b7c1cbb-1893-400a-a40a-79281f7820d4
select encrypted_key, coalesce(props_json, '{}'::jsonb)
from user_provider_credentials
where user_id = $1
  and category = $2;
`
