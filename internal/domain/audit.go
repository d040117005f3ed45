package domain

import "time"

// APIRequestLog is one audit row per outbound provider call. Request and
// response bodies arrive already masked and truncated; this type is
// write-only from the pipeline's point of view.
type APIRequestLog struct {
	JobID        string
	Step         Step
	Provider     string
	Endpoint     string
	Method       string
	StatusCode   int
	Duration     time.Duration
	RequestBody  string
	ResponseBody string
	ErrorMessage string
	CreatedAt    time.Time
}

// ProviderCredential is a decrypted, ready-to-use credential for one
// (user, category) pair. Decryption and storage of the ciphertext belong to
// the settings subsystem; the pipeline only ever sees this resolved form.
type ProviderCredential struct {
	APIKey string
	Extra  map[string]string
}
