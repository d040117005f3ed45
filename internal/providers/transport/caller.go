package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"server/internal/domain"
	"server/internal/infra"
)

const (
	defaultTimeout = 60 * time.Second
	maxAuditBody   = 2048
	maxResponse    = 32 << 20
)

// Call describes one outbound provider request.
type Call struct {
	Provider string
	JobID    string
	Step     domain.Step
	Method   string
	URL      string
	Header   map[string]string
	Body     any           // JSON-encoded when non-nil
	Secrets  []string      // masked out of audit rows and logs
	Timeout  time.Duration // falls back to defaultTimeout
}

// Options configures a Caller.
type Options struct {
	HTTPClient *http.Client
	Audit      domain.AuditSink
	Logger     *infra.Logger
	// RateLimits maps provider name to allowed requests per second.
	// Providers without an entry are not throttled client-side.
	RateLimits map[string]float64
}

// Caller is the single road out of the process for provider adapters. It
// owns client-side rate limiting, status classification, secret masking and
// the one-audit-row-per-call guarantee, so individual adapters stay focused
// on translating requests.
type Caller struct {
	client *http.Client
	audit  domain.AuditSink
	logger *infra.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limits   map[string]float64
}

// NewCaller builds a Caller. Audit may not be nil: auditability is part of
// the adapter contract, not an optional extra.
func NewCaller(opts Options) *Caller {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Caller{
		client:   client,
		audit:    opts.Audit,
		logger:   opts.Logger,
		limiters: make(map[string]*rate.Limiter),
		limits:   opts.RateLimits,
	}
}

// DoJSON performs the call and decodes a JSON response body into out.
func (c *Caller) DoJSON(ctx context.Context, call Call, out any) *Error {
	body, cerr := c.Do(ctx, call)
	if cerr != nil {
		return cerr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Provider: call.Provider, Code: CodeUnknown, Message: fmt.Sprintf("decode response: %v", err)}
	}
	return nil
}

// Do performs the call and returns the raw response body. All failure modes
// come back as a classified *Error; exactly one audit row is recorded per
// invocation regardless of outcome.
func (c *Caller) Do(ctx context.Context, call Call) ([]byte, *Error) {
	var reqBody []byte
	if call.Body != nil {
		encoded, err := json.Marshal(call.Body)
		if err != nil {
			cerr := &Error{Provider: call.Provider, Code: CodeUnknown, Message: fmt.Sprintf("encode request: %v", err)}
			c.record(ctx, call, nil, "", 0, 0, cerr)
			return nil, cerr
		}
		reqBody = encoded
	}

	timeout := call.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.limiter(call.Provider).Wait(ctx); err != nil {
		cerr := &Error{Provider: call.Provider, Code: CodeServiceUnavailable, Message: fmt.Sprintf("rate limiter wait: %v", err)}
		c.record(ctx, call, reqBody, "", 0, 0, cerr)
		return nil, cerr
	}

	var reader io.Reader
	if reqBody != nil {
		reader = bytes.NewReader(reqBody)
	}
	req, err := http.NewRequestWithContext(ctx, call.Method, call.URL, reader)
	if err != nil {
		cerr := &Error{Provider: call.Provider, Code: CodeUnknown, Message: fmt.Sprintf("build request: %v", err)}
		c.record(ctx, call, reqBody, "", 0, 0, cerr)
		return nil, cerr
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range call.Header {
		req.Header.Set(k, v)
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	took := time.Since(started)
	if err != nil {
		// Network-level failures (timeouts, refused connections) are
		// transient from the job's point of view.
		cerr := &Error{Provider: call.Provider, Code: CodeServiceUnavailable, Message: err.Error()}
		c.record(ctx, call, reqBody, "", 0, took, cerr)
		return nil, cerr
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponse))
	if err != nil {
		cerr := &Error{Provider: call.Provider, Code: CodeServiceUnavailable, StatusCode: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
		c.record(ctx, call, reqBody, "", resp.StatusCode, took, cerr)
		return nil, cerr
	}

	auditResp := summarizeBody(respBody, resp.Header.Get("Content-Type"))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		cerr := &Error{
			Provider:   call.Provider,
			Code:       ClassifyStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    truncate(string(respBody), 256),
		}
		c.record(ctx, call, reqBody, auditResp, resp.StatusCode, took, cerr)
		return nil, cerr
	}

	c.record(ctx, call, reqBody, auditResp, resp.StatusCode, took, nil)
	return respBody, nil
}

func (c *Caller) limiter(provider string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.limiters[provider]; ok {
		return l
	}
	limit := rate.Inf
	burst := 1
	if rps, ok := c.limits[provider]; ok && rps > 0 {
		limit = rate.Limit(rps)
	}
	l := rate.NewLimiter(limit, burst)
	c.limiters[provider] = l
	return l
}

func (c *Caller) record(ctx context.Context, call Call, reqBody []byte, respBody string, status int, took time.Duration, cerr *Error) {
	if c.logger != nil {
		ev := c.logger.Debug()
		if cerr != nil {
			ev = c.logger.Warn().Str("code", string(cerr.Code))
		}
		ev.Str("provider", call.Provider).
			Str("job_id", call.JobID).
			Str("step", string(call.Step)).
			Int("status", status).
			Dur("took", took).
			Msg("provider call")
	}
	if c.audit == nil {
		return
	}
	entry := domain.APIRequestLog{
		JobID:        call.JobID,
		Step:         call.Step,
		Provider:     call.Provider,
		Endpoint:     mask(call.URL, call.Secrets),
		Method:       call.Method,
		StatusCode:   status,
		Duration:     took,
		RequestBody:  mask(truncate(string(reqBody), maxAuditBody), call.Secrets),
		ResponseBody: mask(respBody, call.Secrets),
	}
	if cerr != nil {
		entry.ErrorMessage = mask(cerr.Message, call.Secrets)
	}
	// The per-call deadline is often already exceeded here (that is the
	// failure being audited), so the insert must not inherit it.
	c.audit.Record(context.WithoutCancel(ctx), entry)
}

func mask(s string, secrets []string) string {
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, "***")
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

func summarizeBody(body []byte, contentType string) string {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "audio/") || strings.HasPrefix(ct, "video/") || strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "application/octet-stream") {
		return fmt.Sprintf("<%d bytes %s>", len(body), contentType)
	}
	return truncate(string(body), maxAuditBody)
}
