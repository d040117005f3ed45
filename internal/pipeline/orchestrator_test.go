package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"server/internal/domain"
	"server/internal/providers/assembly"
	"server/internal/providers/media"
	"server/internal/providers/script"
	"server/internal/providers/transport"
	"server/internal/providers/videoai"
	"server/internal/providers/voice"

	"github.com/rs/zerolog"
)

// memRepo is an in-memory JobRepository with the same optimistic-versioning
// semantics as the Postgres implementation.
type memRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.GenerationJob
	// onSave observes every successful save, letting tests inject
	// concurrent writers between steps.
	onSave func(saved *domain.GenerationJob)
	// onGet observes every load, letting tests race a concurrent writer
	// against a load-then-save caller.
	onGet func(loaded *domain.GenerationJob)
}

func newMemRepo(jobs ...*domain.GenerationJob) *memRepo {
	r := &memRepo{jobs: make(map[string]*domain.GenerationJob)}
	for _, j := range jobs {
		r.jobs[j.ID] = copyJob(j)
	}
	return r
}

func copyJob(j *domain.GenerationJob) *domain.GenerationJob {
	raw, err := json.Marshal(j)
	if err != nil {
		panic(err)
	}
	var out domain.GenerationJob
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return &out
}

func (r *memRepo) Create(ctx context.Context, job *domain.GenerationJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = copyJob(job)
	return nil
}

func (r *memRepo) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	r.mu.Lock()
	job, ok := r.jobs[jobID]
	if !ok {
		r.mu.Unlock()
		return nil, domain.ErrNotFound
	}
	out := copyJob(job)
	hook := r.onGet
	r.mu.Unlock()
	if hook != nil {
		hook(copyJob(out))
	}
	return out, nil
}

func (r *memRepo) Save(ctx context.Context, job *domain.GenerationJob) error {
	r.mu.Lock()
	stored, ok := r.jobs[job.ID]
	if !ok {
		r.mu.Unlock()
		return domain.ErrNotFound
	}
	if stored.Version != job.Version {
		r.mu.Unlock()
		return domain.ErrVersionConflict
	}
	saved := copyJob(job)
	saved.Version = job.Version + 1
	r.jobs[job.ID] = saved
	hook := r.onSave
	r.mu.Unlock()
	if hook != nil {
		hook(copyJob(saved))
	}
	return nil
}

func (r *memRepo) CountActiveByUser(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, j := range r.jobs {
		if j.UserID == userID && !j.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) ListStaleProcessing(ctx context.Context, cutoff time.Time) ([]*domain.GenerationJob, error) {
	return nil, nil
}

func (r *memRepo) ListNeverStarted(ctx context.Context, cutoff time.Time) ([]*domain.GenerationJob, error) {
	return nil, nil
}

// setStatus flips a stored job's status directly, as a cancel request or the
// stuck monitor would.
func (r *memRepo) setStatus(jobID string, status domain.JobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := r.jobs[jobID]
	j.Status = status
	j.Version++
}

type notifyCall struct {
	userID  string
	kind    domain.NotificationKind
	payload map[string]any
}

type memNotify struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *memNotify) Notify(ctx context.Context, userID string, kind domain.NotificationKind, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{userID: userID, kind: kind, payload: payload})
}

func (n *memNotify) last(t *testing.T) notifyCall {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.calls) == 0 {
		t.Fatal("no notifications recorded")
	}
	return n.calls[len(n.calls)-1]
}

type memStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[string][]byte)}
}

func (s *memStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), data...)
	return key, nil
}

func (s *memStore) PublicURL(key string) string {
	return "http://assets.local/" + key
}

type memQueue struct {
	mu     sync.Mutex
	jobIDs []string
	enqErr error
}

func (q *memQueue) Enqueue(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqErr != nil {
		return q.enqErr
	}
	q.jobIDs = append(q.jobIDs, jobID)
	return nil
}

type memCreds struct{}

func (memCreds) Resolve(ctx context.Context, userID string, category domain.Step) (domain.ProviderCredential, error) {
	return domain.ProviderCredential{APIKey: "test-key"}, nil
}

// stubAdapters returns canned results per step and counts invocations by
// provider name so tests can assert which vendor ran.
type stubAdapters struct {
	mu    sync.Mutex
	calls map[string]int // "step/provider" -> count

	scriptErr   *transport.Error
	voiceErr    map[string]*transport.Error // per provider
	mediaErr    *transport.Error
	videoAIErr  *transport.Error
	assemblyErr *transport.Error

	// onCall observes every adapter invocation.
	onCall func(step domain.Step, provider string)
}

func newStubAdapters() *stubAdapters {
	return &stubAdapters{calls: make(map[string]int), voiceErr: make(map[string]*transport.Error)}
}

func (s *stubAdapters) record(step domain.Step, provider string) {
	s.mu.Lock()
	s.calls[string(step)+"/"+provider]++
	s.mu.Unlock()
	if s.onCall != nil {
		s.onCall(step, provider)
	}
}

func (s *stubAdapters) count(step domain.Step, provider string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[string(step)+"/"+provider]
}

func testScript() *domain.ScriptArtifact {
	return &domain.ScriptArtifact{
		Text: "Batik is tradition you can wear.",
		Hook: "Ever wondered why batik patterns matter?",
		Scenes: []domain.Scene{
			{Narration: "Batik is tradition you can wear.", VisualPrompt: "artisan drawing batik", DurationSec: 5},
		},
	}
}

func (s *stubAdapters) Script(name string) (script.Factory, error) {
	return func(cred domain.ProviderCredential, cfg domain.ScriptConfig) script.Generator {
		return scriptFunc(func(ctx context.Context, req script.Request) (*domain.ScriptArtifact, *transport.Error) {
			s.record(domain.StepScript, name)
			if s.scriptErr != nil {
				return nil, s.scriptErr
			}
			return testScript(), nil
		})
	}, nil
}

func (s *stubAdapters) Voice(name string) (voice.Factory, error) {
	return func(cred domain.ProviderCredential, cfg domain.VoiceConfig) voice.Generator {
		return voiceFunc(func(ctx context.Context, req voice.Request) (*voice.Result, *transport.Error) {
			s.record(domain.StepVoice, name)
			if err := s.voiceErr[name]; err != nil {
				return nil, err
			}
			return &voice.Result{Audio: []byte("audio-bytes"), Format: "mp3", DurationSec: 5}, nil
		})
	}, nil
}

func (s *stubAdapters) Media(name string) (media.Factory, error) {
	return func(cred domain.ProviderCredential, cfg domain.MediaConfig) media.Generator {
		return mediaFunc(func(ctx context.Context, req media.Request) (*domain.MediaArtifact, *transport.Error) {
			s.record(domain.StepMedia, name)
			if s.mediaErr != nil {
				return nil, s.mediaErr
			}
			return &domain.MediaArtifact{Assets: []domain.MediaAsset{
				{URL: "https://stock.example/clip.mp4", Kind: "video", SceneIndex: 0},
			}}, nil
		})
	}, nil
}

func (s *stubAdapters) VideoAI(name string) (videoai.Factory, error) {
	return func(cred domain.ProviderCredential, cfg domain.VideoAIConfig) videoai.Generator {
		return videoAIFunc(func(ctx context.Context, req videoai.Request) (*domain.VideoAIArtifact, *transport.Error) {
			s.record(domain.StepVideoAI, name)
			if s.videoAIErr != nil {
				return nil, s.videoAIErr
			}
			return &domain.VideoAIArtifact{ClipURL: "https://ai.example/clip.mp4", DurationSec: 8}, nil
		})
	}, nil
}

func (s *stubAdapters) Assembly(name string) (assembly.Factory, error) {
	return func(cred domain.ProviderCredential, cfg domain.AssemblyConfig) assembly.Generator {
		return assemblyFunc(func(ctx context.Context, req assembly.Request) (*domain.AssemblyArtifact, *transport.Error) {
			s.record(domain.StepAssembly, name)
			if s.assemblyErr != nil {
				return nil, s.assemblyErr
			}
			return &domain.AssemblyArtifact{VideoURL: "https://render.example/final.mp4"}, nil
		})
	}, nil
}

type scriptFunc func(ctx context.Context, req script.Request) (*domain.ScriptArtifact, *transport.Error)

func (f scriptFunc) GenerateScript(ctx context.Context, req script.Request) (*domain.ScriptArtifact, *transport.Error) {
	return f(ctx, req)
}

type voiceFunc func(ctx context.Context, req voice.Request) (*voice.Result, *transport.Error)

func (f voiceFunc) GenerateVoice(ctx context.Context, req voice.Request) (*voice.Result, *transport.Error) {
	return f(ctx, req)
}

type mediaFunc func(ctx context.Context, req media.Request) (*domain.MediaArtifact, *transport.Error)

func (f mediaFunc) FetchMedia(ctx context.Context, req media.Request) (*domain.MediaArtifact, *transport.Error) {
	return f(ctx, req)
}

type videoAIFunc func(ctx context.Context, req videoai.Request) (*domain.VideoAIArtifact, *transport.Error)

func (f videoAIFunc) GenerateVideo(ctx context.Context, req videoai.Request) (*domain.VideoAIArtifact, *transport.Error) {
	return f(ctx, req)
}

type assemblyFunc func(ctx context.Context, req assembly.Request) (*domain.AssemblyArtifact, *transport.Error)

func (f assemblyFunc) AssembleVideo(ctx context.Context, req assembly.Request) (*domain.AssemblyArtifact, *transport.Error) {
	return f(ctx, req)
}

func testJob() *domain.GenerationJob {
	return &domain.GenerationJob{
		ID:                "job-1",
		UserID:            "user-1",
		Prompt:            "why batik matters",
		TargetDurationSec: 30,
		Providers: domain.ProviderSelection{
			Script:   "openai",
			Voice:    "elevenlabs",
			Media:    "pexels",
			VideoAI:  "veo",
			Assembly: "shotstack",
		},
		Config:      domain.DefaultPipelineConfig(),
		Status:      domain.JobStatusPending,
		CurrentStep: domain.StepScript,
		MaxRetries:  domain.DefaultMaxRetries,
		CreatedAt:   time.Now().UTC(),
	}
}

type fixture struct {
	repo     *memRepo
	adapters *stubAdapters
	notify   *memNotify
	store    *memStore
	queue    *memQueue
	orch     *Orchestrator
}

func newFixture(jobs ...*domain.GenerationJob) *fixture {
	f := &fixture{
		repo:     newMemRepo(jobs...),
		adapters: newStubAdapters(),
		notify:   &memNotify{},
		store:    newMemStore(),
		queue:    &memQueue{},
	}
	f.orch = New(Options{
		Jobs:     f.repo,
		Adapters: f.adapters,
		Creds:    memCreds{},
		Notify:   f.notify,
		Store:    f.store,
		Queue:    f.queue,
		Logger:   zerolog.Nop(),
	})
	return f
}

func (f *fixture) job(t *testing.T, id string) *domain.GenerationJob {
	t.Helper()
	job, err := f.repo.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load job: %v", err)
	}
	return job
}

func TestRunCompletesAllSteps(t *testing.T) {
	f := newFixture(testJob())

	if err := f.orch.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	job := f.job(t, "job-1")
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
	if job.CurrentStep != domain.StepDone {
		t.Fatalf("current step = %s, want done", job.CurrentStep)
	}
	for _, step := range domain.StepOrder {
		if !job.Artifacts.Has(step) {
			t.Fatalf("missing artifact for %s", step)
		}
		if job.Steps[step].State != domain.StepStateSucceeded {
			t.Fatalf("step %s state = %s, want succeeded", step, job.Steps[step].State)
		}
	}
	if job.GenerationStartedAt == nil || job.LastStepUpdatedAt == nil {
		t.Fatal("claim and heartbeat timestamps must be set")
	}
	if job.Artifacts.Voice.AudioURL != "http://assets.local/generated/audio/job-1/narration.mp3" {
		t.Fatalf("voice audio url = %q", job.Artifacts.Voice.AudioURL)
	}
	if _, ok := f.store.blobs["generated/audio/job-1/narration.mp3"]; !ok {
		t.Fatal("narration audio not stored")
	}

	call := f.notify.last(t)
	if call.kind != domain.NotifyGenerationCompleted {
		t.Fatalf("notification kind = %s", call.kind)
	}
	if call.payload["video_url"] != "https://render.example/final.mp4" {
		t.Fatalf("notification video_url = %v", call.payload["video_url"])
	}
}

func TestRunPersistsHeartbeatBeforeAdapterCall(t *testing.T) {
	f := newFixture(testJob())

	var observed []string
	f.adapters.onCall = func(step domain.Step, provider string) {
		// At adapter-call time the stored row must already show this step
		// running with a fresh heartbeat.
		stored := f.job(t, "job-1")
		rec, ok := stored.Steps[step]
		if !ok || rec.State != domain.StepStateRunning {
			t.Errorf("step %s not recorded as running before adapter call (state=%s)", step, rec.State)
		}
		if stored.LastStepUpdatedAt == nil {
			t.Errorf("heartbeat missing before %s adapter call", step)
		}
		if stored.CurrentStep != step {
			t.Errorf("stored current step = %s during %s call", stored.CurrentStep, step)
		}
		observed = append(observed, string(step))
	}

	if err := f.orch.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	want := []string{"script", "voice", "media", "video_ai", "assembly"}
	if strings.Join(observed, ",") != strings.Join(want, ",") {
		t.Fatalf("adapter call order = %v, want %v", observed, want)
	}
}

func TestRunFailureKeepsEarlierArtifacts(t *testing.T) {
	f := newFixture(testJob())
	f.adapters.voiceErr["elevenlabs"] = &transport.Error{
		Provider: "elevenlabs", Code: transport.CodeInvalidKey, StatusCode: 401, Message: "bad key",
	}

	if err := f.orch.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	job := f.job(t, "job-1")
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("status = %s, want failed", job.Status)
	}
	if job.CurrentStep != domain.StepVoice {
		t.Fatalf("current step = %s, want voice", job.CurrentStep)
	}
	if job.Artifacts.Script == nil {
		t.Fatal("script artifact must survive a voice failure")
	}
	if job.Artifacts.Voice != nil || job.Artifacts.Media != nil {
		t.Fatal("no artifacts may exist for the failed step or beyond")
	}
	if !strings.Contains(job.ErrorMessage, "invalid_key") {
		t.Fatalf("error message %q should name the failure code", job.ErrorMessage)
	}
	if job.Steps[domain.StepVoice].State != domain.StepStateFailed {
		t.Fatalf("voice step state = %s, want failed", job.Steps[domain.StepVoice].State)
	}
	// Later steps never ran.
	if f.adapters.count(domain.StepMedia, "pexels") != 0 {
		t.Fatal("media adapter must not run after a voice failure")
	}

	call := f.notify.last(t)
	if call.kind != domain.NotifyGenerationFailed {
		t.Fatalf("notification kind = %s", call.kind)
	}
	if call.payload["retries_remaining"] != domain.DefaultMaxRetries {
		t.Fatalf("retries_remaining = %v", call.payload["retries_remaining"])
	}
}

func TestRetryWithSwapPreservesArtifactsExactly(t *testing.T) {
	f := newFixture(testJob())
	f.adapters.voiceErr["elevenlabs"] = &transport.Error{
		Provider: "elevenlabs", Code: transport.CodeServiceUnavailable, StatusCode: 503, Message: "down",
	}

	if err := f.orch.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	failedScript, err := json.Marshal(f.job(t, "job-1").Artifacts.Script)
	if err != nil {
		t.Fatal(err)
	}

	job, rerr := f.orch.Retry(context.Background(), "job-1", map[domain.Step]string{
		domain.StepVoice: "openai",
	})
	if rerr != nil {
		t.Fatalf("Retry error: %v", rerr)
	}
	if job.Status != domain.JobStatusPending {
		t.Fatalf("status after retry = %s, want pending", job.Status)
	}
	if job.RetryCount != 1 {
		t.Fatalf("retry count = %d, want 1", job.RetryCount)
	}
	if job.Providers.Voice != "openai" {
		t.Fatalf("voice provider = %s, want openai", job.Providers.Voice)
	}
	if job.ErrorMessage != "" {
		t.Fatalf("error message not cleared: %q", job.ErrorMessage)
	}
	if len(f.queue.jobIDs) != 1 || f.queue.jobIDs[0] != "job-1" {
		t.Fatalf("retry must re-enqueue the job, got %v", f.queue.jobIDs)
	}

	if err := f.orch.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("second run: %v", err)
	}
	final := f.job(t, "job-1")
	if final.Status != domain.JobStatusCompleted {
		t.Fatalf("status after retry run = %s, want completed", final.Status)
	}
	// The script produced before the failure is reused byte for byte.
	retriedScript, err := json.Marshal(final.Artifacts.Script)
	if err != nil {
		t.Fatal(err)
	}
	if string(failedScript) != string(retriedScript) {
		t.Fatalf("script artifact changed across retry:\n%s\n%s", failedScript, retriedScript)
	}
	if got := f.adapters.count(domain.StepScript, "openai"); got != 1 {
		t.Fatalf("script adapter ran %d times, want 1 (no regeneration on retry)", got)
	}
	if got := f.adapters.count(domain.StepVoice, "openai"); got != 1 {
		t.Fatalf("swapped voice adapter ran %d times, want 1", got)
	}
}

func TestRetryRejectsSwapBeforeFailedStep(t *testing.T) {
	f := newFixture(testJob())
	f.adapters.mediaErr = &transport.Error{
		Provider: "pexels", Code: transport.CodeRateLimited, StatusCode: 429, Message: "slow down",
	}
	if err := f.orch.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	_, err := f.orch.Retry(context.Background(), "job-1", map[domain.Step]string{
		domain.StepScript: "gemini",
	})
	if !errors.Is(err, domain.ErrSwapNotAllowed) {
		t.Fatalf("err = %v, want ErrSwapNotAllowed", err)
	}

	// Swapping the failed step itself is fine.
	if _, err := f.orch.Retry(context.Background(), "job-1", map[domain.Step]string{
		domain.StepMedia: "pixabay",
	}); err != nil {
		t.Fatalf("swap at failed step rejected: %v", err)
	}
}

func TestRetryBudget(t *testing.T) {
	f := newFixture(testJob())
	f.adapters.scriptErr = &transport.Error{
		Provider: "openai", Code: transport.CodeServiceUnavailable, StatusCode: 500, Message: "boom",
	}

	for i := 0; i < domain.DefaultMaxRetries; i++ {
		if err := f.orch.Run(context.Background(), "job-1"); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if _, err := f.orch.Retry(context.Background(), "job-1", nil); err != nil {
			t.Fatalf("retry %d: %v", i, err)
		}
	}
	if err := f.orch.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("final run: %v", err)
	}

	_, err := f.orch.Retry(context.Background(), "job-1", nil)
	if !errors.Is(err, domain.ErrRetryBudgetExhausted) {
		t.Fatalf("err = %v, want ErrRetryBudgetExhausted", err)
	}
}

func TestRetryRequiresFailedStatus(t *testing.T) {
	f := newFixture(testJob())
	_, err := f.orch.Retry(context.Background(), "job-1", nil)
	if !errors.Is(err, domain.ErrJobNotRetryable) {
		t.Fatalf("err = %v, want ErrJobNotRetryable", err)
	}
}

func TestCancelStopsBetweenSteps(t *testing.T) {
	f := newFixture(testJob())

	// Cancel the job the moment the script step finishes: the orchestrator
	// must notice at its next between-steps check and stop.
	f.repo.onSave = func(saved *domain.GenerationJob) {
		if saved.Steps[domain.StepScript].State == domain.StepStateSucceeded &&
			saved.Status == domain.JobStatusProcessing {
			f.repo.setStatus("job-1", domain.JobStatusCancelled)
		}
	}

	if err := f.orch.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	job := f.job(t, "job-1")
	if job.Status != domain.JobStatusCancelled {
		t.Fatalf("status = %s, want cancelled", job.Status)
	}
	if f.adapters.count(domain.StepVoice, "elevenlabs") != 0 {
		t.Fatal("voice adapter must not run after cancellation")
	}
}

func TestCancelTerminalJobRejected(t *testing.T) {
	f := newFixture(testJob())
	if err := f.orch.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	_, err := f.orch.Cancel(context.Background(), "job-1")
	if !errors.Is(err, domain.ErrJobTerminal) {
		t.Fatalf("err = %v, want ErrJobTerminal", err)
	}
}

func TestCancelSurvivesConcurrentHeartbeat(t *testing.T) {
	f := newFixture(testJob())

	// A worker heartbeat bumps the row right after Cancel loads it, so the
	// first save loses the version race. Cancel must reload and re-apply
	// instead of surfacing the conflict.
	raced := false
	f.repo.onGet = func(*domain.GenerationJob) {
		if raced {
			return
		}
		raced = true
		f.repo.setStatus("job-1", domain.JobStatusProcessing)
	}

	job, err := f.orch.Cancel(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if job.Status != domain.JobStatusCancelled {
		t.Fatalf("returned status = %s, want cancelled", job.Status)
	}
	stored := f.job(t, "job-1")
	if stored.Status != domain.JobStatusCancelled {
		t.Fatalf("stored status = %s, want cancelled", stored.Status)
	}
}

func TestCancelConcurrentWriterWinsWithTerminalStatus(t *testing.T) {
	f := newFixture(testJob())

	// The race goes the other way: a concurrent writer lands a terminal
	// status before Cancel's save, so the reload must reject the cancel.
	raced := false
	f.repo.onGet = func(*domain.GenerationJob) {
		if raced {
			return
		}
		raced = true
		f.repo.setStatus("job-1", domain.JobStatusFailed)
	}

	_, err := f.orch.Cancel(context.Background(), "job-1")
	if !errors.Is(err, domain.ErrJobTerminal) {
		t.Fatalf("err = %v, want ErrJobTerminal", err)
	}
}

func TestRunDuplicateDispatchIsNoOp(t *testing.T) {
	f := newFixture(testJob())
	if err := f.orch.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before := f.adapters.count(domain.StepScript, "openai")

	// At-least-once delivery: the same task may arrive again.
	if err := f.orch.Run(context.Background(), "job-1"); err != nil {
		t.Fatalf("duplicate run: %v", err)
	}
	if f.adapters.count(domain.StepScript, "openai") != before {
		t.Fatal("duplicate dispatch must not re-run any step")
	}
	job := f.job(t, "job-1")
	if job.Status != domain.JobStatusCompleted {
		t.Fatalf("status = %s, want completed", job.Status)
	}
}

func TestRunUnknownJob(t *testing.T) {
	f := newFixture()
	err := f.orch.Run(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSummarizeCauseClassification(t *testing.T) {
	cases := []struct {
		code transport.Code
		want string
	}{
		{transport.CodeInvalidKey, "invalid_key"},
		{transport.CodeInsufficientPermissions, "insufficient_permissions"},
		{transport.CodeRateLimited, "rate_limited"},
		{transport.CodeServiceUnavailable, "service_unavailable"},
		{transport.CodeUnknown, "unknown_error"},
	}
	for _, tc := range cases {
		got := summarizeCause(&transport.Error{Provider: "vendor", Code: tc.code})
		if !strings.Contains(got, tc.want) {
			t.Errorf("summary for %s = %q, should contain %q", tc.code, got, tc.want)
		}
	}
	if got := summarizeCause(fmt.Errorf("wrapped: %w", domain.ErrNotConfigured)); !strings.Contains(got, "configuration error") {
		t.Errorf("summary for ErrNotConfigured = %q", got)
	}
}
