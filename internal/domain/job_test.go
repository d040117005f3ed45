package domain

import (
	"errors"
	"testing"
	"time"
)

func TestStepOrderAndNext(t *testing.T) {
	cases := []struct {
		step  Step
		index int
		next  Step
	}{
		{StepScript, 0, StepVoice},
		{StepVoice, 1, StepMedia},
		{StepMedia, 2, StepVideoAI},
		{StepVideoAI, 3, StepAssembly},
		{StepAssembly, 4, StepDone},
		{StepDone, 5, StepDone},
		{Step("posting"), 5, StepDone},
	}
	for _, tc := range cases {
		if got := tc.step.Index(); got != tc.index {
			t.Errorf("%s.Index() = %d, want %d", tc.step, got, tc.index)
		}
		if got := tc.step.Next(); got != tc.next {
			t.Errorf("%s.Next() = %s, want %s", tc.step, got, tc.next)
		}
	}
	if ValidStep(StepDone) {
		t.Error("ValidStep(done) = true")
	}
	if !ValidStep(StepMedia) {
		t.Error("ValidStep(media) = false")
	}
}

func TestJobStatusTerminal(t *testing.T) {
	terminal := map[JobStatus]bool{
		JobStatusPending:    false,
		JobStatusProcessing: false,
		JobStatusCompleted:  true,
		JobStatusFailed:     true,
		JobStatusCancelled:  true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestRecordStepAdvancesHeartbeat(t *testing.T) {
	job := &GenerationJob{}
	first := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	second := first.Add(45 * time.Second)

	job.RecordStep(StepScript, StepStateRunning, first)
	if job.LastStepUpdatedAt == nil || !job.LastStepUpdatedAt.Equal(first) {
		t.Fatalf("heartbeat = %v, want %v", job.LastStepUpdatedAt, first)
	}

	job.RecordStep(StepScript, StepStateSucceeded, second)
	if !job.LastStepUpdatedAt.Equal(second) {
		t.Fatalf("heartbeat = %v, want %v", job.LastStepUpdatedAt, second)
	}
	if job.Steps[StepScript].State != StepStateSucceeded {
		t.Fatalf("step state = %s", job.Steps[StepScript].State)
	}
}

func TestCanRetry(t *testing.T) {
	job := &GenerationJob{Status: JobStatusFailed, MaxRetries: 2}
	if err := job.CanRetry(); err != nil {
		t.Fatalf("CanRetry = %v", err)
	}
	if got := job.RetryBudgetRemaining(); got != 2 {
		t.Fatalf("budget = %d, want 2", got)
	}

	job.RetryCount = 2
	if err := job.CanRetry(); !errors.Is(err, ErrRetryBudgetExhausted) {
		t.Fatalf("err = %v, want ErrRetryBudgetExhausted", err)
	}

	job.RetryCount = 5 // over-counted rows must not report a negative budget
	if got := job.RetryBudgetRemaining(); got != 0 {
		t.Fatalf("budget = %d, want 0", got)
	}

	for _, status := range []JobStatus{JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusCancelled} {
		job := &GenerationJob{Status: status, MaxRetries: 3}
		if err := job.CanRetry(); !errors.Is(err, ErrJobNotRetryable) {
			t.Errorf("%s: err = %v, want ErrJobNotRetryable", status, err)
		}
	}
}

func TestProviderSelectionForAndSet(t *testing.T) {
	sel := ProviderSelection{Script: "openai", Voice: "elevenlabs", Media: "pexels", VideoAI: "veo", Assembly: "shotstack"}
	for _, step := range StepOrder {
		if sel.For(step) == "" {
			t.Errorf("For(%s) empty", step)
		}
	}
	if sel.For(StepDone) != "" {
		t.Error("For(done) should be empty")
	}

	sel.Set(StepVoice, "openai")
	if sel.Voice != "openai" {
		t.Fatalf("Voice = %s after Set", sel.Voice)
	}
	sel.Set(StepDone, "nope") // no category for done
	if sel.For(StepDone) != "" {
		t.Fatal("Set(done) must be a no-op")
	}
}

func TestArtifactsHasAndMerge(t *testing.T) {
	var a Artifacts
	if a.Has(StepScript) {
		t.Fatal("empty artifacts report script present")
	}

	if err := a.Merge(StepScript, &ScriptArtifact{Text: "hi"}); err != nil {
		t.Fatalf("Merge script: %v", err)
	}
	if !a.Has(StepScript) || a.Script.Text != "hi" {
		t.Fatalf("script not stored: %+v", a.Script)
	}

	if err := a.Merge(StepVoice, &ScriptArtifact{}); err == nil {
		t.Fatal("Merge accepted a mismatched payload type")
	}
	if err := a.Merge(Step("posting"), &ScriptArtifact{}); err == nil {
		t.Fatal("Merge accepted an unknown step")
	}
}

func TestPipelineConfigValidate(t *testing.T) {
	if err := DefaultPipelineConfig().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*PipelineConfig)
	}{
		{"wrong version", func(c *PipelineConfig) { c.Version = 99 }},
		{"bad gender", func(c *PipelineConfig) { c.Voice.Gender = "robot" }},
		{"speed too fast", func(c *PipelineConfig) { c.Voice.Speed = 3.5 }},
		{"bad orientation", func(c *PipelineConfig) { c.Media.Orientation = "diagonal" }},
		{"too many assets", func(c *PipelineConfig) { c.Media.AssetsPerScene = 9 }},
		{"bad aspect ratio", func(c *PipelineConfig) { c.VideoAI.AspectRatio = "4:3" }},
		{"missing resolution", func(c *PipelineConfig) { c.Assembly.Resolution = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultPipelineConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
