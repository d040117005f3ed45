package scheduler

import (
	"strings"
	"testing"
	"time"
)

func TestTaskEncodeDecode(t *testing.T) {
	task := Task{
		Kind:       TaskGenerateVideo,
		JobID:      "job-1",
		EnqueuedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	raw, err := task.Encode()
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	decoded, err := DecodeTask(raw)
	if err != nil {
		t.Fatalf("DecodeTask error: %v", err)
	}
	if decoded != task {
		t.Fatalf("roundtrip mismatch: %+v != %+v", decoded, task)
	}
}

func TestTaskEncodeRejectsInvalid(t *testing.T) {
	if _, err := (Task{Kind: "defrag_disk", JobID: "job-1"}).Encode(); err == nil {
		t.Fatal("expected error for unknown kind")
	}
	if _, err := (Task{Kind: TaskGenerateVideo}).Encode(); err == nil {
		t.Fatal("expected error for missing job id")
	}
}

func TestDecodeTaskRejectsGarbage(t *testing.T) {
	cases := []string{
		"not json",
		`{"kind":"generate_video"}`,
		`{"kind":"mystery","job_id":"job-1"}`,
		`{}`,
	}
	for _, raw := range cases {
		if _, err := DecodeTask(raw); err == nil {
			t.Errorf("DecodeTask(%q) should fail", raw)
		}
	}
}

func TestWorkerTimeoutDefaults(t *testing.T) {
	w := NewWorker(WorkerOptions{
		Timeouts: map[TaskKind]time.Duration{TaskGenerateVideo: 45 * time.Minute},
	})
	if w.timeouts[TaskGenerateVideo] != 45*time.Minute {
		t.Fatalf("generate timeout = %s", w.timeouts[TaskGenerateVideo])
	}
	if w.timeouts[TaskPublishVideo] != 5*time.Minute {
		t.Fatalf("publish timeout = %s, want default", w.timeouts[TaskPublishVideo])
	}
	if w.concurrency != 1 {
		t.Fatalf("concurrency = %d, want floor of 1", w.concurrency)
	}
}

func TestDecodeTaskErrorNamesKind(t *testing.T) {
	_, err := DecodeTask(`{"kind":"mystery","job_id":"job-1"}`)
	if err == nil || !strings.Contains(err.Error(), "mystery") {
		t.Fatalf("err = %v, should name the unknown kind", err)
	}
}
